package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"epietl/internal/config"
	"epietl/internal/engine"
	"epietl/internal/metrics"
	"epietl/internal/metrics/datadog"
	"epietl/internal/metrics/prompush"
	"epietl/internal/population"
	"epietl/internal/storage"

	// register all backends with the storage factory.
	// config selects which to use but all of them are built in.
	_ "epietl/internal/storage/all"
)

// main loads the pipeline config, optionally initializes a metrics backend,
// and executes the run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; default env METRICS_BACKEND, then none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}

	var p config.Pipeline
	err = json.NewDecoder(f).Decode(&p)
	f.Close()
	if err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return
	}

	initMetrics(p.Job, metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	store, err := storage.New(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DB.DSN,
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		fatalf("init storage: %v", err)
	}
	defer store.Close()

	if p.Storage.DB.AutoCreateSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			fatalf("ensure schema: %v", err)
		}
	}

	pop, err := buildPopulation(ctx, p.Population)
	if err != nil {
		fatalf("init population: %v", err)
	}

	sum, err := engine.Run(ctx, p, store, pop)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	log.Printf("run ok: files=%d skipped=%d facts=%d dims_created=%d geocoded=%d in %s",
		sum.Files, sum.FilesSkipped, sum.FactsMerged, sum.DimensionsCreated,
		sum.RegionsGeocoded, time.Since(start).Truncate(time.Millisecond))
}

// metricsBackendName resolves the backend choice: flag, then the
// METRICS_BACKEND environment variable, then "none".
func metricsBackendName(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("METRICS_BACKEND"); v != "" {
		return v
	}
	return "none"
}

// initMetrics decides the backend from flag → env → default and installs it.
func initMetrics(job, backendName, gatewayURL, ddAddr string, verbose bool) {
	backendName = metricsBackendName(backendName)
	if job == "" {
		job = "epietl"
	}

	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s job=%s", gatewayURL, job)
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			Namespace:  "epietl.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s job=%s", ddAddr, job)
		metrics.SetBackend(b)

	case "none":
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func buildPopulation(ctx context.Context, p config.Population) (population.Lookup, error) {
	switch p.Kind {
	case "", "none":
		return population.None{}, nil
	case "file":
		s, err := population.LoadFile(ctx, p.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "static":
		return population.NewStatic(p.Values), nil
	default:
		return nil, fmt.Errorf("unsupported population.kind=%s", p.Kind)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
