// Package engine orchestrates a full ingestion run: list the source files,
// parse and derive them concurrently, reconcile dimension names, then merge
// facts and backfill coordinates inside one write transaction.
//
// Failure semantics are two-tier. A problem scoped to one file (unreadable,
// unparseable, no recognizable date column) skips that file and the run
// continues; anything touching the store is fatal and rolls the whole run
// back, so a failed run leaves the database exactly as it was.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"epietl/internal/aggregate"
	"epietl/internal/config"
	"epietl/internal/datasource/file"
	"epietl/internal/dimension"
	"epietl/internal/metrics"
	"epietl/internal/parser"
	csvparser "epietl/internal/parser/csv"
	jsonparser "epietl/internal/parser/json"
	"epietl/internal/population"
	"epietl/internal/schema"
	"epietl/internal/storage"
	"epietl/internal/transform"
)

// errAggLimit bounds how many individual error messages are kept verbatim
// for the end-of-run summary.
const errAggLimit = 3

// Summary reports what one run did.
type Summary struct {
	Files             int   // files fully processed
	FilesSkipped      int   // files dropped whole (unreadable, no date column)
	RowsParsed        int64 // data rows read from all processed files
	RowsDropped       int64 // rows dropped for unparseable or pre-epoch dates
	Observations      int64 // derived observations entering aggregation
	DimensionsCreated int   // dimension rows inserted this run
	FactsMerged       int64 // fact rows staged and merged
	RegionsGeocoded   int64 // regions whose coordinates were backfilled
}

// counters holds cross-goroutine statistics for the file stage.
type counters struct {
	rowsParsed   atomic.Int64
	rowsDropped  atomic.Int64
	observations atomic.Int64
	skipped      atomic.Int64
}

// fileResult is the output of the per-file stage, kept indexed by file
// position so downstream processing is deterministic regardless of which
// worker finished first.
type fileResult struct {
	path    string
	disease string
	obs     []transform.Observation
	skipped bool
}

// Run executes the pipeline described by spec against the given store.
// A nil pop behaves like population.None: rate columns are never converted.
func Run(ctx context.Context, spec config.Pipeline, store storage.Store, pop population.Lookup) (Summary, error) {
	var sum Summary

	paths, err := listFiles(spec.Source)
	if err != nil {
		return sum, err
	}
	if len(paths) == 0 {
		log.Printf("source: no ingestible files, nothing to do")
		return sum, nil
	}

	dims, err := store.LoadDimensions(ctx)
	if err != nil {
		return sum, fmt.Errorf("load dimensions: %w", err)
	}
	resolver := dimension.NewResolver(dims)

	diseases := diseaseTable(spec.Diseases)
	deriver := &transform.Deriver{Population: pop}

	workers := pickInt(spec.Runtime.FileWorkers, getenvInt("EPIETL_FILE_WORKERS", 4))
	log.Printf("run: job=%s files=%d workers=%d storage=%s",
		spec.Job, len(paths), workers, spec.Storage.Kind)

	var stats counters
	skipAgg := newErrAgg(errAggLimit)
	results := make([]fileResult, len(paths))

	parseStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := processFile(gctx, path, spec.Parser.Options, diseases, deriver, resolver, &stats)
			if err != nil {
				// Recoverable: drop the file, keep the run alive.
				skipAgg.add(fmt.Sprintf("%s: %v", filepath.Base(path), err))
				stats.skipped.Add(1)
				results[i] = fileResult{path: path, skipped: true}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordStep(spec.Job, "parse", err, time.Since(parseStart))
		return sum, err
	}
	metrics.RecordStep(spec.Job, "parse", nil, time.Since(parseStart))

	sum.FilesSkipped = int(stats.skipped.Load())
	sum.Files = len(paths) - sum.FilesSkipped
	sum.RowsParsed = stats.rowsParsed.Load()
	sum.RowsDropped = stats.rowsDropped.Load()
	sum.Observations = stats.observations.Load()
	metrics.RecordFiles(spec.Job, "processed", int64(sum.Files))
	metrics.RecordFiles(spec.Job, "skipped", int64(sum.FilesSkipped))
	metrics.RecordRow(spec.Job, "parsed", sum.RowsParsed)
	metrics.RecordRow(spec.Job, "dropped", sum.RowsDropped)
	metrics.RecordRow(spec.Job, "derived", sum.Observations)
	skipAgg.logSummary("skipped files")

	tx, err := store.Begin(ctx)
	if err != nil {
		return sum, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Printf("rollback: %v", rbErr)
			}
		}
	}()

	resolveStart := time.Now()
	created, err := resolver.CreatePending(ctx, tx)
	metrics.RecordStep(spec.Job, "resolve", err, time.Since(resolveStart))
	if err != nil {
		return sum, fmt.Errorf("create dimensions: %w", err)
	}
	sum.DimensionsCreated = created
	metrics.RecordRow(spec.Job, "dims_created", int64(created))

	rows, err := resolvedRows(results, resolver)
	if err != nil {
		return sum, err
	}

	mergeStart := time.Now()
	merged, err := tx.MergeFacts(ctx, aggregate.Facts(rows))
	metrics.RecordStep(spec.Job, "merge", err, time.Since(mergeStart))
	if err != nil {
		return sum, fmt.Errorf("merge facts: %w", err)
	}
	sum.FactsMerged = merged
	metrics.RecordRow(spec.Job, "facts_merged", merged)

	geoStart := time.Now()
	geocoded, err := tx.BackfillCoordinates(ctx, aggregate.Coordinates(rows))
	metrics.RecordStep(spec.Job, "geocode", err, time.Since(geoStart))
	if err != nil {
		return sum, fmt.Errorf("backfill coordinates: %w", err)
	}
	sum.RegionsGeocoded = geocoded
	metrics.RecordRow(spec.Job, "regions_geocoded", geocoded)

	if err = tx.Commit(ctx); err != nil {
		return sum, fmt.Errorf("commit: %w", err)
	}

	log.Printf("summary: files=%d skipped=%d parsed=%d dropped=%d observations=%d dims_created=%d facts=%d geocoded=%d",
		sum.Files, sum.FilesSkipped, sum.RowsParsed, sum.RowsDropped,
		sum.Observations, sum.DimensionsCreated, sum.FactsMerged, sum.RegionsGeocoded)
	return sum, nil
}

// processFile runs the whole per-file stage: open, parse, map the header,
// project, derive, and register the names seen with the resolver.
func processFile(
	ctx context.Context,
	path string,
	opts config.Options,
	diseases schema.DiseaseTable,
	deriver *transform.Deriver,
	resolver *dimension.Resolver,
	stats *counters,
) (fileResult, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return fileResult{}, err
	}
	defer rc.Close()

	table, err := pickParser(path, opts).Parse(rc)
	if err != nil {
		return fileResult{}, fmt.Errorf("parse: %w", err)
	}

	mapping := schema.MapColumns(table.Columns)
	if _, ok := mapping.Source[schema.FieldDate]; !ok {
		return fileResult{}, fmt.Errorf("no date column in header (fingerprint=%x)", mapping.Fingerprint)
	}
	if len(mapping.Unrecognized) > 0 {
		log.Printf("%s: %d unmapped columns (fingerprint=%x): %s",
			filepath.Base(path), len(mapping.Unrecognized), mapping.Fingerprint,
			strings.Join(mapping.Unrecognized, ", "))
	}

	obs, derived := deriver.Derive(schema.Project(table, mapping))
	stats.rowsParsed.Add(int64(derived.Rows))
	stats.rowsDropped.Add(int64(derived.DateDropped + derived.EpochDropped))
	stats.observations.Add(int64(len(obs)))

	disease := diseases.Detect(path)
	resolver.ObserveDisease(disease)
	for i := range obs {
		resolver.ObserveCountry(obs[i].Country)
	}
	return fileResult{path: path, disease: disease, obs: obs}, nil
}

// resolvedRows flattens the per-file observations into aggregation rows in
// file order, translating names to dimension ids.
func resolvedRows(results []fileResult, resolver *dimension.Resolver) ([]aggregate.Row, error) {
	var rows []aggregate.Row
	for _, res := range results {
		if res.skipped {
			continue
		}
		diseaseID, ok := resolver.DiseaseID(res.disease)
		if !ok {
			return nil, fmt.Errorf("disease %q missing after reconciliation", res.disease)
		}
		for _, o := range res.obs {
			regionID, ok := resolver.RegionID(o.Country)
			if !ok {
				return nil, fmt.Errorf("region %q missing after reconciliation", o.Country)
			}
			rows = append(rows, aggregate.Row{
				RegionID:    regionID,
				Date:        o.Date,
				DiseaseID:   diseaseID,
				NewDeaths:   o.NewDeaths,
				NewCases:    o.NewCases,
				TotalDeaths: o.Deaths,
				TotalCases:  o.Confirmed,
				Latitude:    o.Latitude,
				Longitude:   o.Longitude,
			})
		}
	}
	return rows, nil
}

// listFiles expands the source spec into a sorted list of ingestible paths.
func listFiles(src config.Source) ([]string, error) {
	switch src.Kind {
	case "dir":
		return file.ListDatasets(src.Dir.Path)
	case "files":
		paths := make([]string, 0, len(src.Files))
		for _, p := range src.Files {
			if !file.Ingestible(p) {
				log.Printf("source: skipping %s (unsupported extension)", p)
				continue
			}
			paths = append(paths, p)
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", src.Kind)
	}
}

// pickParser selects the parser by file extension. Everything that is not
// JSON goes through the delimited parser.
func pickParser(path string, opts config.Options) parser.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return jsonparser.New()
	}
	return csvparser.New(opts)
}

// diseaseTable prepends run-specific rules to the built-in keyword table.
func diseaseTable(rules []config.DiseaseRule) schema.DiseaseTable {
	table := make(schema.DiseaseTable, 0, len(rules)+6)
	for _, r := range rules {
		table = append(table, schema.DiseaseRule{Keyword: strings.ToLower(r.Keyword), Label: r.Label})
	}
	return append(table, schema.DefaultDiseases()...)
}

func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// errAgg aggregates recoverable errors, keeping the first few verbatim.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) logSummary(what string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", what, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
