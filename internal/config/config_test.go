package config

import (
	"encoding/json"
	"testing"
)

func TestDecodePipeline_Full(t *testing.T) {
	t.Parallel()

	raw := `{
	  "job": "who_daily",
	  "source": { "kind": "dir", "dir": { "path": "./datasets" } },
	  "parser": { "options": { "comma": ";", "lazy_quotes": true } },
	  "diseases": [ { "keyword": "influenza", "label": "Influenza" } ],
	  "population": { "kind": "static", "values": { "France": 67000000 } },
	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://x", "auto_create_schema": true } },
	  "runtime": { "file_workers": 4, "batch_size": 500 }
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Job != "who_daily" {
		t.Errorf("Job = %q, want who_daily", p.Job)
	}
	if p.Source.Kind != "dir" || p.Source.Dir.Path != "./datasets" {
		t.Errorf("Source = %+v", p.Source)
	}
	if got := p.Parser.Options.Rune("comma", ','); got != ';' {
		t.Errorf("comma = %q, want ';'", got)
	}
	if !p.Parser.Options.Bool("lazy_quotes", false) {
		t.Errorf("lazy_quotes = false, want true")
	}
	if len(p.Diseases) != 1 || p.Diseases[0].Label != "Influenza" {
		t.Errorf("Diseases = %+v", p.Diseases)
	}
	if p.Population.Values["France"] != 67000000 {
		t.Errorf("Population.Values = %+v", p.Population.Values)
	}
	if !p.Storage.DB.AutoCreateSchema {
		t.Errorf("AutoCreateSchema = false, want true")
	}
	if p.Runtime.FileWorkers != 4 || p.Runtime.BatchSize != 500 {
		t.Errorf("Runtime = %+v", p.Runtime)
	}
}

// Missing or null options must decode to a non-nil empty map.
func TestOptions_DecodeNull(t *testing.T) {
	t.Parallel()

	var p Pipeline
	if err := json.Unmarshal([]byte(`{"parser":{"options":null}}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Parser.Options == nil {
		t.Fatalf("Options is nil, want empty map")
	}
	if got := p.Parser.Options.String("comma", ","); got != "," {
		t.Errorf("default lookup = %q, want \",\"", got)
	}
}

func TestOptions_TypedAccess(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "x",
		"b":  true,
		"n":  float64(7), // JSON numbers decode as float64
		"i":  3,
		"r":  "|",
		"bad": []any{"nope"},
	}

	if got := o.String("s", "d"); got != "x" {
		t.Errorf("String = %q", got)
	}
	if got := o.String("bad", "d"); got != "d" {
		t.Errorf("String(bad) = %q, want default", got)
	}
	if !o.Bool("b", false) {
		t.Errorf("Bool = false")
	}
	if got := o.Int("n", 0); got != 7 {
		t.Errorf("Int(float64) = %d", got)
	}
	if got := o.Int("i", 0); got != 3 {
		t.Errorf("Int(int) = %d", got)
	}
	if got := o.Rune("r", ','); got != '|' {
		t.Errorf("Rune = %q", got)
	}
	if got := o.Rune("missing", ','); got != ',' {
		t.Errorf("Rune(missing) = %q, want ','", got)
	}
}
