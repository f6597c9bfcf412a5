// Package config defines the canonical, JSON-serializable configuration model
// for an ingestion run. It is intentionally small, explicit, and dependency-
// free so that run specs can be loaded from disk (or other sources) and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":     "who_daily",
//	  "source":  { "kind": "dir", "dir": { "path": "./datasets" } },
//	  "parser":  { "options": { "comma": ";" } },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." } },
//	  "population": { "kind": "file", "path": "./population.csv" }
//	}
package config

import "encoding/json"

// Pipeline describes a full ingestion run in JSON. It is the top-level object
// decoded from a run file.
type Pipeline struct {
	// Job names the run for metrics labeling and log lines.
	Job string `json:"job"`

	// Source describes where input files come from.
	Source Source `json:"source"`

	// Parser configures how raw bytes are turned into records. The same
	// options apply to every delimited file in the run; JSON files need no
	// configuration.
	Parser Parser `json:"parser"`

	// Diseases optionally extends the built-in filename keyword table.
	// Rules are checked in order before the built-in rules.
	Diseases []DiseaseRule `json:"diseases,omitempty"`

	// Population configures the population lookup used for rate-column
	// conversion. When absent, rate columns are never converted.
	Population Population `json:"population"`

	// Storage describes the persistent dimensional store.
	Storage Storage `json:"storage"`

	// Runtime controls concurrency and batching.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies where the run's input files come from.
type Source struct {
	// Kind selects the source implementation: "dir" or "files".
	Kind string `json:"kind"`

	// Dir carries options for the "dir" source kind: every .csv/.json file
	// in the directory is ingested, in sorted name order.
	Dir SourceDir `json:"dir"`

	// Files is an explicit file list for the "files" source kind.
	Files []string `json:"files,omitempty"`
}

// SourceDir holds configuration for the "dir" source kind.
type SourceDir struct {
	// Path is the local filesystem path to the dataset directory.
	Path string `json:"path"`
}

// Parser selects how delimited files are split into rows and columns.
type Parser struct {
	// Options is a free-form map interpreted by the CSV parser. Typical keys:
	//   comma (string), lazy_quotes (bool), trim_space (bool)
	Options Options `json:"options"`
}

// DiseaseRule maps a lowercase filename substring to a canonical disease
// label, e.g. {"keyword": "influenza", "label": "Influenza"}.
type DiseaseRule struct {
	Keyword string `json:"keyword"`
	Label   string `json:"label"`
}

// Population configures the population lookup collaborator.
type Population struct {
	// Kind selects the implementation: "none" (default), "file", or "static".
	Kind string `json:"kind"`

	// Path is the CSV file for the "file" kind (columns: country, population).
	Path string `json:"path,omitempty"`

	// Values is an inline country → population map for the "static" kind.
	Values map[string]int64 `json:"values,omitempty"`
}

// Storage selects the dimensional store used to persist the run.
type Storage struct {
	// Kind selects the storage implementation: "postgres", "sqlite",
	// "mysql", or "mssql".
	Kind string `json:"kind"`

	// DB configures the selected backend.
	DB DBConfig `json:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the backend connection string (pgx, go-sql-driver, go-mssqldb,
	// or a SQLite path, depending on Kind).
	DSN string `json:"dsn"`

	// AutoCreateSchema creates the dimension and fact tables at startup if
	// they do not exist.
	AutoCreateSchema bool `json:"auto_create_schema"`
}

// RuntimeConfig controls concurrency and batching. Zero values fall back to
// EPIETL_* environment variables, then to built-in defaults.
type RuntimeConfig struct {
	// FileWorkers bounds the number of files parsed and derived in parallel.
	FileWorkers int `json:"file_workers"`

	// BatchSize is the staged-row batch size for backends without a native
	// bulk-copy primitive.
	BatchSize int `json:"batch_size"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such
// as a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object decodes to a non-nil, empty Options map. This simplifies
// call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
