// Package storage contains the storage-agnostic contracts for the dimensional
// store plus a registry of concrete backends.
//
// The engine depends only on Store and Tx; concrete backends (postgres,
// sqlite, mysql, mssql) live in subpackages and register themselves with the
// factory at init time. Importing storage/all (even blank) makes every
// built-in backend available at runtime.
package storage

import (
	"context"
	"time"
)

// Config holds backend-independent store configuration.
type Config struct {
	// Kind selects the registered backend, e.g. "postgres".
	Kind string

	// DSN is the backend connection string.
	DSN string

	// BatchSize bounds staged-row batches for backends without a native
	// bulk-copy primitive. Zero means the backend default.
	BatchSize int
}

// Dimensions is the full snapshot of persisted dimension rows, keyed by
// natural key (the name exactly as stored). Read once at run start; the
// store remains the source of truth across runs.
type Dimensions struct {
	Countries map[string]int64
	Regions   map[string]int64
	Diseases  map[string]int64
}

// FactRow is one aggregated statistic destined for the fact table, uniquely
// keyed by (RegionID, Date).
type FactRow struct {
	RegionID    int64
	Date        time.Time
	DiseaseID   int64
	NewDeaths   int64
	NewCases    int64
	TotalDeaths int64
	TotalCases  int64
}

// FactColumns is the staging and merge column order for fact rows.
var FactColumns = []string{
	"region_id", "date", "disease_id",
	"new_deaths", "new_cases", "total_deaths", "total_cases",
}

// GeoUpdate is a candidate coordinate pair for one region. It is applied
// only where both stored coordinates are currently null.
type GeoUpdate struct {
	RegionID  int64
	Latitude  float64
	Longitude float64
}

// Store is an open connection to a dimensional store.
type Store interface {
	// LoadDimensions reads every persisted dimension row. It may use its
	// own read transaction; it never blocks the write path.
	LoadDimensions(ctx context.Context) (Dimensions, error)

	// EnsureSchema creates the dimension and fact tables if absent.
	EnsureSchema(ctx context.Context) error

	// Begin opens the run's single write transaction.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the underlying connections.
	Close() error
}

// Tx is the run's write transaction. Nothing performed through a Tx is
// visible until Commit returns nil; Rollback discards everything.
type Tx interface {
	// CreateCountry inserts a country row and returns its assigned id.
	CreateCountry(ctx context.Context, name string) (int64, error)

	// CreateRegion inserts a region row referencing its country and returns
	// the assigned region id.
	CreateRegion(ctx context.Context, name string, countryID int64) (int64, error)

	// CreateDisease inserts a disease row and returns its assigned id.
	CreateDisease(ctx context.Context, name string) (int64, error)

	// MergeFacts bulk-transfers rows into a transient staging area and
	// merges them into the fact table: insert on absent key, overwrite the
	// mutable measures on conflict of (region_id, date). Returns the number
	// of staged rows merged.
	MergeFacts(ctx context.Context, rows []FactRow) (int64, error)

	// BackfillCoordinates applies the updates to regions whose latitude and
	// longitude are both currently null. Always parameterized; backends with
	// array support do it in one statement. Returns the number of regions
	// updated.
	BackfillCoordinates(ctx context.Context, updates []GeoUpdate) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
