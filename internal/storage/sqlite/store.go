// Package sqlite implements the dimensional store on SQLite via the pure-Go
// modernc.org/sqlite driver. Useful for local runs and tests where no server
// is available; the merge uses SQLite's native ON CONFLICT upsert.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"epietl/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

// Open opens the database file named by dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS country (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS region (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		country_id INTEGER NOT NULL REFERENCES country(id),
		latitude   REAL,
		longitude  REAL
	)`,
	`CREATE TABLE IF NOT EXISTS disease (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS statistic (
		region_id    INTEGER NOT NULL REFERENCES region(id),
		date         TEXT NOT NULL,
		disease_id   INTEGER NOT NULL REFERENCES disease(id),
		new_deaths   INTEGER NOT NULL DEFAULT 0,
		new_cases    INTEGER NOT NULL DEFAULT 0,
		total_deaths INTEGER NOT NULL DEFAULT 0,
		total_cases  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (region_id, date)
	)`,
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadDimensions(ctx context.Context) (storage.Dimensions, error) {
	dims := storage.Dimensions{
		Countries: map[string]int64{},
		Regions:   map[string]int64{},
		Diseases:  map[string]int64{},
	}
	for _, q := range []struct {
		sql  string
		into map[string]int64
	}{
		{"SELECT id, name FROM country", dims.Countries},
		{"SELECT id, name FROM region", dims.Regions},
		{"SELECT id, name FROM disease", dims.Diseases},
	} {
		rows, err := s.db.QueryContext(ctx, q.sql)
		if err != nil {
			return storage.Dimensions{}, fmt.Errorf("load dimensions: %w", err)
		}
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return storage.Dimensions{}, fmt.Errorf("load dimensions: %w", err)
			}
			q.into[name] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storage.Dimensions{}, fmt.Errorf("load dimensions: %w", err)
		}
	}
	return dims, nil
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a database/sql transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) CreateCountry(ctx context.Context, name string) (int64, error) {
	return t.insert(ctx, "INSERT INTO country (name) VALUES (?)", name)
}

func (t *Tx) CreateRegion(ctx context.Context, name string, countryID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "INSERT INTO region (name, country_id) VALUES (?, ?)", name, countryID)
	if err != nil {
		return 0, fmt.Errorf("create region %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (t *Tx) CreateDisease(ctx context.Context, name string) (int64, error) {
	return t.insert(ctx, "INSERT INTO disease (name) VALUES (?)", name)
}

func (t *Tx) insert(ctx context.Context, query, name string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, name)
	if err != nil {
		return 0, fmt.Errorf("create dimension %q: %w", name, err)
	}
	return res.LastInsertId()
}

const mergeFactSQL = `
	INSERT INTO statistic
		(region_id, date, disease_id, new_deaths, new_cases, total_deaths, total_cases)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (region_id, date) DO UPDATE SET
		disease_id   = excluded.disease_id,
		new_deaths   = excluded.new_deaths,
		new_cases    = excluded.new_cases,
		total_deaths = excluded.total_deaths,
		total_cases  = excluded.total_cases`

// MergeFacts upserts rows one statement at a time through a prepared
// statement; inside a single transaction this is fast enough for SQLite.
func (t *Tx) MergeFacts(ctx context.Context, rows []storage.FactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, mergeFactSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close()

	var merged int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.RegionID, r.Date.Format("2006-01-02"), r.DiseaseID,
			r.NewDeaths, r.NewCases, r.TotalDeaths, r.TotalCases,
		); err != nil {
			return merged, fmt.Errorf("merge fact region=%d date=%s: %w",
				r.RegionID, r.Date.Format("2006-01-02"), err)
		}
		merged++
	}
	return merged, nil
}

func (t *Tx) BackfillCoordinates(ctx context.Context, updates []storage.GeoUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE region SET latitude = ?, longitude = ?
		WHERE id = ? AND latitude IS NULL AND longitude IS NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare backfill: %w", err)
	}
	defer stmt.Close()

	var updated int64
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Latitude, u.Longitude, u.RegionID)
		if err != nil {
			return updated, fmt.Errorf("backfill region=%d: %w", u.RegionID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return updated, fmt.Errorf("backfill region=%d: %w", u.RegionID, err)
		}
		updated += n
	}
	return updated, nil
}

func (t *Tx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *Tx) Rollback(context.Context) error { return t.tx.Rollback() }
