// Package postgres implements the dimensional store on Postgres using pgx v5.
// Fact rows are bulk-transferred with COPY into a transaction-scoped temp
// table and merged into the fact table with an ON CONFLICT upsert, so a run
// performs no per-row round trips.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"epietl/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a Postgres-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool to the given DSN.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS country (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS region (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		country_id BIGINT NOT NULL REFERENCES country(id),
		latitude   DOUBLE PRECISION,
		longitude  DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS disease (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS statistic (
		region_id    BIGINT NOT NULL REFERENCES region(id),
		date         DATE NOT NULL,
		disease_id   BIGINT NOT NULL REFERENCES disease(id),
		new_deaths   BIGINT NOT NULL DEFAULT 0,
		new_cases    BIGINT NOT NULL DEFAULT 0,
		total_deaths BIGINT NOT NULL DEFAULT 0,
		total_cases  BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (region_id, date)
	)`,
}

// EnsureSchema creates the dimension and fact tables if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// LoadDimensions reads all persisted dimension rows.
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
		rows, err := s.pool.Query(ctx, q.sql)
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

// Begin opens the run's write transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) CreateCountry(ctx context.Context, name string) (int64, error) {
	return t.insertReturningID(ctx, "INSERT INTO country (name) VALUES ($1) RETURNING id", name)
}

func (t *Tx) CreateRegion(ctx context.Context, name string, countryID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		"INSERT INTO region (name, country_id) VALUES ($1, $2) RETURNING id",
		name, countryID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create region %q: %w", name, err)
	}
	return id, nil
}

func (t *Tx) CreateDisease(ctx context.Context, name string) (int64, error) {
	return t.insertReturningID(ctx, "INSERT INTO disease (name) VALUES ($1) RETURNING id", name)
}

func (t *Tx) insertReturningID(ctx context.Context, sql, name string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, sql, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("create dimension %q: %w", name, err)
	}
	return id, nil
}

// MergeFacts performs COPY into a temp staging table followed by the upsert
// merge into statistic, keyed by (region_id, date).
func (t *Tx) MergeFacts(ctx context.Context, rows []storage.FactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if _, err := t.tx.Exec(ctx, `
		CREATE TEMP TABLE staging_statistic
		(LIKE statistic INCLUDING DEFAULTS)
		ON COMMIT DROP`,
	); err != nil {
		return 0, fmt.Errorf("create staging: %w", err)
	}

	copyRows := make([][]any, 0, len(rows))
	for _, r := range rows {
		copyRows = append(copyRows, []any{
			r.RegionID, r.Date, r.DiseaseID,
			r.NewDeaths, r.NewCases, r.TotalDeaths, r.TotalCases,
		})
	}
	if _, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"staging_statistic"},
		storage.FactColumns,
		pgx.CopyFromRows(copyRows),
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into staging: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy into staging: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `
		INSERT INTO statistic
			(region_id, date, disease_id, new_deaths, new_cases, total_deaths, total_cases)
		SELECT region_id, date, disease_id, new_deaths, new_cases, total_deaths, total_cases
		FROM staging_statistic
		ON CONFLICT (region_id, date) DO UPDATE SET
			disease_id   = EXCLUDED.disease_id,
			new_deaths   = EXCLUDED.new_deaths,
			new_cases    = EXCLUDED.new_cases,
			total_deaths = EXCLUDED.total_deaths,
			total_cases  = EXCLUDED.total_cases`,
	)
	if err != nil {
		return 0, fmt.Errorf("merge staging: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BackfillCoordinates applies the updates as one parameterized statement;
// rows with an already-set coordinate are never touched.
func (t *Tx) BackfillCoordinates(ctx context.Context, updates []storage.GeoUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(updates))
	lats := make([]float64, len(updates))
	longs := make([]float64, len(updates))
	for i, u := range updates {
		ids[i] = u.RegionID
		lats[i] = u.Latitude
		longs[i] = u.Longitude
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE region AS r SET
			latitude  = u.latitude,
			longitude = u.longitude
		FROM (
			SELECT unnest($1::bigint[])  AS id,
			       unnest($2::float8[]) AS latitude,
			       unnest($3::float8[]) AS longitude
		) AS u
		WHERE r.id = u.id
		  AND r.latitude IS NULL
		  AND r.longitude IS NULL`,
		ids, lats, longs,
	)
	if err != nil {
		return 0, fmt.Errorf("backfill coordinates: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
