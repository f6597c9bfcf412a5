// Package mssql implements the dimensional store on SQL Server. Fact rows
// are bulk-copied into a #staging temp table and merged into statistic with
// a MERGE statement; dimension inserts return ids via OUTPUT INSERTED.id.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"epietl/internal/storage"
)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a SQL Server-backed storage.Store.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var schemaDDL = []string{
	`IF OBJECT_ID('country', 'U') IS NULL
	CREATE TABLE country (
		id   BIGINT IDENTITY(1,1) PRIMARY KEY,
		name NVARCHAR(255) NOT NULL UNIQUE
	)`,
	`IF OBJECT_ID('region', 'U') IS NULL
	CREATE TABLE region (
		id         BIGINT IDENTITY(1,1) PRIMARY KEY,
		name       NVARCHAR(255) NOT NULL UNIQUE,
		country_id BIGINT NOT NULL REFERENCES country(id),
		latitude   FLOAT NULL,
		longitude  FLOAT NULL
	)`,
	`IF OBJECT_ID('disease', 'U') IS NULL
	CREATE TABLE disease (
		id   BIGINT IDENTITY(1,1) PRIMARY KEY,
		name NVARCHAR(255) NOT NULL UNIQUE
	)`,
	`IF OBJECT_ID('statistic', 'U') IS NULL
	CREATE TABLE statistic (
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
	return t.insert(ctx, "INSERT INTO country (name) OUTPUT INSERTED.id VALUES (@p1)", name)
}

func (t *Tx) CreateRegion(ctx context.Context, name string, countryID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		"INSERT INTO region (name, country_id) OUTPUT INSERTED.id VALUES (@p1, @p2)",
		name, countryID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create region %q: %w", name, err)
	}
	return id, nil
}

func (t *Tx) CreateDisease(ctx context.Context, name string) (int64, error) {
	return t.insert(ctx, "INSERT INTO disease (name) OUTPUT INSERTED.id VALUES (@p1)", name)
}

func (t *Tx) insert(ctx context.Context, query, name string) (int64, error) {
	var id int64
	if err := t.tx.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("create dimension %q: %w", name, err)
	}
	return id, nil
}

func (t *Tx) MergeFacts(ctx context.Context, rows []storage.FactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := t.tx.ExecContext(ctx, `
		CREATE TABLE #staging_statistic (
			region_id    BIGINT NOT NULL,
			date         DATE NOT NULL,
			disease_id   BIGINT NOT NULL,
			new_deaths   BIGINT NOT NULL,
			new_cases    BIGINT NOT NULL,
			total_deaths BIGINT NOT NULL,
			total_cases  BIGINT NOT NULL
		)`,
	); err != nil {
		return 0, fmt.Errorf("create staging: %w", err)
	}

	bulk, err := t.tx.PrepareContext(ctx,
		mssql.CopyIn("#staging_statistic", mssql.BulkOptions{}, storage.FactColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy: %w", err)
	}
	for _, r := range rows {
		if _, err := bulk.ExecContext(ctx,
			r.RegionID, r.Date, r.DiseaseID,
			r.NewDeaths, r.NewCases, r.TotalDeaths, r.TotalCases,
		); err != nil {
			bulk.Close()
			return 0, fmt.Errorf("bulk copy: %w", err)
		}
	}
	// The final no-arg Exec flushes the bulk batch.
	if _, err := bulk.ExecContext(ctx); err != nil {
		bulk.Close()
		return 0, fmt.Errorf("flush bulk copy: %w", err)
	}
	if err := bulk.Close(); err != nil {
		return 0, fmt.Errorf("close bulk copy: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		MERGE statistic AS target
		USING #staging_statistic AS src
		ON target.region_id = src.region_id AND target.date = src.date
		WHEN MATCHED THEN UPDATE SET
			disease_id   = src.disease_id,
			new_deaths   = src.new_deaths,
			new_cases    = src.new_cases,
			total_deaths = src.total_deaths,
			total_cases  = src.total_cases
		WHEN NOT MATCHED THEN INSERT
			(region_id, date, disease_id, new_deaths, new_cases, total_deaths, total_cases)
			VALUES (src.region_id, src.date, src.disease_id,
				src.new_deaths, src.new_cases, src.total_deaths, src.total_cases);`,
	)
	if err != nil {
		return 0, fmt.Errorf("merge staging: %w", err)
	}
	return res.RowsAffected()
}

func (t *Tx) BackfillCoordinates(ctx context.Context, updates []storage.GeoUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE region SET latitude = @p1, longitude = @p2
		WHERE id = @p3 AND latitude IS NULL AND longitude IS NULL`,
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
