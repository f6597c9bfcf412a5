// Package mysql implements the dimensional store on MySQL/MariaDB. Fact rows
// are staged with multi-row inserts into a session temporary table and
// merged with INSERT ... ON DUPLICATE KEY UPDATE. MySQL reports two affected
// rows per updated conflict, so MergeFacts returns the staged row count
// instead of RowsAffected.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"epietl/internal/storage"
)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN, cfg.BatchSize)
	})
}

// defaultBatch bounds the number of value tuples per staging INSERT so the
// statement stays well under max_allowed_packet.
const defaultBatch = 500

// Store is a MySQL-backed storage.Store.
type Store struct {
	db    *sql.DB
	batch int
}

// Open connects to the DSN and verifies the connection. batch bounds the
// staging INSERT size; zero or negative selects the default.
func Open(ctx context.Context, dsn string, batch int) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if batch <= 0 {
		batch = defaultBatch
	}
	return &Store{db: db, batch: batch}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS country (
		id   BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS region (
		id         BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255) NOT NULL UNIQUE,
		country_id BIGINT NOT NULL,
		latitude   DOUBLE NULL,
		longitude  DOUBLE NULL,
		FOREIGN KEY (country_id) REFERENCES country(id)
	)`,
	`CREATE TABLE IF NOT EXISTS disease (
		id   BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS statistic (
		region_id    BIGINT NOT NULL,
		date         DATE NOT NULL,
		disease_id   BIGINT NOT NULL,
		new_deaths   BIGINT NOT NULL DEFAULT 0,
		new_cases    BIGINT NOT NULL DEFAULT 0,
		total_deaths BIGINT NOT NULL DEFAULT 0,
		total_cases  BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (region_id, date),
		FOREIGN KEY (region_id) REFERENCES region(id),
		FOREIGN KEY (disease_id) REFERENCES disease(id)
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
	return &Tx{tx: tx, batch: s.batch}, nil
}

// Tx wraps a database/sql transaction. CREATE TEMPORARY TABLE does not
// trigger MySQL's implicit commit, so staging stays inside the transaction.
type Tx struct {
	tx    *sql.Tx
	batch int
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

func (t *Tx) MergeFacts(ctx context.Context, rows []storage.FactRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if _, err := t.tx.ExecContext(ctx,
		"CREATE TEMPORARY TABLE staging_statistic LIKE statistic",
	); err != nil {
		return 0, fmt.Errorf("create staging: %w", err)
	}

	cols := strings.Join(storage.FactColumns, ", ")
	for start := 0; start < len(rows); start += t.batch {
		end := start + t.batch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*len(storage.FactColumns))
		for _, r := range batch {
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.RegionID, r.Date.Format("2006-01-02"), r.DiseaseID,
				r.NewDeaths, r.NewCases, r.TotalDeaths, r.TotalCases,
			)
		}
		stmt := fmt.Sprintf("INSERT INTO staging_statistic (%s) VALUES %s",
			cols, strings.Join(placeholders, ", "))
		if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("stage facts: %w", err)
		}
	}

	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO statistic (%s)
		SELECT %s FROM staging_statistic
		ON DUPLICATE KEY UPDATE
			disease_id   = VALUES(disease_id),
			new_deaths   = VALUES(new_deaths),
			new_cases    = VALUES(new_cases),
			total_deaths = VALUES(total_deaths),
			total_cases  = VALUES(total_cases)`,
		cols, cols,
	)); err != nil {
		return 0, fmt.Errorf("merge staging: %w", err)
	}
	return int64(len(rows)), nil
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
