// Package db keeps Records across runs in a relational table, together with
// a history of pipeline runs. The cloud store is Postgres; without cloud
// credentials a local SQLite file is used instead.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"mspro-labs/city-pulse/internal/config"
	"mspro-labs/city-pulse/internal/dedupe"
	"mspro-labs/city-pulse/internal/models"
)

var logger = log.New(os.Stdout, "DB: ", log.LstdFlags|log.Lshortfile)

// Store is the table exporter.
type Store interface {
	// SaveRecords marks every row of location inactive and upserts records
	// as active rows. It returns the number of rows written.
	SaveRecords(ctx context.Context, location string, records []models.Record) (int64, error)
	// ListRecords returns the active rows of location, or of every location
	// when location is empty.
	ListRecords(ctx context.Context, location string) ([]models.Record, error)
	ListLocations(ctx context.Context) ([]string, error)
	RecordRun(ctx context.Context, run Run) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
	// Kind names the backend, for log and summary lines.
	Kind() string
}

// Run is one entry of the run history.
type Run struct {
	ID         string
	Location   string
	Categories []string
	Sources    []string
	Fetched    int
	Rejected   int
	Unique     int
	Failed     int
	Output     string
	TableErr   string
	StartedAt  time.Time
}

// Open returns the Postgres store when a cloud URL is configured and the
// local SQLite store otherwise.
func Open(app config.AppConfig) (Store, error) {
	if app.CloudDBURL != "" {
		return ConnectPostgres(app.CloudDBURL)
	}
	logger.Printf("No cloud database configured; using local database at %s", app.DBPath)
	return Connect(app.DBPath)
}

// sqlStore holds the queries both backends share. Queries are written with
// "?" placeholders and rebound for the driver.
type sqlStore struct {
	db       *sql.DB
	kind     string
	numbered bool
}

func (s *sqlStore) Kind() string { return s.kind }

func (s *sqlStore) Close() error { return s.db.Close() }

// rebind rewrites "?" placeholders to "$1", "$2"... for Postgres.
func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertSQL = `
INSERT INTO shops (
  location, identity_key, contact_key, name, category, rating, reviews,
  address, phone, website, hours, source, last_seen_at, is_active
) VALUES (
  ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1
) ON CONFLICT (location, identity_key, contact_key) DO UPDATE SET
  name = excluded.name,
  category = excluded.category,
  rating = COALESCE(excluded.rating, shops.rating),
  reviews = COALESCE(excluded.reviews, shops.reviews),
  address = COALESCE(excluded.address, shops.address),
  phone = COALESCE(excluded.phone, shops.phone),
  website = COALESCE(excluded.website, shops.website),
  hours = COALESCE(excluded.hours, shops.hours),
  source = excluded.source,
  last_seen_at = CURRENT_TIMESTAMP,
  is_active = 1
`

// SaveRecords performs a batch UPSERT in one transaction. Absent incoming
// values keep what the table already has.
func (s *sqlStore) SaveRecords(ctx context.Context, location string, records []models.Record) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE shops SET is_active = 0 WHERE location = ? AND is_active = 1`), location); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to mark %s rows inactive: %w", location, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertSQL))
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var totalAffected int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			location,
			dedupe.Key(r.Name),
			dedupe.ContactKey(r),
			r.Name,
			r.Category,
			nullFloat(r.Rating),
			nullInt(r.Reviews),
			nullString(r.Address),
			nullString(r.Phone),
			nullString(r.Website),
			nullString(r.Hours),
			string(r.Source),
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to upsert %s: %w", r.Name, err)
		}
		rows, _ := res.RowsAffected()
		totalAffected += rows
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return totalAffected, nil
}

// ListRecords returns active rows, ordered by category then name.
func (s *sqlStore) ListRecords(ctx context.Context, location string) ([]models.Record, error) {
	query := `
		SELECT name, category, rating, reviews, address, phone, website, hours, source
		FROM shops
		WHERE is_active = 1`
	var args []any
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			r                              models.Record
			rating                         sql.NullFloat64
			reviews                        sql.NullInt64
			address, phone, website, hours sql.NullString
			source                         string
		)
		if err := rows.Scan(&r.Name, &r.Category, &rating, &reviews, &address, &phone, &website, &hours, &source); err != nil {
			return nil, err
		}
		if rating.Valid {
			r.Rating = models.Float(rating.Float64)
		}
		if reviews.Valid {
			r.Reviews = models.Int(int(reviews.Int64))
		}
		r.Address, r.Phone, r.Website, r.Hours = address.String, phone.String, website.String, hours.String
		r.Source = models.Source(source)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListLocations returns every location with at least one active row.
func (s *sqlStore) ListLocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT location FROM shops WHERE is_active = 1 ORDER BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// RecordRun appends run to the history.
func (s *sqlStore) RecordRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, location, categories, sources, fetched, rejected, unique_count, failed, output, table_error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Location, strings.Join(run.Categories, ","), strings.Join(run.Sources, ","),
		run.Fetched, run.Rejected, run.Unique, run.Failed, run.Output, run.TableErr, run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, location, categories, sources, fetched, rejected, unique_count, failed, output, table_error, started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			cats, srcs string
		)
		if err := rows.Scan(&r.ID, &r.Location, &cats, &srcs, &r.Fetched, &r.Rejected, &r.Unique, &r.Failed,
			&r.Output, &r.TableErr, &r.StartedAt); err != nil {
			return nil, err
		}
		r.Categories = splitList(cats)
		r.Sources = splitList(srcs)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
