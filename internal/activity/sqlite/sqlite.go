// Package sqlite provides a SQLite-backed activity.Store.
//
// Units are stored as a JSON column so that an activity is always written and
// read as a whole; there is no partial update path. The database is opened in
// WAL mode and the schema is created on Open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/rshade/adcarbon/internal/activity"
)

const schema = `
CREATE TABLE IF NOT EXISTS activities (
	id            TEXT PRIMARY KEY,
	channel       TEXT NOT NULL,
	market        TEXT NOT NULL,
	activity_date TEXT NOT NULL,
	scope         INTEGER NOT NULL,
	activity_type TEXT NOT NULL DEFAULT '',
	campaign      TEXT NOT NULL DEFAULT '',
	units         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_channel ON activities(channel);
CREATE INDEX IF NOT EXISTS idx_activities_market ON activities(market);
`

// Store implements activity.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ activity.Store = (*Store)(nil)

// Open opens (or creates) the database at dsn and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn cannot be empty")
	}
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Put inserts or replaces an activity.
func (s *Store) Put(ctx context.Context, a activity.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	units, err := json.Marshal(a.Units)
	if err != nil {
		return fmt.Errorf("encoding units: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activities (id, channel, market, activity_date, scope, activity_type, campaign, units, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel = excluded.channel,
			market = excluded.market,
			activity_date = excluded.activity_date,
			scope = excluded.scope,
			activity_type = excluded.activity_type,
			campaign = excluded.campaign,
			units = excluded.units,
			updated_at = excluded.updated_at`,
		a.ID, a.Channel, a.Market, a.Date.Format(activity.DateLayout), int(a.Scope),
		a.ActivityType, a.Campaign, string(units),
		a.CreatedAt.UTC().Format(time.RFC3339Nano), a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing activity %s: %w", a.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, channel, market, activity_date, scope, activity_type, campaign, units, created_at, updated_at FROM activities`

// Get returns the activity with id, or activity.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (activity.Activity, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return activity.Activity{}, activity.ErrNotFound
	}
	return a, err
}

// List returns every activity ordered by ID.
func (s *Store) List(ctx context.Context) ([]activity.Activity, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()

	var out []activity.Activity
	for rows.Next() {
		a, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes the activity with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting activity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting activity %s: %w", id, err)
	}
	if n == 0 {
		return activity.ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(r scanner) (activity.Activity, error) {
	var (
		a                    activity.Activity
		date, units          string
		scope                int
		createdAt, updatedAt string
	)
	if err := r.Scan(&a.ID, &a.Channel, &a.Market, &date, &scope, &a.ActivityType, &a.Campaign,
		&units, &createdAt, &updatedAt); err != nil {
		return activity.Activity{}, err
	}
	a.Scope = activity.Scope(scope)

	var err error
	if a.Date, err = time.Parse(activity.DateLayout, date); err != nil {
		return activity.Activity{}, fmt.Errorf("parsing date of %s: %w", a.ID, err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return activity.Activity{}, fmt.Errorf("parsing created_at of %s: %w", a.ID, err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return activity.Activity{}, fmt.Errorf("parsing updated_at of %s: %w", a.ID, err)
	}
	if err = json.Unmarshal([]byte(units), &a.Units); err != nil {
		return activity.Activity{}, fmt.Errorf("decoding units of %s: %w", a.ID, err)
	}
	return a, nil
}
