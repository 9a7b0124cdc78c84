// Package store persists a history of analysis runs so repeated monitoring
// of the same location can be compared over time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ecolens/internal/model"
)

// Store records completed runs in SQLite via modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	location_name   TEXT NOT NULL,
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	layer           TEXT NOT NULL,
	before_date     TEXT NOT NULL,
	after_date      TEXT NOT NULL,
	change_type     TEXT NOT NULL,
	severity_score  INTEGER NOT NULL,
	affected_pct    REAL NOT NULL,
	cost_usd        REAL NOT NULL,
	report          TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_location ON runs(location_name);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate applies the schema. Safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists a completed report. The full report is stored as JSON
// alongside the indexed columns used for listing and trend queries.
func (s *Store) SaveRun(ctx context.Context, r *model.AnalysisReport) error {
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "store: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, location_name, latitude, longitude, layer,
			before_date, after_date, change_type, severity_score,
			affected_pct, cost_usd, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Location.Name, r.Location.Lat, r.Location.Lon, r.Layer,
		r.Window.Before.Format(model.DateFormat),
		r.Window.After.Format(model.DateFormat),
		string(r.Assessment.ChangeType), r.Metrics.SeverityScore,
		r.Metrics.AffectedPct, r.Cost.TotalCostUSD,
		string(reportJSON), r.GeneratedAt,
	)
	return eris.Wrapf(err, "store: insert run %s", r.RunID)
}

// RunSummary is the listing view of a persisted run.
type RunSummary struct {
	RunID         string
	LocationName  string
	Layer         string
	BeforeDate    string
	AfterDate     string
	ChangeType    string
	SeverityScore int
	AffectedPct   float64
	CostUSD       float64
	CreatedAt     time.Time
}

// ListRuns returns recent runs, newest first, optionally filtered by
// location name.
func (s *Store) ListRuns(ctx context.Context, locationName string, limit int) ([]RunSummary, error) {
	query := `SELECT id, location_name, layer, before_date, after_date,
		change_type, severity_score, affected_pct, cost_usd, created_at
		FROM runs WHERE 1=1`
	var args []any

	if locationName != "" {
		query += ` AND location_name = ?`
		args = append(args, locationName)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.LocationName, &r.Layer, &r.BeforeDate,
			&r.AfterDate, &r.ChangeType, &r.SeverityScore, &r.AffectedPct,
			&r.CostUSD, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: list runs iterate")
}

// GetRun loads a full report by run ID. Returns nil when not found.
func (s *Store) GetRun(ctx context.Context, runID string) (*model.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, runID)

	var reportJSON string
	err := row.Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get run %s", runID)
	}

	var r model.AnalysisReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal report")
	}
	return &r, nil
}
