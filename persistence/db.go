// Package persistence provides SQLite-based storage for finished runs and
// their observations.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/grid"
	"github.com/pthm-cable/pathfinder/telemetry"
)

// ErrRunNotFound is returned by Run for an unknown id.
var ErrRunNotFound = errors.New("persistence: run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started INTEGER NOT NULL,
		config_yaml TEXT NOT NULL,
		complete INTEGER NOT NULL,
		best_cost INTEGER NOT NULL,
		best_comfort REAL NOT NULL,
		best_path TEXT NOT NULL,
		optimal_cost INTEGER NOT NULL,
		reachable INTEGER NOT NULL,
		events INTEGER NOT NULL,
		time REAL NOT NULL,
		final_size INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS observations (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		time REAL NOT NULL,
		events INTEGER NOT NULL,
		size INTEGER NOT NULL,
		complete INTEGER NOT NULL,
		best_cost INTEGER NOT NULL,
		best_comfort REAL NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID          string  `db:"id"`
	Seed        int64   `db:"seed"`
	StartedUnix int64   `db:"started"` // milliseconds
	ConfigYAML  string  `db:"config_yaml"`
	Complete    bool    `db:"complete"`
	BestCost    int     `db:"best_cost"`
	BestComfort float64 `db:"best_comfort"`
	BestPath    string  `db:"best_path"` // JSON array of cells
	OptimalCost int     `db:"optimal_cost"`
	Reachable   bool    `db:"reachable"`
	Events      int     `db:"events"`
	Time        float64 `db:"time"`
	FinalSize   int     `db:"final_size"`
}

// Started returns the run's start time.
func (r RunRecord) Started() time.Time {
	return time.UnixMilli(r.StartedUnix)
}

// Path decodes the stored best path.
func (r RunRecord) Path() ([]grid.Cell, error) {
	var cells []grid.Cell
	if err := json.Unmarshal([]byte(r.BestPath), &cells); err != nil {
		return nil, fmt.Errorf("decoding best path of run %s: %w", r.ID, err)
	}
	return cells, nil
}

// ObservationRecord is a stored observation.
type ObservationRecord struct {
	RunID       string  `db:"run_id"`
	Index       int     `db:"idx"`
	Time        float64 `db:"time"`
	Events      int     `db:"events"`
	Size        int     `db:"size"`
	Complete    bool    `db:"complete"`
	BestCost    int     `db:"best_cost"`
	BestComfort float64 `db:"best_comfort"`
}

// SaveRun stores a finished run and returns its id. An empty RunID is
// replaced by a fresh UUID.
func (db *DB) SaveRun(r telemetry.Result, cfg *config.Config, started time.Time) (string, error) {
	id := r.RunID
	if id == "" {
		id = uuid.NewString()
	}

	cfgYAML, err := cfg.YAML()
	if err != nil {
		return "", err
	}
	path := r.BestPath
	if path == nil {
		path = telemetry.Route{}
	}
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return "", fmt.Errorf("encoding best path: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO runs
		(id, seed, started, config_yaml, complete, best_cost, best_comfort,
		 best_path, optimal_cost, reachable, events, time, final_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Seed, started.UnixMilli(), string(cfgYAML), r.Complete, r.BestCost,
		r.BestComfort, string(pathJSON), r.OptimalCost, r.Reachable, r.Events,
		r.Time, r.FinalSize,
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", id, err)
	}
	return id, nil
}

// SaveObservations appends a run's observations.
func (db *DB) SaveObservations(runID string, obs []telemetry.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO observations
		(run_id, idx, time, events, size, complete, best_cost, best_comfort)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		_, err := stmt.Exec(runID, o.Index, o.Time, o.Events, o.Size, o.Complete, o.BestCost, o.BestComfort)
		if err != nil {
			return fmt.Errorf("insert observation %d: %w", o.Index, err)
		}
	}

	return tx.Commit()
}

// Run loads a stored run.
func (db *DB) Run(id string) (*RunRecord, error) {
	var r RunRecord
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started DESC, rowid DESC LIMIT ?", limit)
	return runs, err
}

// Observations returns a run's observations in order.
func (db *DB) Observations(runID string) ([]ObservationRecord, error) {
	var obs []ObservationRecord
	err := db.conn.Select(&obs,
		"SELECT * FROM observations WHERE run_id = ? ORDER BY idx", runID)
	return obs, err
}
