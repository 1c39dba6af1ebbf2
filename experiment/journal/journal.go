// Package journal records training runs in a SQLite database: one row
// per run, per synchronisation round, and per worker's final wealth.
package journal

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

// Run statuses
const (
	Running   = "running"
	Completed = "completed"
	Failed    = "failed"
)

// Run describes one training run
type Run struct {
	ID       string
	Started  time.Time
	Finished sql.NullTime
	Workers  int
	TMax     int
	Rounds   int
	Status   string
	Config   string
}

// Round is the journaled summary of a synchronisation round
type Round struct {
	Round        int
	Contributors int
	Steps        int
	Loss         float64
	Finished     int
}

// SQLite is a training journal backed by a SQLite database
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the journal at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "newSQLite")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "newSQLite: could not create schema")
	}

	return &SQLite{db: db}, nil
}

// StartRun records the start of a new run and returns its id. Run ids
// are ULIDs, so sorting them sorts runs by start time.
func (j *SQLite) StartRun(ctx context.Context, workers, tMax int,
	config string) (string, error) {
	id := ulid.Make().String()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started, workers, t_max, status, config)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), workers, tMax, Running, config,
	)
	if err != nil {
		return "", errors.Wrap(err, "startRun")
	}
	return id, nil
}

// RecordRound records the summary of a round
func (j *SQLite) RecordRound(ctx context.Context, runID string,
	stats a2c.RoundStats) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO rounds (run_id, round, contributors, steps, loss, finished)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stats.Round, stats.Contributors, stats.Steps, stats.Loss,
		len(stats.Finished),
	)
	return errors.Wrapf(err, "recordRound: round %d", stats.Round)
}

// RecordWealth records the final wealth of a worker
func (j *SQLite) RecordWealth(ctx context.Context, runID string, worker int,
	wealth float64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO wealth (run_id, worker, wealth)
		VALUES (?, ?, ?)`,
		runID, worker, wealth,
	)
	return errors.Wrapf(err, "recordWealth: worker %d", worker)
}

// FinishRun records the end of a run
func (j *SQLite) FinishRun(ctx context.Context, runID, status string,
	rounds int) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE runs SET finished = ?, status = ?, rounds = ?
		WHERE run_id = ?`,
		time.Now().UTC(), status, rounds, runID,
	)
	if err != nil {
		return errors.Wrap(err, "finishRun")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("finishRun: no run %q", runID)
	}
	return nil
}

// ListRuns returns all runs, oldest first
func (j *SQLite) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, started, finished, workers, t_max, rounds, status, config
		FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, errors.Wrap(err, "listRuns")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Started, &r.Finished, &r.Workers,
			&r.TMax, &r.Rounds, &r.Status, &r.Config); err != nil {
			return nil, errors.Wrap(err, "listRuns")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "listRuns")
}

// Rounds returns the rounds of a run in order
func (j *SQLite) Rounds(ctx context.Context, runID string) ([]Round, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT round, contributors, steps, loss, finished
		FROM rounds WHERE run_id = ? ORDER BY round`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "rounds")
	}
	defer rows.Close()

	var rounds []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.Round, &r.Contributors, &r.Steps, &r.Loss,
			&r.Finished); err != nil {
			return nil, errors.Wrap(err, "rounds")
		}
		rounds = append(rounds, r)
	}
	return rounds, errors.Wrap(rows.Err(), "rounds")
}

// Wealth returns the final wealth of each worker of a run
func (j *SQLite) Wealth(ctx context.Context, runID string) (map[int]float64,
	error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT worker, wealth FROM wealth WHERE run_id = ?`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "wealth")
	}
	defer rows.Close()

	wealth := make(map[int]float64)
	for rows.Next() {
		var worker int
		var w float64
		if err := rows.Scan(&worker, &w); err != nil {
			return nil, errors.Wrap(err, "wealth")
		}
		wealth[worker] = w
	}
	return wealth, errors.Wrap(rows.Err(), "wealth")
}

// Close closes the journal
func (j *SQLite) Close() error {
	return j.db.Close()
}
