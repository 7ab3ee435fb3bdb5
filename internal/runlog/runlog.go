// Package runlog keeps a sqlite journal of pipeline runs: per-run
// counts plus every task-level error, so a failed or degraded run can
// be diagnosed without re-crawling.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"pokedex-pipeline/internal/collector"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) Journal {
	return Journal{db: db}
}

// Begin inserts a new run row and returns its id.
func (j Journal) Begin(ctx context.Context) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (started_at) VALUES (?)`,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Finish records the run's outcome and its error detail.
func (j Journal) Finish(ctx context.Context, runId int64, report collector.Report, abortReason string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	aborted := 0
	if abortReason != "" {
		aborted = 1
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE runs
		SET finished_at = ?, listed = ?, collected = ?, failed = ?, aborted = ?, abort_reason = ?
		WHERE id = ?`,
		time.Now().Unix(),
		report.Listed,
		report.Collected,
		report.Failed(),
		aborted,
		abortReason,
		runId,
	)
	if err != nil {
		return err
	}

	for _, e := range report.FetchErrors {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, kind, url, status, attempts, message)
			VALUES (?, 'fetch', ?, ?, ?, ?)`,
			runId, e.URL, e.Status, e.Attempts, e.Error(),
		)
		if err != nil {
			return err
		}
	}
	for _, e := range report.ParseErrors {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, kind, url, field, message)
			VALUES (?, 'parse', ?, ?, ?)`,
			runId, e.URL, e.Field, e.Error(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type Run struct {
	Id          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Listed      int
	Collected   int
	Failed      int
	Aborted     bool
	AbortReason string
}

type RunError struct {
	Kind     string
	URL      string
	Field    string
	Status   int
	Attempts int
	Message  string
}

// LastRun returns the most recent run and its errors, or sql.ErrNoRows
// when the journal is empty.
func (j Journal) LastRun(ctx context.Context) (Run, []RunError, error) {
	var run Run
	var started, finished sql.NullInt64
	var aborted int
	err := j.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, listed, collected, failed, aborted, abort_reason
		FROM runs ORDER BY id DESC LIMIT 1`,
	).Scan(&run.Id, &started, &finished, &run.Listed, &run.Collected, &run.Failed, &aborted, &run.AbortReason)
	if err != nil {
		return Run{}, nil, err
	}
	run.Aborted = aborted != 0
	if started.Valid {
		run.StartedAt = time.Unix(started.Int64, 0)
	}
	if finished.Valid {
		run.FinishedAt = time.Unix(finished.Int64, 0)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, url, field, status, attempts, message
		FROM run_errors WHERE run_id = ?`,
		run.Id,
	)
	if err != nil {
		return Run{}, nil, err
	}
	defer rows.Close()

	var errs []RunError
	for rows.Next() {
		var e RunError
		err = rows.Scan(&e.Kind, &e.URL, &e.Field, &e.Status, &e.Attempts, &e.Message)
		if err != nil {
			return Run{}, nil, err
		}
		errs = append(errs, e)
	}
	return run, errs, rows.Err()
}
