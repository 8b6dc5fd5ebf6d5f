package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBRunRecorder stores sync reports in the sync_runs and sync_failures
// tables.
type DBRunRecorder struct {
	DB       *sql.DB
	Account  string
	Calendar string
}

func (r *DBRunRecorder) RecordRun(ctx context.Context, report *SyncReport) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO sync_runs
		(account, calendar, started_at, finished_at, created, updated, deleted, skipped, failed, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Account, r.Calendar, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.Created(), report.Updated(), report.Deleted(), report.Skipped(), report.Failed(), report.DryRun)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, failure := range report.Failures() {
		reason := ""
		if failure.Err != nil {
			reason = failure.Err.Error()
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO sync_failures (run_id, item_id, action, reason) VALUES (?, ?, ?, ?)",
			runID, failure.ItemID, string(failure.Action), reason)
		if err != nil {
			return fmt.Errorf("inserting sync failure: %w", err)
		}
	}
	return tx.Commit()
}

type RunSummary struct {
	ID         int64
	Account    string
	Calendar   string
	StartedAt  time.Time
	FinishedAt time.Time
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	Failed     int
	DryRun     bool
}

// recentRuns returns the latest runs, newest first.
func recentRuns(ctx context.Context, db *sql.DB, limit int) ([]RunSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, account, calendar, started_at, finished_at,
		created, updated, deleted, skipped, failed, dry_run
		FROM sync_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.Account, &run.Calendar, &run.StartedAt, &run.FinishedAt,
			&run.Created, &run.Updated, &run.Deleted, &run.Skipped, &run.Failed, &run.DryRun); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type FailureRecord struct {
	ItemID string
	Action string
	Reason string
}

func runFailures(ctx context.Context, db *sql.DB, runID int64) ([]FailureRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT item_id, action, reason FROM sync_failures WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("querying sync failures: %w", err)
	}
	defer rows.Close()

	var failures []FailureRecord
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.ItemID, &f.Action, &f.Reason); err != nil {
			return nil, fmt.Errorf("scanning sync failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
