package main

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func dbInit(db *sql.DB) error {
	var dbVersion int
	err := db.QueryRow("SELECT version FROM db_version WHERE name='ewssync'").Scan(&dbVersion)
	if err != nil {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS db_version (
			name TEXT PRIMARY KEY,
			version INTEGER
		)`)
		if err != nil {
			return fmt.Errorf("creating db_version table: %w", err)
		}
		_, err = db.Exec(`INSERT OR IGNORE INTO db_version (name, version) VALUES ('ewssync', 0)`)
		if err != nil {
			return fmt.Errorf("initializing db_version table: %w", err)
		}
		dbVersion = 0
	}

	if dbVersion == 0 {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sync_state (
			account TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
		if err != nil {
			return fmt.Errorf("creating sync_state table: %w", err)
		}

		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account TEXT NOT NULL,
			calendar TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			created INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			dry_run BOOLEAN NOT NULL DEFAULT 0
		)`)
		if err != nil {
			return fmt.Errorf("creating sync_runs table: %w", err)
		}

		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sync_failures (
			run_id INTEGER NOT NULL REFERENCES sync_runs(id),
			item_id TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL
		)`)
		if err != nil {
			return fmt.Errorf("creating sync_failures table: %w", err)
		}

		dbVersion = schemaVersion
		_, err = db.Exec(`UPDATE db_version SET version = ? WHERE name = 'ewssync'`, dbVersion)
		if err != nil {
			return fmt.Errorf("updating db_version table: %w", err)
		}
	}
	return nil
}
