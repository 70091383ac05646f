package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaSteps[i] upgrades user_version i to i+1.
var schemaSteps = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS messages (
			local_id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			checksum TEXT NOT NULL,
			day TEXT NOT NULL,
			from_id TEXT NULL,
			to_id TEXT NULL,
			body TEXT NOT NULL,
			address TEXT NULL,
			rssi INTEGER NULL,
			direction INTEGER NOT NULL,
			at INTEGER NOT NULL,
			UNIQUE(day, checksum)
		);`,
		`CREATE TABLE IF NOT EXISTS peers (
			callsign TEXT PRIMARY KEY,
			model TEXT NULL,
			version TEXT NULL,
			address TEXT NULL,
			rssi INTEGER NULL,
			first_seen_at INTEGER NOT NULL,
			last_heard_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_messages_at ON messages(at DESC, local_id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_kind_at ON messages(kind, at DESC);`,
	},
}

// SchemaVersion is the user_version written by migrate.
var SchemaVersion = len(schemaSteps)

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		if err := applySchemaStep(ctx, db, v); err != nil {
			return err
		}
	}

	return nil
}

func applySchemaStep(ctx context.Context, db *sql.DB, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range schemaSteps[from] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema to v%d: %w", from+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, from+1)); err != nil {
		return fmt.Errorf("set schema version %d: %w", from+1, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration to v%d: %w", from+1, err)
	}

	return nil
}
