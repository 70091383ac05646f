package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

//goland:noinspection SqlWithoutWhere
var clearDatabaseStatements = []string{
	`DELETE FROM messages;`,
	`DELETE FROM peers;`,
}

// ClearDatabase empties every table. With resetSequence the message ids
// start over from 1.
func ClearDatabase(ctx context.Context, db *sql.DB, resetSequence bool) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear database tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range clearDatabaseStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear database tables: %w", err)
		}
	}
	if resetSequence {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'messages';`); err != nil {
			return fmt.Errorf("reset message sequence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear database tx: %w", err)
	}

	return nil
}

// PruneMessages deletes log records written before cutoff and reports how
// many went away. Peers are kept.
func PruneMessages(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("database is not initialized")
	}
	if cutoff.IsZero() {
		return 0, nil
	}

	res, err := db.ExecContext(ctx, `DELETE FROM messages WHERE at < ?;`, timeToUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned messages: %w", err)
	}

	return n, nil
}
