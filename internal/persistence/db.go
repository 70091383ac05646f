package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register sqlite driver
)

// BusyTimeoutMS is how long a connection waits on a locked message log
// before failing. The CLI and a listening instance may share one file.
const BusyTimeoutMS = 5000

var connectionPragmas = []struct {
	name string
	stmt string
}{
	{name: "enable foreign keys", stmt: `PRAGMA foreign_keys = ON;`},
	{name: "set wal mode", stmt: `PRAGMA journal_mode = WAL;`},
	{name: "set busy timeout", stmt: fmt.Sprintf(`PRAGMA busy_timeout = %d;`, BusyTimeoutMS)},
	{name: "set synchronous mode", stmt: `PRAGMA synchronous = NORMAL;`},
}

// Open opens the message log at path, creating its directory when needed,
// and migrates it to SchemaVersion. Writes go through one connection so the
// pragmas above hold for every statement.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, pragma := range connectionPragmas {
		if _, err := db.ExecContext(ctx, pragma.stmt); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("%s: %w", pragma.name, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}
