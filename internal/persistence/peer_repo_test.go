package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/domain"
)

func TestPeerRepoUpsertAndList_MergesSparseUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewPeerRepo(openTestDB(t))
	now := time.Now().UTC().Truncate(time.Millisecond)
	rssi := -61

	if err := repo.Upsert(ctx, domain.Peer{
		Callsign:    "X1AB12",
		Model:       "LT1",
		Version:     "0.0.1",
		Address:     "aa:bb:cc:dd:ee:ff",
		RSSI:        &rssi,
		LastHeardAt: now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("upsert full peer: %v", err)
	}
	if err := repo.Upsert(ctx, domain.Peer{
		Callsign:    "X1AB12",
		LastHeardAt: now.Add(time.Second),
		UpdatedAt:   now.Add(time.Second),
	}); err != nil {
		t.Fatalf("upsert sparse update: %v", err)
	}
	if err := repo.Upsert(ctx, domain.Peer{Callsign: "X1CD34", LastHeardAt: now.Add(-time.Minute), UpdatedAt: now}); err != nil {
		t.Fatalf("upsert second peer: %v", err)
	}

	peers, err := repo.ListSortedByLastHeard(ctx)
	if err != nil {
		t.Fatalf("list peers: %v", err)
	}
	if len(peers) != 2 || peers[0].Callsign != "X1AB12" {
		t.Fatalf("unexpected peers %+v", peers)
	}
	p := peers[0]
	if p.Model != "LT1" || p.Version != "0.0.1" || p.Address != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("expected metadata preserved, got %+v", p)
	}
	if p.RSSI == nil || *p.RSSI != rssi {
		t.Fatalf("expected rssi preserved, got %v", p.RSSI)
	}
	if !p.FirstSeenAt.Equal(now) || !p.LastHeardAt.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected timestamps first=%v last=%v", p.FirstSeenAt, p.LastHeardAt)
	}
}

func TestOpen_MigratesV1DatabaseToLatest(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "app.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range append(append([]string(nil), schemaSteps[0]...), `PRAGMA user_version = 1;`) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			t.Fatalf("seed v1 schema: %v", err)
		}
	}
	_ = db.Close()

	migrated, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open and migrate: %v", err)
	}
	defer func() { _ = migrated.Close() }()

	var version int
	if err := migrated.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", SchemaVersion, version)
	}

	var indexes int
	if err := migrated.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_messages_at';`).Scan(&indexes); err != nil {
		t.Fatalf("look up index: %v", err)
	}
	if indexes != 1 {
		t.Fatalf("expected idx_messages_at to be created")
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "app.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA user_version = 99;`); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = db.Close()

	if db, err := Open(ctx, dbPath); err == nil {
		_ = db.Close()
		t.Fatalf("expected newer schema to be rejected")
	}
}
