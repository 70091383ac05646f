package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/domain"
)

func TestClearDatabase_ClearsAllTables(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	msgs := NewMessageRepo(db)
	if _, err := msgs.Insert(ctx, domain.Message{Kind: domain.KindText, Body: ">hello", At: now}); err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	if err := NewPeerRepo(db).Upsert(ctx, domain.Peer{Callsign: "X1AB12", LastHeardAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed peers: %v", err)
	}

	if err := ClearDatabase(ctx, db, true); err != nil {
		t.Fatalf("clear database: %v", err)
	}

	tableChecks := []struct {
		name  string
		query string
	}{
		{name: "messages", query: "SELECT COUNT(*) FROM messages;"},
		{name: "peers", query: "SELECT COUNT(*) FROM peers;"},
	}
	for _, table := range tableChecks {
		var count int
		if err := db.QueryRowContext(ctx, table.query).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table.name, err)
		}
		if count != 0 {
			t.Fatalf("expected %s to be empty, got %d rows", table.name, count)
		}
	}

	id, err := msgs.Insert(ctx, domain.Message{Kind: domain.KindText, Body: ">again", At: now})
	if err != nil {
		t.Fatalf("insert after clear: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected sequence reset to 1, got %d", id)
	}
}

func TestPruneMessages_DropsOnlyOlderRecords(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	msgs := NewMessageRepo(db)
	for i, at := range []time.Time{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour), now} {
		body := ">record " + string(rune('a'+i))
		if _, err := msgs.Insert(ctx, domain.Message{Kind: domain.KindText, Body: body, At: at}); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
	if err := NewPeerRepo(db).Upsert(ctx, domain.Peer{Callsign: "X1AB12", LastHeardAt: now.Add(-96 * time.Hour), UpdatedAt: now}); err != nil {
		t.Fatalf("seed peer: %v", err)
	}

	pruned, err := PruneMessages(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 pruned records, got %d", pruned)
	}

	left, err := msgs.Query(ctx, domain.MessageFilter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(left) != 1 || left[0].Body != ">record c" {
		t.Fatalf("unexpected remaining records %+v", left)
	}
	peers, err := NewPeerRepo(db).ListSortedByLastHeard(ctx)
	if err != nil || len(peers) != 1 {
		t.Fatalf("peers must survive pruning: %v %+v", err, peers)
	}

	if n, err := PruneMessages(ctx, db, time.Time{}); err != nil || n != 0 {
		t.Fatalf("zero cutoff must be a no-op, got %d %v", n, err)
	}
}
