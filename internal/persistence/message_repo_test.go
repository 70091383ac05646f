package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMessageRepoInsert_DedupesChecksumPerDay(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(openTestDB(t))
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	first, err := repo.Insert(ctx, domain.Message{Kind: domain.KindText, Body: ">Hello", At: day})
	if err != nil || first == 0 {
		t.Fatalf("first insert: id=%d err=%v", first, err)
	}
	dup, err := repo.Insert(ctx, domain.Message{Kind: domain.KindText, Body: ">Hello", At: day.Add(time.Hour)})
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if dup != 0 {
		t.Fatalf("expected same-day duplicate to be skipped, got id %d", dup)
	}
	next, err := repo.Insert(ctx, domain.Message{Kind: domain.KindText, Body: ">Hello", At: day.Add(24 * time.Hour)})
	if err != nil || next == 0 {
		t.Fatalf("next-day insert: id=%d err=%v", next, err)
	}

	n, err := repo.Count(ctx, domain.MessageFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}
}

func TestMessageRepoInsert_RejectsOversizedBody(t *testing.T) {
	repo := NewMessageRepo(openTestDB(t))
	_, err := repo.Insert(context.Background(), domain.Message{Kind: domain.KindMessage, Body: strings.Repeat("x", MaxBodyLen+1), At: time.Now()})
	if err == nil {
		t.Fatalf("expected oversized body to fail")
	}
}

func TestMessageRepoQuery_FiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(openTestDB(t))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rssi := -55

	seed := []domain.Message{
		{Kind: domain.KindPing, Body: ">+X1AB12#LT1-0.0.1", At: base},
		{Kind: domain.KindText, Body: ">meet at noon", Address: "aa:bb:cc:dd:ee:ff", RSSI: &rssi, At: base.Add(time.Minute)},
		{Kind: domain.KindMessage, Body: "Meet at the north gate", From: "X1AB12", To: "ALL", At: base.Add(2 * time.Minute)},
		{Kind: domain.KindText, Body: ">see you", At: base.Add(3 * time.Minute)},
	}
	for _, m := range seed {
		if _, err := repo.Insert(ctx, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := repo.Query(ctx, domain.MessageFilter{}, 0)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 4 || all[0].Body != ">see you" || all[3].Kind != domain.KindPing {
		t.Fatalf("unexpected order %+v", all)
	}

	tests := []struct {
		name   string
		filter domain.MessageFilter
		limit  int
		want   []string
	}{
		{name: "kind", filter: domain.MessageFilter{Kind: domain.KindText}, want: []string{">see you", ">meet at noon"}},
		{name: "substring is case sensitive", filter: domain.MessageFilter{Contains: "Meet"}, want: []string{"Meet at the north gate"}},
		{name: "inclusive range", filter: domain.MessageFilter{Since: base.Add(time.Minute), Until: base.Add(2 * time.Minute)}, want: []string{"Meet at the north gate", ">meet at noon"}},
		{name: "limit", filter: domain.MessageFilter{}, limit: 1, want: []string{">see you"}},
		{name: "no match", filter: domain.MessageFilter{Contains: "dusk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Query(ctx, tt.filter, tt.limit)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i].Body != tt.want[i] {
					t.Fatalf("result %d: expected %q, got %q", i, tt.want[i], got[i].Body)
				}
			}
		})
	}

	texts, err := repo.Query(ctx, domain.MessageFilter{Contains: "noon"}, 0)
	if err != nil {
		t.Fatalf("query noon: %v", err)
	}
	m := texts[0]
	if m.Address != "aa:bb:cc:dd:ee:ff" || m.RSSI == nil || *m.RSSI != rssi || m.Direction != domain.MessageDirectionIn {
		t.Fatalf("unexpected stored metadata %+v", m)
	}
	if m.Checksum != domain.RecordChecksum(domain.KindText, ">meet at noon") {
		t.Fatalf("unexpected checksum %q", m.Checksum)
	}

	if n, err := repo.Count(ctx, domain.MessageFilter{Kind: domain.KindText}); err != nil || n != 2 {
		t.Fatalf("expected 2 texts, got %d err=%v", n, err)
	}
	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n, _ := repo.Count(ctx, domain.MessageFilter{}); n != 0 {
		t.Fatalf("expected empty log, got %d", n)
	}
}
