package payload

import (
	"fmt"
	"testing"
	"time"
)

func TestDedupSuppressesWithinWindow(t *testing.T) {
	d := NewDedup(DefaultDedupWindow)
	base := time.Unix(1_700_000_000, 0)

	if d.Seen([]byte(">HELLO"), base) {
		t.Fatalf("first sighting must not be a duplicate")
	}
	if !d.Seen([]byte(">HELLO"), base.Add(1500*time.Millisecond)) {
		t.Fatalf("expected duplicate inside window")
	}
	if d.Seen([]byte(">HELLO"), base.Add(2500*time.Millisecond)) {
		t.Fatalf("expected fresh sighting after window elapsed")
	}
}

func TestDedupHitDoesNotRefresh(t *testing.T) {
	d := NewDedup(time.Second)
	base := time.Unix(1_700_000_000, 0)

	d.Seen([]byte(">PING1"), base)
	if !d.Seen([]byte(">PING1"), base.Add(900*time.Millisecond)) {
		t.Fatalf("expected duplicate")
	}
	// The hit at 900ms must not extend the entry past base+1s.
	if d.Seen([]byte(">PING1"), base.Add(1100*time.Millisecond)) {
		t.Fatalf("expected entry to expire relative to first sighting")
	}
}

func TestDedupDistinctKeys(t *testing.T) {
	d := NewDedup(DefaultDedupWindow)
	now := time.Unix(1_700_000_000, 0)

	if d.Seen([]byte(">HELLO"), now) || d.Seen([]byte(">HELLO!"), now) {
		t.Fatalf("distinct payloads must not collide")
	}
}

func TestDedupRingOverwritesOldest(t *testing.T) {
	d := NewDedup(time.Hour)
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < DedupCapacity+1; i++ {
		if d.Seen([]byte(fmt.Sprintf(">MSG%03d", i)), now) {
			t.Fatalf("unexpected duplicate at %d", i)
		}
	}
	// Slot 0 was overwritten by the 129th key.
	if d.Seen([]byte(">MSG000"), now) {
		t.Fatalf("expected overwritten key to be forgotten")
	}
	if !d.Seen([]byte(">MSG128"), now) {
		t.Fatalf("expected newest key to be remembered")
	}
}

func TestDedupSetWindowClampsToMillisecond(t *testing.T) {
	d := NewDedup(0)
	if got := d.Window(); got != time.Millisecond {
		t.Fatalf("expected 1ms window, got %v", got)
	}
	d.SetWindow(-time.Second)
	if got := d.Window(); got != time.Millisecond {
		t.Fatalf("expected 1ms window, got %v", got)
	}
}

func TestDedupReset(t *testing.T) {
	d := NewDedup(time.Hour)
	now := time.Unix(1_700_000_000, 0)
	d.Seen([]byte(">HELLO"), now)
	d.Reset()
	if d.Seen([]byte(">HELLO"), now) {
		t.Fatalf("expected reset to clear entries")
	}
}
