package payload

import (
	"sync"
	"time"
)

const (
	// DedupCapacity is the number of remembered payloads.
	DedupCapacity = 128
	// DefaultDedupWindow is the default suppression window.
	DefaultDedupWindow = 2000 * time.Millisecond
	// maxKeyLen covers the largest possible advertisement payload.
	maxKeyLen = 31
)

type seenEntry struct {
	key [maxKeyLen]byte
	n   uint8
	at  time.Time
}

func (e *seenEntry) live() bool { return !e.at.IsZero() }

func (e *seenEntry) matches(key []byte) bool {
	return int(e.n) == len(key) && string(e.key[:e.n]) == string(key)
}

// Dedup is a fixed ring of recently seen payloads. Keys longer than the
// advertisement budget are compared by their first 31 bytes.
type Dedup struct {
	mu     sync.Mutex
	window time.Duration
	ring   [DedupCapacity]seenEntry
	head   int
}

func NewDedup(window time.Duration) *Dedup {
	d := &Dedup{}
	d.SetWindow(window)

	return d
}

// SetWindow changes the suppression window. Non-positive values are clamped
// to one millisecond.
func (d *Dedup) SetWindow(window time.Duration) {
	if window <= 0 {
		window = time.Millisecond
	}
	d.mu.Lock()
	d.window = window
	d.mu.Unlock()
}

func (d *Dedup) Window() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.window
}

// Seen reports whether key was recorded within the window. Expired entries
// are cleared during the scan. A hit does not refresh the entry; a miss
// records key at the write cursor.
func (d *Dedup) Seen(key []byte, now time.Time) bool {
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.ring {
		e := &d.ring[i]
		if !e.live() {
			continue
		}
		if now.Sub(e.at) > d.window {
			*e = seenEntry{}
			continue
		}
		if e.matches(key) {
			return true
		}
	}

	e := &d.ring[d.head]
	e.n = uint8(copy(e.key[:], key))
	e.at = now
	d.head = (d.head + 1) % DedupCapacity

	return false
}

// Reset forgets every entry.
func (d *Dedup) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ring = [DedupCapacity]seenEntry{}
	d.head = 0
}
