package bus

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueCapacity is the number of events held before eviction.
const DefaultQueueCapacity = 32

// Queue is a bounded FIFO of events. A push into a full queue evicts the
// oldest entry and counts it as dropped.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	count   int
	lastSeq uint64
	dropped atomic.Uint32
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Queue{buf: make([]Event, capacity)}
}

// Push appends e and reports whether an older event was evicted.
func (q *Queue) Push(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped.Add(1)
		evicted = true
	}

	q.lastSeq++
	e.seq = q.lastSeq
	q.buf[(q.head+q.count)%len(q.buf)] = e
	q.count++

	return evicted
}

func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Event{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

func (q *Queue) Cap() int { return len(q.buf) }

// LastSeq is the sequence number of the most recent push.
func (q *Queue) LastSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.lastSeq
}

func (q *Queue) Dropped() uint32 { return q.dropped.Load() }
