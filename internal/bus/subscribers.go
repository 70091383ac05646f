package bus

import "sync"

// DefaultSubscribers is the size of the subscriber table.
const DefaultSubscribers = 4

// Handler receives drained events together with the context given at
// subscription time.
type Handler func(ev Event, userCtx any)

// Token identifies a subscription. Zero means the subscription failed.
type Token int

type subscriber struct {
	handler Handler
	ctx     any
	since   uint64
	inUse   bool
}

// Subscribers is a fixed table of handlers kept in slot order.
type Subscribers struct {
	mu    sync.Mutex
	slots []subscriber
}

func NewSubscribers(size int) *Subscribers {
	if size <= 0 {
		size = DefaultSubscribers
	}

	return &Subscribers{slots: make([]subscriber, size)}
}

// add takes the first free slot. since is the last sequence number the new
// subscriber must not see.
func (s *Subscribers) add(h Handler, userCtx any, since uint64) Token {
	if h == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		if !s.slots[i].inUse {
			s.slots[i] = subscriber{handler: h, ctx: userCtx, since: since, inUse: true}
			return Token(i + 1)
		}
	}

	return 0
}

func (s *Subscribers) remove(token Token) {
	idx := int(token) - 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.slots) {
		return
	}
	s.slots[idx] = subscriber{}
}

// snapshot copies the table into dst, which must have the table's length.
func (s *Subscribers) snapshot(dst []subscriber) {
	s.mu.Lock()
	copy(dst, s.slots)
	s.mu.Unlock()
}

func (s *Subscribers) size() int { return len(s.slots) }

// Count returns the number of active subscriptions.
func (s *Subscribers) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.slots {
		if s.slots[i].inUse {
			n++
		}
	}

	return n
}
