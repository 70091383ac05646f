package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
)

const DefaultInboxLimit = 500

// Inbox holds the most recent messages, oldest evicted first.
type Inbox struct {
	limit int

	mu       sync.RWMutex
	messages []Message
	changes  chan struct{}
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	return &Inbox{
		limit:   limit,
		changes: make(chan struct{}, 1),
	}
}

func (s *Inbox) Load(msgs []Message) {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range sorted {
		s.appendLocked(msg)
	}
	s.notify()
}

func (s *Inbox) Start(ctx context.Context, b bus.MessageBus) {
	topics := []string{connectors.TopicText, connectors.TopicMessage, connectors.TopicMessageSent}
	sub := b.Subscribe(topics...)

	go func() {
		defer b.Unsubscribe(sub, topics...)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				msg, ok := raw.(Message)
				if !ok {
					continue
				}
				s.Append(msg)
			}
		}
	}()
}

// Append stores msg unless a message with the same checksum was already
// stored on the same day.
func (s *Inbox) Append(msg Message) bool {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	if msg.Checksum == "" {
		msg.Checksum = RecordChecksum(msg.Kind, msg.Body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	day := DayKey(msg.At)
	for i := len(s.messages) - 1; i >= 0; i-- {
		existing := s.messages[i]
		if existing.Checksum == msg.Checksum && DayKey(existing.At) == day {
			return false
		}
	}
	s.appendLocked(msg)
	s.notify()

	return true
}

func (s *Inbox) appendLocked(msg Message) {
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - s.limit; over > 0 {
		s.messages = append(s.messages[:0], s.messages[over:]...)
	}
}

// Messages returns matching messages, newest first, at most limit of them
// when limit is positive.
func (s *Inbox) Messages(filter MessageFilter, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0)
	for i := len(s.messages) - 1; i >= 0; i-- {
		if !filter.Match(s.messages[i]) {
			continue
		}
		out = append(out, s.messages[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out
}

func (s *Inbox) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

func (s *Inbox) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.notify()
}

func (s *Inbox) Changes() <-chan struct{} {
	return s.changes
}

func (s *Inbox) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// DayKey is the local calendar day used to scope checksum dedupe.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
