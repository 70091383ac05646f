package bus

import "sync"

// DefaultDrainBudget is the number of events delivered per Tick.
const DefaultDrainBudget = 12

type Config struct {
	QueueCapacity int
	Subscribers   int
	DrainBudget   int
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity: DefaultQueueCapacity,
		Subscribers:   DefaultSubscribers,
		DrainBudget:   DefaultDrainBudget,
	}
}

// EventBus decouples the ingest path from consumers. Publish never blocks
// on consumers; handlers only run from Drain or Tick on the caller's
// goroutine.
type EventBus struct {
	queue  *Queue
	subs   *Subscribers
	budget int

	drainMu sync.Mutex
	scratch []subscriber
}

func NewEventBus(cfg Config) *EventBus {
	if cfg.DrainBudget <= 0 {
		cfg.DrainBudget = DefaultDrainBudget
	}
	subs := NewSubscribers(cfg.Subscribers)

	return &EventBus{
		queue:   NewQueue(cfg.QueueCapacity),
		subs:    subs,
		budget:  cfg.DrainBudget,
		scratch: make([]subscriber, subs.size()),
	}
}

// Subscribe registers h. It returns 0 when h is nil or the table is full.
// The handler only sees events published after this call.
func (b *EventBus) Subscribe(h Handler, userCtx any) Token {
	return b.subs.add(h, userCtx, b.queue.LastSeq())
}

// Unsubscribe frees the slot behind token; unknown tokens are ignored.
func (b *EventBus) Unsubscribe(token Token) {
	b.subs.remove(token)
}

// Publish enqueues ev, evicting the oldest queued event when full.
func (b *EventBus) Publish(ev Event) {
	b.queue.Push(ev)
}

// Drain delivers up to budget events in publish order to every subscriber
// in slot order and returns the number of events popped. A Drain that finds
// another Drain in progress returns 0 at once.
func (b *EventBus) Drain(budget int) int {
	if budget <= 0 || !b.drainMu.TryLock() {
		return 0
	}
	defer b.drainMu.Unlock()

	delivered := 0
	for delivered < budget {
		ev, ok := b.queue.Pop()
		if !ok {
			break
		}
		delivered++

		b.subs.snapshot(b.scratch)
		for i := range b.scratch {
			s := &b.scratch[i]
			if s.inUse && s.handler != nil && ev.seq > s.since {
				s.handler(ev, s.ctx)
			}
		}
	}
	clear(b.scratch)

	return delivered
}

// Tick drains with the configured budget.
func (b *EventBus) Tick() int { return b.Drain(b.budget) }

func (b *EventBus) Pending() int { return b.queue.Len() }

func (b *EventBus) Capacity() int { return b.queue.Cap() }

func (b *EventBus) Dropped() uint32 { return b.queue.Dropped() }

func (b *EventBus) Subscribers() int { return b.subs.Count() }
