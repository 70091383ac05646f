package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWriterCapacity = 256
	writeAttempts         = 3
	writeRetryStep        = 300 * time.Millisecond
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs database writes one at a time on a single goroutine and
// retries failed ones with a linear backoff.
type WriterQueue struct {
	logger  *slog.Logger
	queue   chan writeCmd
	pending sync.WaitGroup
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
	}
}

// Enqueue never blocks the caller; when the buffer is full the command is
// handed over from a helper goroutine.
func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	w.pending.Add(1)
	cmd := writeCmd{name: name, fn: fn}
	select {
	case w.queue <- cmd:
	default:
		w.logger.Debug("db writer queue full", "cmd", name)
		go func() { w.queue <- cmd }()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
				w.pending.Done()
			}
		}
	}()
}

// Wait blocks until every enqueued write has run. It only returns while the
// queue is started.
func (w *WriterQueue) Wait() {
	w.pending.Wait()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * writeRetryStep):
		}
	}
}
