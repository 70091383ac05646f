// Package engine is the advertisement text protocol: it validates and
// deduplicates incoming frames, reassembles multi-parcel messages, queues
// events for consumers and transmits bursts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
	"github.com/skobkin/advchat/internal/radio"
)

var (
	ErrNotInitialized = errors.New("engine is not initialized")
	ErrEmptyPayload   = errors.New("payload is empty")
)

// CompletionHandler is called synchronously on the ingest path with every
// reassembled message.
type CompletionHandler func(msg parcel.Message)

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.SetLogger(logger) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleep replaces time.Sleep for burst timing.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

type Engine struct {
	radio radio.Radio
	cfg   Config
	now   func() time.Time
	sleep func(time.Duration)

	logger     atomic.Pointer[slog.Logger]
	onComplete atomic.Pointer[CompletionHandler]

	validator payload.Validator
	dedup     *payload.Dedup
	events    *bus.EventBus

	// ingestMu guards the assembler against manual purges from consumers.
	ingestMu  sync.Mutex
	assembler *parcel.Assembler

	mu              sync.Mutex
	initialized     bool
	listening       bool
	allowDuplicates bool

	sendMu sync.Mutex
}

// New builds an engine on top of r. All fixed-size state is allocated here.
func New(r radio.Radio, opts ...Option) *Engine {
	e := &Engine{
		radio: r,
		cfg:   DefaultConfig(),
		now:   time.Now,
		sleep: time.Sleep,
	}
	e.SetLogger(nil)
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.withDefaults()

	e.validator = payload.Validator{MinLength: e.cfg.MinLength, ASCIIOnly: e.cfg.ASCIIOnly}
	e.dedup = payload.NewDedup(e.cfg.DedupWindow)
	e.assembler = parcel.NewAssembler(parcel.Config{
		TTL:        e.cfg.InflightTTL,
		MaxParcels: e.cfg.MaxParcels,
		Order:      e.cfg.ParcelOrder,
	})
	e.events = bus.NewEventBus(bus.Config{
		QueueCapacity: e.cfg.QueueCapacity,
		Subscribers:   e.cfg.Subscribers,
		DrainBudget:   e.cfg.DrainBudget,
	})

	return e
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Radio() radio.Radio { return e.radio }

// Init enables the radio under deviceName.
func (e *Engine) Init(ctx context.Context, deviceName string) error {
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}
	if err := e.radio.Enable(ctx, deviceName); err != nil {
		return fmt.Errorf("enable %s radio: %w", e.radio.Name(), err)
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	e.log().Info("initialized", "radio", e.radio.Name(), "device_name", deviceName)

	return nil
}

// StartListening starts scanning. Calling it while listening is a no-op.
func (e *Engine) StartListening(allowDuplicates bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.startListeningLocked(allowDuplicates)
}

func (e *Engine) startListeningLocked(allowDuplicates bool) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.listening {
		return nil
	}
	if err := e.radio.StartScan(e.HandleAdvertisement, allowDuplicates); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	e.listening = true
	e.allowDuplicates = allowDuplicates
	e.log().Info("listening started", "allow_duplicates", allowDuplicates)

	return nil
}

func (e *Engine) StopListening() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stopListeningLocked()
}

func (e *Engine) stopListeningLocked() error {
	if !e.listening {
		return nil
	}
	e.listening = false
	if err := e.radio.StopScan(); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}
	e.log().Info("listening stopped")

	return nil
}

func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listening
}

// Close stops listening and releases the radio.
func (e *Engine) Close() error {
	e.mu.Lock()
	stopErr := e.stopListeningLocked()
	e.initialized = false
	e.mu.Unlock()

	return errors.Join(stopErr, e.radio.Close())
}

// Subscribe registers h for drained events. It returns 0 when h is nil or
// every subscriber slot is taken.
func (e *Engine) Subscribe(h bus.Handler, userCtx any) bus.Token {
	return e.events.Subscribe(h, userCtx)
}

func (e *Engine) Unsubscribe(token bus.Token) {
	e.events.Unsubscribe(token)
}

// Tick delivers up to the configured budget of queued events.
func (e *Engine) Tick() int { return e.events.Tick() }

// Drain delivers up to budget queued events.
func (e *Engine) Drain(budget int) int { return e.events.Drain(budget) }

// PendingEvents is the number of queued, undelivered events.
func (e *Engine) PendingEvents() int { return e.events.Pending() }

// DroppedEvents counts events evicted from a full queue.
func (e *Engine) DroppedEvents() uint32 { return e.events.Dropped() }

// SetDedupWindow changes the duplicate suppression window; values below a
// millisecond become one millisecond.
func (e *Engine) SetDedupWindow(window time.Duration) {
	e.dedup.SetWindow(window)
}

func (e *Engine) DedupWindow() time.Duration { return e.dedup.Window() }

// ForcePurgeStaleAssemblies reclaims every incomplete assembly at once.
func (e *Engine) ForcePurgeStaleAssemblies() int {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	return e.assembler.Sweep(e.now().Add(e.cfg.InflightTTL + time.Millisecond))
}

// ActiveAssemblies counts sessions waiting for more parcels.
func (e *Engine) ActiveAssemblies() int {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	return e.assembler.Active()
}

// PendingAssembly reports what a session still lacks.
func (e *Engine) PendingAssembly(session string) (parcel.Pending, bool) {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	return e.assembler.Pending(session)
}

// SetLogger installs the log sink; nil discards logs.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e.logger.Store(logger)
}

func (e *Engine) log() *slog.Logger { return e.logger.Load() }

// SetCompletionHandler installs or, with nil, removes the completion hook.
func (e *Engine) SetCompletionHandler(h CompletionHandler) {
	if h == nil {
		e.onComplete.Store(nil)
		return
	}
	e.onComplete.Store(&h)
}

var defaultEngine atomic.Pointer[Engine]

// Default returns the engine registered with SetDefault, or nil.
func Default() *Engine { return defaultEngine.Load() }

func SetDefault(e *Engine) { defaultEngine.Store(e) }
