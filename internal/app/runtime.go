package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/advchat/internal/beacon"
	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/engine"
	"github.com/skobkin/advchat/internal/logging"
	"github.com/skobkin/advchat/internal/notifications"
	"github.com/skobkin/advchat/internal/persistence"
	"github.com/skobkin/advchat/internal/platform"
	"github.com/skobkin/advchat/internal/radio"
)

var (
	ErrStorageDisabled = errors.New("message log storage is disabled")
	ErrRuntimeClosed   = errors.New("runtime is closed")
)

// Options override parts of the runtime, mostly for tests and tools.
type Options struct {
	// Paths replaces the resolved user directories.
	Paths *Paths
	// Radio replaces the configured backend.
	Radio radio.Radio
	// Notifier replaces the desktop notification sender.
	Notifier notifications.Sender
	// Console receives log output instead of stderr.
	Console io.Writer
	// IntN drives callsign generation.
	IntN func(int) int
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	PeerRepo    *persistence.PeerRepo
	MessageRepo *persistence.MessageRepo
	WriterQueue *persistence.WriterQueue

	PeerStore *domain.PeerStore
	Inbox     *domain.Inbox

	Radio         radio.Radio
	Engine        *engine.Engine
	Pinger        *beacon.Pinger
	Discovery     *PeerDiscoveryProjection
	Notifications *NotificationService

	forwarder  *MessageForwarder
	relayToken bus.Token
	lockRadio  bool
	radioLock  platform.RadioLock

	startMu  sync.Mutex
	started  bool
	closed   bool
	closeErr error
	stopPump context.CancelFunc
	pumpDone chan struct{}

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnStatus
	connStatusKnown bool
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	var paths Paths
	if opts.Paths != nil {
		paths = *opts.Paths
	} else {
		resolved, err := ResolvePaths()
		if err != nil {
			return nil, err
		}
		paths = resolved
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
	}

	logMgr := logging.NewManager()
	if opts.Console != nil {
		logMgr = logging.NewManagerWithConsole(opts.Console)
	}
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	logger := logMgr.Logger("app")
	logger.Info("starting advchat runtime", CurrentBuild().LogAttrs()...)

	if callsign, changed := beacon.EnsureCallsign(cfg.Beacon.Callsign, opts.IntN); changed {
		cfg.Beacon.Callsign = callsign
		if err := config.Save(paths.ConfigFile, cfg); err != nil {
			logger.Warn("save generated callsign", "callsign", callsign, "error", err)
		} else {
			logger.Info("generated callsign", "callsign", callsign)
		}
	}
	rt.Config = cfg

	rt.PeerStore = domain.NewPeerStore(cfg.Beacon.Version)
	rt.Inbox = domain.NewInbox(domain.DefaultInboxLimit)
	if cfg.Storage.Enabled {
		db, err := persistence.Open(ctx, paths.DBFile)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.DB = db
		rt.PeerRepo = persistence.NewPeerRepo(db)
		rt.MessageRepo = persistence.NewMessageRepo(db)
		if retention := cfg.Storage.Retention(); retention > 0 {
			pruned, err := persistence.PruneMessages(ctx, db, time.Now().Add(-retention))
			if err != nil {
				logger.Warn("prune message log", "error", err)
			} else if pruned > 0 {
				logger.Info("pruned message log", "records", pruned, "retention_days", cfg.Storage.RetentionDays)
			}
		}
		if err := domain.LoadStoresFromRepositories(ctx, rt.PeerStore, rt.Inbox, rt.PeerRepo, rt.MessageRepo, RecentMessagesLoad); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)
	rt.PeerStore.Start(ctx, b)
	rt.Inbox.Start(ctx, b)

	if rt.DB != nil {
		rt.WriterQueue = persistence.NewWriterQueue(logMgr.Logger("persistence"), writerQueueSize)
		rt.WriterQueue.Start(ctx)
		domain.StartPersistenceProjection(ctx, b, rt.WriterQueue, rt.PeerRepo, rt.MessageRepo)
	}

	rt.Radio = opts.Radio
	if rt.Radio == nil {
		rt.lockRadio = true
		r, err := NewRadio(cfg.Radio)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("initialize radio: %w", err)
		}
		rt.Radio = r
	}

	rt.Engine = engine.New(rt.Radio,
		engine.WithConfig(EngineConfig(cfg.Protocol)),
		engine.WithLogger(logMgr.Logger("engine")),
	)
	engine.SetDefault(rt.Engine)

	rt.forwarder = NewMessageForwarder(CompletionBuffer, logMgr.Logger("forwarder"))
	rt.forwarder.Start(ctx, b)
	rt.Engine.SetCompletionHandler(rt.forwarder.Handle)
	rt.relayToken = rt.Engine.Subscribe(bus.Relay(b, EventRoute(time.Now)), nil)
	if rt.relayToken == 0 {
		_ = rt.Close()
		return nil, errors.New("subscribe bus relay: subscriber table is full")
	}

	rt.Discovery = NewPeerDiscoveryProjection(rt.PeerStore, logMgr.Logger("peer_discovery"))
	rt.Discovery.Start(ctx, b)

	sender := opts.Notifier
	if sender == nil {
		if cfg.Notifications.Enabled {
			sender = notifications.NewDesktopSender(Name, nil, logMgr.Logger("notifications"))
		} else {
			sender = notifications.Discard{}
		}
	}
	rt.Notifications = NewNotificationService(b, rt.PeerStore, rt.CurrentConfig, sender, logMgr.Logger("notifications"))
	rt.Notifications.Start(ctx)

	rt.Pinger = beacon.NewPinger(rt.Engine, beacon.Config{
		Ping: beacon.Ping{
			Callsign: cfg.Beacon.Callsign,
			Model:    cfg.Beacon.Model,
			Version:  cfg.Beacon.Version,
		},
		Interval: cfg.Beacon.Interval(),
		Jitter:   cfg.Beacon.Jitter(),
		Logger:   logMgr.Logger("beacon"),
	})

	return rt, nil
}

// Start enables the radio and begins draining engine events. With listen
// set it also scans and, when enabled, pings.
func (r *Runtime) Start(listen bool) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	if r.started {
		return nil
	}

	cfg := r.CurrentConfig()
	r.Bus.Publish(connectors.TopicConnStatus, ConnStatus(cfg.Radio, connectors.ConnectionStateConnecting, nil))
	if r.lockRadio && r.radioLock == nil {
		lock, err := platform.AcquireRadioLock(Name, string(cfg.Radio.Connector)+"-"+ConnectionTarget(cfg.Radio))
		if err != nil {
			err = fmt.Errorf("lock radio: %w", err)
			r.Bus.Publish(connectors.TopicConnStatus, ConnStatus(cfg.Radio, connectors.ConnectionStateDisconnected, err))
			return err
		}
		r.radioLock = lock
	}
	if err := r.Engine.Init(r.Ctx, cfg.Radio.DeviceName); err != nil {
		r.Bus.Publish(connectors.TopicConnStatus, ConnStatus(cfg.Radio, connectors.ConnectionStateDisconnected, err))
		return err
	}

	state := connectors.ConnectionStateIdle
	if listen {
		if err := r.Engine.StartListening(cfg.Radio.AllowDuplicates); err != nil {
			r.Bus.Publish(connectors.TopicConnStatus, ConnStatus(cfg.Radio, connectors.ConnectionStateDisconnected, err))
			return err
		}
		state = connectors.ConnectionStateListening
		if cfg.Beacon.Enabled {
			r.Pinger.Start(r.Ctx)
		}
	}
	r.Bus.Publish(connectors.TopicConnStatus, ConnStatus(cfg.Radio, state, nil))

	pumpCtx, stopPump := context.WithCancel(r.Ctx)
	r.stopPump = stopPump
	r.pumpDone = make(chan struct{})
	go r.pump(pumpCtx, r.pumpDone)
	r.started = true

	return nil
}

// pump delivers queued engine events on a fixed cadence.
func (r *Runtime) pump(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Engine.Drain(r.Engine.PendingEvents())
			return
		case <-ticker.C:
			for r.Engine.Tick() > 0 {
			}
		}
	}
}

// SendText broadcasts one advertisement text and logs it as sent.
func (r *Runtime) SendText(text string) (int, error) {
	text = strings.TrimSpace(text)
	n, err := r.Engine.Send([]byte(text), r.Engine.IsListening())
	if err != nil {
		return 0, err
	}
	r.recordOutgoing(OutgoingRecord(domain.KindText, r.Callsign(), "", text, time.Now()))

	return n, nil
}

// SendMessage splits text into parcels addressed to "to" and broadcasts
// them all.
func (r *Runtime) SendMessage(to, text string) (int, error) {
	out, err := r.Engine.SendMessage(r.Callsign(), strings.TrimSpace(to), text, r.Engine.IsListening())
	if err != nil {
		return 0, err
	}
	r.recordOutgoing(OutgoingRecord(domain.KindMessage, out.From, out.To, out.Text, time.Now()))

	return len(out.Parcels), nil
}

func (r *Runtime) recordOutgoing(msg domain.Message) {
	r.Bus.Publish(connectors.TopicMessageSent, msg)
	if r.WriterQueue == nil {
		return
	}
	repo := r.MessageRepo
	r.WriterQueue.Enqueue("insert_sent_message", func(ctx context.Context) error {
		_, err := repo.Insert(ctx, msg)

		return err
	})
}

func (r *Runtime) Callsign() string {
	return r.CurrentConfig().Beacon.Callsign
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// Override changes the in-memory config for this run only. It must be
// called before Start to affect the radio and the beacon.
func (r *Runtime) Override(fn func(cfg *config.AppConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.Config)
}

// SaveAndApplyConfig persists cfg and applies what can change at runtime:
// logging and the dedup window.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()
		return err
	}
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	r.Engine.SetLogger(r.LogManager.Logger("engine"))
	r.Engine.SetDedupWindow(cfg.Protocol.DedupWindow())

	return nil
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnStatus)
			if !ok {
				continue
			}
			r.connStatusMu.Lock()
			r.connStatus = status
			r.connStatusKnown = true
			r.connStatusMu.Unlock()
		}
	}
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnStatus, bool) {
	r.connStatusMu.RLock()
	defer r.connStatusMu.RUnlock()

	return r.connStatus, r.connStatusKnown
}

// History queries the message log, or the in-memory inbox when storage is
// disabled.
func (r *Runtime) History(ctx context.Context, filter domain.MessageFilter, limit int) ([]domain.Message, error) {
	if r.MessageRepo == nil {
		return r.Inbox.Messages(filter, limit), nil
	}

	return r.MessageRepo.Query(ctx, filter, limit)
}

func (r *Runtime) ClearDatabase(resetSequence bool) error {
	if r.DB == nil {
		return ErrStorageDisabled
	}
	if r.WriterQueue != nil {
		r.WriterQueue.Wait()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := persistence.ClearDatabase(ctx, r.DB, resetSequence); err != nil {
		return err
	}

	r.PeerStore.Reset()
	r.Inbox.Reset()
	r.Discovery.ResetFromStore()
	r.LogManager.Logger("app").Info("database cleared", "reset_sequence", resetSequence)

	return nil
}

// Close flushes queued engine events to the bus and releases everything.
// Repeated calls return the first result.
func (r *Runtime) Close() error {
	r.startMu.Lock()
	if r.closed {
		r.startMu.Unlock()
		return r.closeErr
	}
	r.closed = true
	stopPump, pumpDone := r.stopPump, r.pumpDone
	r.startMu.Unlock()

	err := r.close(stopPump, pumpDone)

	r.startMu.Lock()
	r.closeErr = err
	r.startMu.Unlock()

	return err
}

func (r *Runtime) close(stopPump context.CancelFunc, pumpDone chan struct{}) error {
	var errs []error

	// Stop the pump before the final drain; Drain skips while a Tick runs.
	if stopPump != nil {
		stopPump()
	}
	if pumpDone != nil {
		<-pumpDone
	}

	if r.Engine != nil {
		if err := r.Engine.StopListening(); err != nil {
			errs = append(errs, fmt.Errorf("stop listening: %w", err))
		}
		if r.relayToken != 0 {
			r.Engine.Drain(r.Engine.PendingEvents())
			r.Engine.Unsubscribe(r.relayToken)
		}
		if err := r.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
		if engine.Default() == r.Engine {
			engine.SetDefault(nil)
		}
	}
	if r.radioLock != nil {
		if err := r.radioLock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release radio lock: %w", err))
		}
		r.radioLock = nil
	}
	if r.WriterQueue != nil {
		r.WriterQueue.Wait()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}
	}
	if r.LogManager != nil {
		if err := r.LogManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log manager: %w", err))
		}
	}

	return errors.Join(errs...)
}
