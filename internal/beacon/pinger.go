package beacon

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultJitter   = 500 * time.Millisecond
)

// Sender is the part of the engine the pinger needs.
type Sender interface {
	SendText(data []byte, pauseDuringSend bool) int
}

type Config struct {
	Ping     Ping
	Interval time.Duration
	// Jitter is the upper bound of a random delay added to every interval.
	Jitter time.Duration
	Logger *slog.Logger
	// Int64N overrides the jitter random source.
	Int64N func(n int64) int64
}

// Pinger sends the node's ping with scanning paused for each burst.
type Pinger struct {
	sender   Sender
	ping     Ping
	interval time.Duration
	jitter   time.Duration
	logger   *slog.Logger
	int64N   func(int64) int64

	mu   sync.Mutex
	sent int

	startOnce sync.Once
}

func NewPinger(sender Sender, cfg Config) *Pinger {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Int64N == nil {
		cfg.Int64N = rand.Int64N
	}

	return &Pinger{
		sender:   sender,
		ping:     cfg.Ping,
		interval: cfg.Interval,
		jitter:   cfg.Jitter,
		logger:   cfg.Logger,
		int64N:   cfg.Int64N,
	}
}

func (p *Pinger) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

// Next is the wait before the following ping.
func (p *Pinger) Next() time.Duration {
	if p.jitter <= 0 {
		return p.interval
	}

	return p.interval + time.Duration(p.int64N(int64(p.jitter)+1))
}

func (p *Pinger) run(ctx context.Context) {
	p.logger.Info("pinger started", "ping", p.ping.String(), "interval", p.interval.String(), "jitter", p.jitter.String())

	timer := time.NewTimer(p.Next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pinger stopped")

			return
		case <-timer.C:
			p.PingOnce()
			timer.Reset(p.Next())
		}
	}
}

// PingOnce sends one ping and reports whether it went on air.
func (p *Pinger) PingOnce() bool {
	body, err := p.ping.Encode()
	if err != nil {
		p.logger.Warn("skip ping", "error", err)

		return false
	}
	if n := p.sender.SendText(body, true); n == 0 {
		p.logger.Warn("ping not sent")

		return false
	}

	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	p.logger.Debug("ping sent", "ping", string(body))

	return true
}

// Sent counts pings that went on air.
func (p *Pinger) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sent
}
