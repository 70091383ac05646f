package engine

import (
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
)

const (
	// DefaultBurstDuration is how long one advertisement stays on air.
	DefaultBurstDuration = 100 * time.Millisecond
	DefaultDeviceName    = "advchat"
)

// Config holds the engine tunables. Zero fields fall back to defaults.
type Config struct {
	MinLength   int
	ASCIIOnly   bool
	DedupWindow time.Duration

	InflightTTL time.Duration
	MaxParcels  int
	ParcelOrder parcel.Order

	QueueCapacity int
	Subscribers   int
	DrainBudget   int

	// PayloadMax is the advertisement text capacity, marker included.
	PayloadMax    int
	BurstDuration time.Duration
	ChunkSize     int
	// ParcelGap is an extra pause between parcels of one message.
	ParcelGap time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinLength:     payload.DefaultMinLength,
		DedupWindow:   payload.DefaultDedupWindow,
		InflightTTL:   parcel.DefaultTTL,
		MaxParcels:    parcel.DefaultMaxParcels,
		ParcelOrder:   parcel.OrderLexical,
		QueueCapacity: bus.DefaultQueueCapacity,
		Subscribers:   bus.DefaultSubscribers,
		DrainBudget:   bus.DefaultDrainBudget,
		PayloadMax:    parcel.DefaultPayloadMax,
		BurstDuration: DefaultBurstDuration,
		ChunkSize:     parcel.DefaultChunkSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = d.DedupWindow
	}
	if c.InflightTTL <= 0 {
		c.InflightTTL = d.InflightTTL
	}
	if c.MaxParcels <= 0 {
		c.MaxParcels = d.MaxParcels
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.Subscribers <= 0 {
		c.Subscribers = d.Subscribers
	}
	if c.DrainBudget <= 0 {
		c.DrainBudget = d.DrainBudget
	}
	if c.PayloadMax <= 1 || c.PayloadMax > maxPayload {
		c.PayloadMax = d.PayloadMax
	}
	if c.BurstDuration <= 0 {
		c.BurstDuration = d.BurstDuration
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}

	return c
}
