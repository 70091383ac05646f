package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ConnectorType identifies which radio backend should be used.
type ConnectorType string

// ParcelOrder selects how parcels of one session are ordered.
type ParcelOrder string

const (
	ConnectorBluetooth ConnectorType = "bluetooth"
	ConnectorSerial    ConnectorType = "serial"
	DefaultSerialBaud                = 115200

	ParcelOrderLexical ParcelOrder = "lexical"
	ParcelOrderNumeric ParcelOrder = "numeric"

	// MaxAdvTextLen is what a legacy advertisement can carry after the
	// flags and service data headers.
	MaxAdvTextLen = 24
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
	// Format is "text" or "json".
	Format string `json:"format"`
}

// RadioConfig selects and parameterizes the radio backend.
type RadioConfig struct {
	Connector        ConnectorType `json:"connector"`
	BluetoothAdapter string        `json:"bluetooth_adapter"`
	SerialPort       string        `json:"serial_port"`
	SerialBaud       int           `json:"serial_baud"`
	DeviceName       string        `json:"device_name"`
	AllowDuplicates  bool          `json:"allow_duplicates"`
}

// ProtocolConfig tunes the advertisement text engine.
type ProtocolConfig struct {
	MinLength       int         `json:"min_length"`
	ASCIIOnly       bool        `json:"ascii_only"`
	DedupWindowMS   int         `json:"dedup_window_ms"`
	InflightTTLSec  int         `json:"inflight_ttl_sec"`
	QueueCapacity   int         `json:"queue_capacity"`
	DrainBudget     int         `json:"drain_budget"`
	Subscribers     int         `json:"subscribers"`
	AdvTextMax      int         `json:"adv_text_max"`
	BurstDurationMS int         `json:"burst_duration_ms"`
	ChunkSize       int         `json:"chunk_size"`
	ParcelGapMS     int         `json:"parcel_gap_ms"`
	ParcelOrder     ParcelOrder `json:"parcel_order"`
	MaxParcels      int         `json:"max_parcels"`
}

// BeaconConfig controls the periodic ping.
type BeaconConfig struct {
	Enabled    bool   `json:"enabled"`
	Callsign   string `json:"callsign"`
	Model      string `json:"model"`
	Version    string `json:"version"`
	IntervalMS int    `json:"interval_ms"`
	JitterMS   int    `json:"jitter_ms"`
}

// StorageConfig controls the message log database.
type StorageConfig struct {
	Enabled bool `json:"enabled"`
	// RetentionDays drops older log records at startup. 0 keeps everything.
	RetentionDays int `json:"retention_days"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled bool                     `json:"enabled"`
	Events  NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	IncomingMessage  bool `json:"incoming_message"`
	PeerDiscovered   bool `json:"peer_discovered"`
	ConnectionStatus bool `json:"connection_status"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Radio         RadioConfig        `json:"radio"`
	Protocol      ProtocolConfig     `json:"protocol"`
	Beacon        BeaconConfig       `json:"beacon"`
	Storage       StorageConfig      `json:"storage"`
	Logging       LoggingConfig      `json:"logging"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Radio: RadioConfig{
			Connector:  ConnectorBluetooth,
			SerialBaud: DefaultSerialBaud,
			DeviceName: "advchat",
		},
		Protocol: ProtocolConfig{
			MinLength:       5,
			DedupWindowMS:   2000,
			InflightTTLSec:  600,
			QueueCapacity:   32,
			DrainBudget:     12,
			Subscribers:     4,
			AdvTextMax:      MaxAdvTextLen,
			BurstDurationMS: 100,
			ChunkSize:       20,
			ParcelOrder:     ParcelOrderLexical,
			MaxParcels:      64,
		},
		Beacon: BeaconConfig{
			Enabled:    true,
			Model:      "LT1",
			Version:    "0.0.1",
			IntervalMS: 10000,
			JitterMS:   500,
		},
		Storage: StorageConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
			Format:    "text",
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Events: NotificationEventsConfig{
				IncomingMessage:  true,
				PeerDiscovered:   true,
				ConnectionStatus: false,
			},
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

// FillMissingDefaults replaces zero or out-of-range values with defaults.
func (c *AppConfig) FillMissingDefaults() {
	d := Default()

	if c.Radio.Connector == "" {
		c.Radio.Connector = d.Radio.Connector
	}
	if c.Radio.SerialBaud <= 0 {
		c.Radio.SerialBaud = d.Radio.SerialBaud
	}
	if strings.TrimSpace(c.Radio.DeviceName) == "" {
		c.Radio.DeviceName = d.Radio.DeviceName
	}

	p := &c.Protocol
	fillInt(&p.MinLength, d.Protocol.MinLength)
	fillInt(&p.DedupWindowMS, d.Protocol.DedupWindowMS)
	fillInt(&p.InflightTTLSec, d.Protocol.InflightTTLSec)
	fillInt(&p.QueueCapacity, d.Protocol.QueueCapacity)
	fillInt(&p.DrainBudget, d.Protocol.DrainBudget)
	fillInt(&p.Subscribers, d.Protocol.Subscribers)
	fillInt(&p.BurstDurationMS, d.Protocol.BurstDurationMS)
	fillInt(&p.ChunkSize, d.Protocol.ChunkSize)
	fillInt(&p.MaxParcels, d.Protocol.MaxParcels)
	if p.AdvTextMax <= 1 || p.AdvTextMax > MaxAdvTextLen {
		p.AdvTextMax = d.Protocol.AdvTextMax
	}
	if p.ParcelGapMS < 0 {
		p.ParcelGapMS = 0
	}
	p.ParcelOrder = normalizeParcelOrder(p.ParcelOrder)

	fillInt(&c.Beacon.IntervalMS, d.Beacon.IntervalMS)
	if c.Beacon.JitterMS < 0 {
		c.Beacon.JitterMS = 0
	}
	if strings.TrimSpace(c.Beacon.Model) == "" {
		c.Beacon.Model = d.Beacon.Model
	}
	if strings.TrimSpace(c.Beacon.Version) == "" {
		c.Beacon.Version = d.Beacon.Version
	}

	if c.Storage.RetentionDays < 0 {
		c.Storage.RetentionDays = 0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// Retention is how far back the message log is kept; 0 means forever.
func (s StorageConfig) Retention() time.Duration {
	if s.RetentionDays <= 0 {
		return 0
	}

	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

func fillInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func normalizeParcelOrder(order ParcelOrder) ParcelOrder {
	switch ParcelOrder(strings.ToLower(string(order))) {
	case ParcelOrderNumeric:
		return ParcelOrderNumeric
	default:
		return ParcelOrderLexical
	}
}

func (c AppConfig) Validate() error {
	switch c.Radio.Connector {
	case ConnectorBluetooth:
	case ConnectorSerial:
		if strings.TrimSpace(c.Radio.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Radio.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Radio.Connector)
	}

	if c.Protocol.AdvTextMax > MaxAdvTextLen {
		return fmt.Errorf("adv_text_max must not exceed %d", MaxAdvTextLen)
	}
	if c.Protocol.DedupWindowMS < 0 || c.Protocol.InflightTTLSec < 0 {
		return errors.New("protocol windows must not be negative")
	}
	if cs := strings.TrimSpace(c.Beacon.Callsign); strings.ContainsAny(cs, ":#") {
		return fmt.Errorf("callsign %q must not contain ':' or '#'", cs)
	}

	return nil
}

func (p ProtocolConfig) DedupWindow() time.Duration {
	return time.Duration(p.DedupWindowMS) * time.Millisecond
}

func (p ProtocolConfig) InflightTTL() time.Duration {
	return time.Duration(p.InflightTTLSec) * time.Second
}

func (p ProtocolConfig) BurstDuration() time.Duration {
	return time.Duration(p.BurstDurationMS) * time.Millisecond
}

func (p ProtocolConfig) ParcelGap() time.Duration {
	return time.Duration(p.ParcelGapMS) * time.Millisecond
}

func (b BeaconConfig) Interval() time.Duration {
	return time.Duration(b.IntervalMS) * time.Millisecond
}

func (b BeaconConfig) Jitter() time.Duration {
	return time.Duration(b.JitterMS) * time.Millisecond
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
