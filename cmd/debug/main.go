package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/advchat/internal/app"
	"github.com/skobkin/advchat/internal/beacon"
	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/logging"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
	"github.com/skobkin/advchat/internal/radio"
)

const maxHexPreviewLen = 64

// verdict is what the ingest pipeline would do with one advertisement.
type verdict string

const (
	verdictNoMarker  verdict = "no-marker"
	verdictInvalid   verdict = "invalid"
	verdictDuplicate verdict = "duplicate"
	verdictParcel    verdict = "parcel"
	verdictPing      verdict = "ping"
	verdictText      verdict = "text"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func run() error {
	connector := flag.String("connector", "", "radio backend: bluetooth or serial (default from config)")
	adapter := flag.String("adapter", "", "bluetooth adapter id, e.g. hci1")
	port := flag.String("port", "", "serial dongle port")
	baud := flag.Int("baud", 0, "serial baud rate")
	duplicates := flag.Bool("duplicates", true, "ask the controller for duplicate reports")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s")
	logFormat := flag.String("log-format", "", "log line format: text or json (default from config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRadioFlags(&cfg.Radio, *connector, *adapter, *port, *baud)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid radio settings: %w", err)
	}

	logMgr := logging.NewManager()
	cfg.Logging.LogToFile = false
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("sniffer")
	logger.Info("starting advchat sniffer", app.CurrentBuild().LogAttrs()...)

	r, err := app.NewRadio(cfg.Radio)
	if err != nil {
		return fmt.Errorf("initialize radio: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.Warn("close radio", "error", closeErr)
		}
	}()
	if err := r.Enable(ctx, cfg.Radio.DeviceName); err != nil {
		return fmt.Errorf("enable radio: %w", err)
	}

	validator := payload.Validator{MinLength: cfg.Protocol.MinLength, ASCIIOnly: cfg.Protocol.ASCIIOnly}
	dedup := payload.NewDedup(cfg.Protocol.DedupWindow())
	counts := make(map[verdict]int)
	results := make(chan sniffed, 64)

	err = r.StartScan(func(adv radio.Advertisement) {
		item := sniff(adv, validator, dedup, time.Now())
		select {
		case results <- item:
		default:
		}
	}, *duplicates)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	logger.Info("scanning", "radio", r.Name(), "target", app.ConnectionTarget(cfg.Radio), "duplicates", *duplicates)

	var deadline <-chan time.Time
	if *listenFor > 0 {
		deadline = time.After(*listenFor)
	}
	for {
		select {
		case <-ctx.Done():
			logSummary(logger, counts)
			return nil
		case <-deadline:
			logSummary(logger, counts)
			return nil
		case item := <-results:
			counts[item.verdict]++
			logger.Info("adv",
				"verdict", item.verdict,
				"address", item.address,
				"rssi", item.rssi,
				"len", item.length,
				"hex", previewHex(item.hex),
				"text", item.text,
			)
		}
	}
}

// sniffed holds everything printed for one frame. The radio reuses the
// payload buffer after the callback returns, so nothing here aliases it.
type sniffed struct {
	verdict verdict
	address string
	rssi    int16
	length  int
	hex     string
	text    string
}

func sniff(adv radio.Advertisement, v payload.Validator, dedup *payload.Dedup, now time.Time) sniffed {
	return sniffed{
		verdict: classify(adv.Payload, v, dedup, now),
		address: adv.AddressString(),
		rssi:    adv.RSSI,
		length:  len(adv.Payload),
		hex:     hex.EncodeToString(adv.Payload),
		text:    printable(adv.Payload),
	}
}

func applyRadioFlags(cfg *config.RadioConfig, connector, adapter, port string, baud int) {
	if v := strings.TrimSpace(connector); v != "" {
		cfg.Connector = config.ConnectorType(v)
	}
	if v := strings.TrimSpace(adapter); v != "" {
		cfg.BluetoothAdapter = v
	}
	if v := strings.TrimSpace(port); v != "" {
		cfg.SerialPort = v
	}
	if baud > 0 {
		cfg.SerialBaud = baud
	}
}

// classify runs the validation and dedup stages without touching any
// reassembly state.
func classify(raw []byte, v payload.Validator, dedup *payload.Dedup, now time.Time) verdict {
	content, ok := payload.Split(raw)
	if !ok {
		return verdictNoMarker
	}
	if !v.Valid(content) {
		return verdictInvalid
	}
	if dedup.Seen(raw, now) {
		return verdictDuplicate
	}
	if parcel.LooksLikeParcel(content) {
		return verdictParcel
	}
	if _, ok := beacon.ParsePing(string(content)); ok {
		return verdictPing
	}

	return verdictText
}

func logSummary(logger *slog.Logger, counts map[verdict]int) {
	logger.Info("summary",
		"text", counts[verdictText],
		"ping", counts[verdictPing],
		"parcel", counts[verdictParcel],
		"duplicate", counts[verdictDuplicate],
		"invalid", counts[verdictInvalid],
		"no_marker", counts[verdictNoMarker],
	)
}

func printable(p []byte) string {
	var b strings.Builder
	for _, r := range string(p) {
		if r < 0x20 || r == 0x7f || r == 0xFFFD {
			b.WriteByte('.')
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}
	return hex[:maxHexPreviewLen] + "..."
}
