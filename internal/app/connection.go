package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/engine"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/radio"
)

// NewRadio builds the backend selected by cfg. Nothing is opened until the
// engine enables it.
func NewRadio(cfg config.RadioConfig) (radio.Radio, error) {
	switch cfg.Connector {
	case config.ConnectorBluetooth:
		return radio.NewBluetoothRadio(strings.TrimSpace(cfg.BluetoothAdapter)), nil
	case config.ConnectorSerial:
		port := strings.TrimSpace(cfg.SerialPort)
		if port == "" {
			return nil, fmt.Errorf("serial port is required")
		}
		baud := cfg.SerialBaud
		if baud <= 0 {
			baud = config.DefaultSerialBaud
		}

		return radio.NewSerialRadio(port, baud), nil
	default:
		return nil, fmt.Errorf("unsupported connector: %s", cfg.Connector)
	}
}

func ConnectionTarget(cfg config.RadioConfig) string {
	switch cfg.Connector {
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	case config.ConnectorBluetooth:
		if adapter := strings.TrimSpace(cfg.BluetoothAdapter); adapter != "" {
			return adapter
		}

		return "default adapter"
	default:
		return ""
	}
}

// ConnStatus builds a status snapshot for the configured radio.
func ConnStatus(cfg config.RadioConfig, state connectors.ConnectionState, err error) connectors.ConnStatus {
	status := connectors.ConnStatus{
		State:     state,
		RadioName: string(cfg.Connector),
		Target:    ConnectionTarget(cfg),
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}

	return status
}

// EngineConfig maps persisted protocol settings to engine tunables.
func EngineConfig(cfg config.ProtocolConfig) engine.Config {
	order, err := parcel.ParseOrder(string(cfg.ParcelOrder))
	if err != nil {
		order = parcel.OrderLexical
	}

	return engine.Config{
		MinLength:     cfg.MinLength,
		ASCIIOnly:     cfg.ASCIIOnly,
		DedupWindow:   cfg.DedupWindow(),
		InflightTTL:   cfg.InflightTTL(),
		MaxParcels:    cfg.MaxParcels,
		ParcelOrder:   order,
		QueueCapacity: cfg.QueueCapacity,
		Subscribers:   cfg.Subscribers,
		DrainBudget:   cfg.DrainBudget,
		PayloadMax:    cfg.AdvTextMax,
		BurstDuration: cfg.BurstDuration(),
		ChunkSize:     cfg.ChunkSize,
		ParcelGap:     cfg.ParcelGap(),
	}
}
