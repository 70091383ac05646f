package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/skobkin/advchat/internal/advertising"
	"github.com/skobkin/advchat/internal/bluetoothutil"
)

const defaultScanStopWait = 2 * time.Second

// BluetoothRadio uses the host Bluetooth controller through
// tinygo.org/x/bluetooth (BlueZ over D-Bus on Linux).
type BluetoothRadio struct {
	adapterID string
	msgUUID   bluetooth.UUID

	mu         sync.Mutex
	adapter    *bluetooth.Adapter
	adv        *bluetooth.Advertisement
	deviceName string
	scanDone   chan struct{}
	scanErr    error

	handler atomic.Pointer[Handler]
}

func NewBluetoothRadio(adapterID string) *BluetoothRadio {
	return &BluetoothRadio{
		adapterID: strings.TrimSpace(adapterID),
		msgUUID:   bluetoothutil.MessageServiceUUID(),
	}
}

func (r *BluetoothRadio) Name() string { return "bluetooth" }

func (r *BluetoothRadio) AdapterID() string { return r.adapterID }

func (r *BluetoothRadio) Enable(ctx context.Context, deviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := radioLogger("bluetooth", "adapter", r.adapterID)
	if err := ctx.Err(); err != nil {
		return err
	}
	r.deviceName = deviceName
	if r.adapter != nil {
		return nil
	}

	if r.adapterID != "" && !bluetoothutil.AdapterSelectable {
		logger.Warn("adapter selection is not supported on this platform, using the default adapter")
	}
	adapter := bluetoothutil.ResolveAdapter(r.adapterID)
	logger.Debug("enabling adapter")
	if err := bluetoothutil.EnableAdapter(adapter); err != nil {
		logger.Warn("enable adapter failed", "error", err)
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	r.adapter = adapter
	r.adv = adapter.DefaultAdvertisement()
	logger.Info("adapter enabled", "device_name", deviceName)

	return nil
}

// StartScan runs the adapter scan loop on its own goroutine. BlueZ reports
// each device at most once per discovery unless duplicates are filtered by
// the stack itself, so allowDuplicates is advisory here.
func (r *BluetoothRadio) StartScan(h Handler, allowDuplicates bool) error {
	if h == nil {
		return errors.New("scan handler is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapter == nil {
		return ErrNotEnabled
	}
	r.handler.Store(&h)
	if r.scanDone != nil {
		return nil
	}

	adapter := r.adapter
	done := make(chan struct{})
	r.scanDone = done
	r.scanErr = nil
	logger := radioLogger("bluetooth", "adapter", r.adapterID)
	logger.Debug("scan starting", "allow_duplicates", allowDuplicates)

	go func() {
		defer close(done)
		err := adapter.Scan(r.onScanResult)
		if bluetoothutil.IsScanAlreadyInProgressError(err) {
			logger.Debug("scan already in progress, restarting")
			if stopErr := bluetoothutil.StopScan(adapter); stopErr == nil {
				err = adapter.Scan(r.onScanResult)
			}
		}
		if err = bluetoothutil.NormalizeScanError(err); err != nil {
			logger.Warn("scan stopped with error", "error", err)
			r.mu.Lock()
			r.scanErr = err
			r.mu.Unlock()
		}
	}()

	return nil
}

func (r *BluetoothRadio) StopScan() error {
	r.handler.Store(nil)

	r.mu.Lock()
	adapter, done := r.adapter, r.scanDone
	r.scanDone = nil
	r.mu.Unlock()
	if adapter == nil || done == nil {
		return nil
	}

	if err := bluetoothutil.StopScan(adapter); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}
	select {
	case <-done:
	case <-time.After(defaultScanStopWait):
		return fmt.Errorf("stop scan: scan loop did not exit within %s", defaultScanStopWait)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scanErr
}

func (r *BluetoothRadio) onScanResult(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	h := r.handler.Load()
	if h == nil {
		return
	}

	for _, sd := range result.ServiceData() {
		if sd.UUID != r.msgUUID {
			continue
		}
		var addr [6]byte
		if parsed, err := ParseAddress(result.Address.String()); err == nil {
			addr = parsed
		}
		(*h)(Advertisement{Address: addr, RSSI: result.RSSI, Payload: sd.Data})
		return
	}
}

func (r *BluetoothRadio) Advertise(payload []byte) error {
	r.mu.Lock()
	adv, name := r.adv, r.deviceName
	r.mu.Unlock()
	if adv == nil {
		return ErrNotEnabled
	}

	// Keep the local name only while flags, service data and name still fit
	// one legacy advertisement.
	data, err := advertising.TextAdvertisement(MessageServiceUUID, payload, name)
	if err != nil {
		return fmt.Errorf("build advertisement: %w", err)
	}
	structures, _ := advertising.Decode(data)
	name, _ = advertising.FindLocalName(structures)

	err = adv.Configure(bluetooth.AdvertisementOptions{
		LocalName: name,
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: r.msgUUID, Data: append([]byte(nil), payload...)},
		},
	})
	if err != nil {
		return fmt.Errorf("configure advertisement: %w", err)
	}
	if err := bluetoothutil.RestartAdvertisement(adv); err != nil {
		return fmt.Errorf("start advertisement: %w", err)
	}

	return nil
}

func (r *BluetoothRadio) StopAdvertise() error {
	r.mu.Lock()
	adv := r.adv
	r.mu.Unlock()
	if adv == nil {
		return nil
	}
	if err := bluetoothutil.StopAdvertisement(adv); err != nil {
		return fmt.Errorf("stop advertisement: %w", err)
	}

	return nil
}

func (r *BluetoothRadio) Close() error {
	return errors.Join(r.StopScan(), r.StopAdvertise())
}
