// Package radio is the boundary between the protocol engine and whatever
// actually moves advertisements: the host Bluetooth stack, a USB serial
// dongle or the in-memory Air used by tests and simulations.
package radio

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/skobkin/advchat/internal/bluetoothutil"
)

// MessageServiceUUID is the 16-bit service data UUID carrying text.
const MessageServiceUUID = bluetoothutil.MessageService16

var (
	ErrClosed     = errors.New("radio is closed")
	ErrNotEnabled = errors.New("radio is not enabled")
)

// Advertisement is one received frame, reduced to what the engine needs.
// Payload is the service data for MessageServiceUUID and is only valid for
// the duration of the callback.
type Advertisement struct {
	Address [6]byte
	RSSI    int16
	Payload []byte
}

// AddressString renders the address as AA:BB:CC:DD:EE:FF.
func (a Advertisement) AddressString() string {
	return net.HardwareAddr(a.Address[:]).String()
}

// ParseAddress accepts the usual colon separated notation.
func ParseAddress(raw string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(raw)
	if err != nil {
		return out, fmt.Errorf("parse address %q: %w", raw, err)
	}
	if len(hw) != len(out) {
		return out, fmt.Errorf("parse address %q: expected 6 bytes, got %d", raw, len(hw))
	}
	copy(out[:], hw)

	return out, nil
}

// Handler receives advertisements on the radio's own goroutine. It must not
// block.
type Handler func(adv Advertisement)

// Radio is implemented by every advertisement backend.
type Radio interface {
	Name() string
	// Enable powers the controller up and sets the advertised device name.
	Enable(ctx context.Context, deviceName string) error
	// StartScan begins delivering advertisements to h until StopScan.
	StartScan(h Handler, allowDuplicates bool) error
	StopScan() error
	// Advertise starts broadcasting payload as MessageServiceUUID service
	// data. It keeps advertising until StopAdvertise.
	Advertise(payload []byte) error
	StopAdvertise() error
	Close() error
}
