package radio

import (
	"context"
	"errors"
	"sync"

	"github.com/skobkin/advchat/internal/advertising"
)

// Air is an in-memory broadcast medium. Every advertisement started by one
// node is encoded to legacy advertising data, decoded again and handed to
// every other node that is scanning. Delivery happens on the advertiser's
// goroutine, serialized per receiver.
type Air struct {
	mu    sync.Mutex
	nodes []*AirRadio
	// Repeats is how many copies of each advertisement receivers get,
	// mimicking a controller re-sending during a burst.
	Repeats int
}

func NewAir() *Air {
	return &Air{Repeats: 1}
}

// Node attaches a radio with a fixed address. rssi is what receivers see
// for frames coming from this node.
func (a *Air) Node(address [6]byte, rssi int16) *AirRadio {
	n := &AirRadio{air: a, address: address, rssi: rssi}
	a.mu.Lock()
	a.nodes = append(a.nodes, n)
	a.mu.Unlock()

	return n
}

func (a *Air) broadcast(from *AirRadio, data []byte) {
	a.mu.Lock()
	targets := make([]*AirRadio, 0, len(a.nodes))
	for _, n := range a.nodes {
		if n != from {
			targets = append(targets, n)
		}
	}
	repeats := a.Repeats
	a.mu.Unlock()
	if repeats <= 0 {
		repeats = 1
	}

	for i := 0; i < repeats; i++ {
		for _, n := range targets {
			n.receive(from.address, from.rssi, data)
		}
	}
}

// Inject delivers raw advertising data to every scanning node as if it came
// from address. Tests use it to feed hand-made frames.
func (a *Air) Inject(address [6]byte, rssi int16, data []byte) {
	a.mu.Lock()
	targets := append([]*AirRadio(nil), a.nodes...)
	a.mu.Unlock()
	for _, n := range targets {
		n.receive(address, rssi, data)
	}
}

// AirRadio is one node attached to an Air.
type AirRadio struct {
	air     *Air
	address [6]byte
	rssi    int16

	mu          sync.Mutex
	enabled     bool
	closed      bool
	name        string
	handler     Handler
	advertising []byte
	sent        int

	deliverMu sync.Mutex
}

func (r *AirRadio) Name() string { return "air" }

func (r *AirRadio) Address() [6]byte { return r.address }

func (r *AirRadio) Enable(ctx context.Context, deviceName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.enabled = true
	r.name = deviceName

	return nil
}

func (r *AirRadio) StartScan(h Handler, _ bool) error {
	if h == nil {
		return errors.New("scan handler is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usableLocked(); err != nil {
		return err
	}
	r.handler = h

	return nil
}

func (r *AirRadio) StopScan() error {
	r.mu.Lock()
	r.handler = nil
	r.mu.Unlock()

	return nil
}

// Scanning reports whether a scan handler is installed.
func (r *AirRadio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.handler != nil
}

func (r *AirRadio) Advertise(payload []byte) error {
	r.mu.Lock()
	if err := r.usableLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	data, err := advertising.TextAdvertisement(MessageServiceUUID, payload, r.name)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.advertising = data
	r.sent++
	r.mu.Unlock()

	r.air.broadcast(r, data)

	return nil
}

func (r *AirRadio) StopAdvertise() error {
	r.mu.Lock()
	r.advertising = nil
	r.mu.Unlock()

	return nil
}

// Advertising reports whether an advertisement is currently on air.
func (r *AirRadio) Advertising() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.advertising != nil
}

// Sent counts Advertise calls.
func (r *AirRadio) Sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sent
}

func (r *AirRadio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.handler = nil
	r.advertising = nil

	return nil
}

func (r *AirRadio) usableLocked() error {
	if r.closed {
		return ErrClosed
	}
	if !r.enabled {
		return ErrNotEnabled
	}

	return nil
}

func (r *AirRadio) receive(from [6]byte, rssi int16, data []byte) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h == nil {
		return
	}

	structures, err := advertising.Decode(data)
	if err != nil {
		return
	}
	payload, ok := advertising.FindServiceData16(structures, MessageServiceUUID)
	if !ok {
		return
	}

	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	h(Advertisement{Address: from, RSSI: rssi, Payload: payload})
}
