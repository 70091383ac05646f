package radio

import (
	"context"
	"errors"
	"testing"

	"github.com/skobkin/advchat/internal/advertising"
)

func TestAirDeliversToScanningPeersOnly(t *testing.T) {
	air := NewAir()
	a := air.Node([6]byte{1}, -40)
	b := air.Node([6]byte{2}, -50)
	c := air.Node([6]byte{3}, -60)
	for _, n := range []*AirRadio{a, b, c} {
		if err := n.Enable(context.Background(), "node"); err != nil {
			t.Fatalf("enable: %v", err)
		}
	}

	var gotB, gotA []Advertisement
	_ = a.StartScan(func(adv Advertisement) { gotA = append(gotA, adv) }, true)
	_ = b.StartScan(func(adv Advertisement) {
		adv.Payload = append([]byte(nil), adv.Payload...)
		gotB = append(gotB, adv)
	}, true)

	if err := a.Advertise([]byte(">HELLO")); err != nil {
		t.Fatalf("advertise: %v", err)
	}
	if len(gotA) != 0 {
		t.Fatalf("sender must not hear itself")
	}
	if len(gotB) != 1 || string(gotB[0].Payload) != ">HELLO" || gotB[0].RSSI != -40 || gotB[0].Address != a.Address() {
		t.Fatalf("unexpected delivery to b: %+v", gotB)
	}
	if !a.Advertising() || a.Sent() != 1 {
		t.Fatalf("expected a to be advertising")
	}
	_ = a.StopAdvertise()
	if a.Advertising() {
		t.Fatalf("expected advertising to stop")
	}
}

func TestAirRepeatsAndInject(t *testing.T) {
	air := NewAir()
	air.Repeats = 3
	a := air.Node([6]byte{1}, -40)
	b := air.Node([6]byte{2}, -50)
	_ = a.Enable(context.Background(), "")
	_ = b.Enable(context.Background(), "")

	count := 0
	_ = b.StartScan(func(Advertisement) { count++ }, true)
	_ = a.Advertise([]byte(">HELLO"))
	if count != 3 {
		t.Fatalf("expected 3 copies, got %d", count)
	}

	data, _ := advertising.Encode([]advertising.Structure{advertising.Flags(advertising.TextFlags)})
	air.Inject([6]byte{9}, -70, data)
	if count != 3 {
		t.Fatalf("frames without service data must be ignored")
	}
}

func TestAirRadioLifecycleErrors(t *testing.T) {
	air := NewAir()
	n := air.Node([6]byte{1}, -40)
	if err := n.Advertise([]byte(">HI")); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
	_ = n.Enable(context.Background(), "")
	_ = n.Close()
	if err := n.StartScan(func(Advertisement) {}, false); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("AA:BB:CC:DD:EE:FF")
	if err != nil || addr != [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF} {
		t.Fatalf("unexpected %x %v", addr, err)
	}
	if _, err := ParseAddress("not-a-mac"); err == nil {
		t.Fatalf("expected error")
	}
}
