package radio

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/advertising"
)

type fakeDongle struct {
	conn     net.Conn
	commands chan toDongle
}

func newSerialPair(t *testing.T) (*SerialRadio, *fakeDongle) {
	t.Helper()

	host, device := net.Pipe()
	d := &fakeDongle{conn: device, commands: make(chan toDongle, 16)}
	go func() {
		for {
			payload, err := readFrame(ioReadFullFunc(device))
			if err != nil {
				close(d.commands)
				return
			}
			cmd, err := unmarshalToDongle(payload)
			if err != nil {
				continue
			}
			d.commands <- cmd
		}
	}()

	r := NewSerialRadioWithOpener("/dev/ttyFAKE", 0, func(string, int) (io.ReadWriteCloser, error) {
		return host, nil
	})
	t.Cleanup(func() {
		_ = r.Close()
		_ = device.Close()
	})

	return r, d
}

func (d *fakeDongle) next(t *testing.T) toDongle {
	t.Helper()
	select {
	case cmd, ok := <-d.commands:
		if !ok {
			t.Fatalf("dongle link closed")
		}
		return cmd
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for dongle command")
	}

	return toDongle{}
}

func (d *fakeDongle) report(t *testing.T, addr [6]byte, rssi int16, advData []byte) {
	t.Helper()
	frame, err := encodeFrame(fromDongle{Report: &advReport{Address: addr, RSSI: rssi, AdvData: advData}}.marshal())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := d.conn.Write(frame); err != nil {
		t.Fatalf("write report: %v", err)
	}
}

func TestSerialRadioCommands(t *testing.T) {
	r, d := newSerialPair(t)

	if err := r.Enable(context.Background(), "X1TEST"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if cmd := d.next(t); cmd.Op != OpEnable || cmd.DeviceName != "X1TEST" {
		t.Fatalf("unexpected enable command: %+v", cmd)
	}

	if err := r.Advertise([]byte(">HELLO")); err != nil {
		t.Fatalf("advertise: %v", err)
	}
	cmd := d.next(t)
	if cmd.Op != OpAdvertise {
		t.Fatalf("unexpected op %s", cmd.Op)
	}
	structures, err := advertising.Decode(cmd.AdvData)
	if err != nil {
		t.Fatalf("decode adv data: %v", err)
	}
	if payload, ok := advertising.FindServiceData16(structures, MessageServiceUUID); !ok || string(payload) != ">HELLO" {
		t.Fatalf("unexpected service data %q", payload)
	}

	if err := r.StopAdvertise(); err != nil {
		t.Fatalf("stop advertise: %v", err)
	}
	if cmd := d.next(t); cmd.Op != OpStopAdvertise {
		t.Fatalf("unexpected op %s", cmd.Op)
	}
}

func TestSerialRadioDeliversReports(t *testing.T) {
	r, d := newSerialPair(t)
	if err := r.Enable(context.Background(), ""); err != nil {
		t.Fatalf("enable: %v", err)
	}
	d.next(t)

	got := make(chan Advertisement, 4)
	if err := r.StartScan(func(adv Advertisement) {
		adv.Payload = append([]byte(nil), adv.Payload...)
		got <- adv
	}, true); err != nil {
		t.Fatalf("start scan: %v", err)
	}
	if cmd := d.next(t); cmd.Op != OpStartScan || !cmd.AllowDuplicates {
		t.Fatalf("unexpected scan command: %+v", cmd)
	}

	addr := [6]byte{0xAA, 0xBB, 0xCC, 0x01, 0x02, 0x03}
	foreign, _ := advertising.Encode([]advertising.Structure{advertising.ServiceData16(0x180F, []byte{99})})
	d.report(t, addr, -60, foreign)
	text, _ := advertising.TextAdvertisement(MessageServiceUUID, []byte(">HELLO"), "")
	d.report(t, addr, -55, text)

	select {
	case adv := <-got:
		if string(adv.Payload) != ">HELLO" || adv.RSSI != -55 || adv.Address != addr {
			t.Fatalf("unexpected advertisement: %+v", adv)
		}
		if adv.AddressString() != "aa:bb:cc:01:02:03" {
			t.Fatalf("unexpected address string %s", adv.AddressString())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for advertisement")
	}
	select {
	case adv := <-got:
		t.Fatalf("foreign service data must be filtered, got %+v", adv)
	default:
	}
}

func TestSerialRadioRequiresEnable(t *testing.T) {
	r := NewSerialRadioWithOpener("/dev/ttyFAKE", 0, func(string, int) (io.ReadWriteCloser, error) {
		return nil, errors.New("unused")
	})
	if err := r.Advertise([]byte(">HELLO")); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close without enable: %v", err)
	}
}

func TestSerialRadioOpenFailure(t *testing.T) {
	r := NewSerialRadioWithOpener("/dev/ttyFAKE", 0, func(string, int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such port")
	})
	if err := r.Enable(context.Background(), ""); err == nil {
		t.Fatalf("expected open failure")
	}
}
