package main

import (
	"strings"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/payload"
	"github.com/skobkin/advchat/internal/radio"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	validator := payload.NewValidator()
	dedup := payload.NewDedup(2 * time.Second)

	tests := []struct {
		name string
		raw  string
		at   time.Time
		want verdict
	}{
		{name: "no marker", raw: "hello world", at: now, want: verdictNoMarker},
		{name: "too short", raw: ">hey", at: now, want: verdictInvalid},
		{name: "text", raw: ">hello world", at: now, want: verdictText},
		{name: "repeat", raw: ">hello world", at: now.Add(time.Second), want: verdictDuplicate},
		{name: "after window", raw: ">hello world", at: now.Add(5 * time.Second), want: verdictText},
		{name: "parcel", raw: ">AB1:HelloWorld", at: now, want: verdictParcel},
		{name: "parcel key without colon", raw: ">AB2HelloWorld", at: now, want: verdictText},
		{name: "ping", raw: ">+X1ABCD#LT1-0.0.1", at: now, want: verdictPing},
		{name: "control chars", raw: ">bad\x01text", at: now, want: verdictInvalid},
	}

	for _, tc := range tests {
		if got := classify([]byte(tc.raw), validator, dedup, tc.at); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestApplyRadioFlags(t *testing.T) {
	cfg := config.Default().Radio
	applyRadioFlags(&cfg, "serial", "", " /dev/ttyACM0 ", 9600)

	if cfg.Connector != config.ConnectorSerial || cfg.SerialPort != "/dev/ttyACM0" || cfg.SerialBaud != 9600 {
		t.Fatalf("unexpected radio config %+v", cfg)
	}

	applyRadioFlags(&cfg, "", "hci1", "", 0)
	if cfg.BluetoothAdapter != "hci1" || cfg.SerialBaud != 9600 {
		t.Fatalf("empty flags must keep values, got %+v", cfg)
	}
}

func TestPreviewHexAndPrintable(t *testing.T) {
	long := strings.Repeat("ab", 40)
	if got := previewHex(long); len(got) != maxHexPreviewLen+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected preview %q", got)
	}
	if got := printable([]byte(">hi\x00there")); got != ">hi.there" {
		t.Fatalf("unexpected printable %q", got)
	}
}

func TestSniffCopiesFrameOutOfCallbackBuffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	buf := []byte(">hello sniffer")
	adv := radio.Advertisement{Address: [6]byte{0xAA, 0xBB, 0xCC, 0, 0, 1}, RSSI: -61, Payload: buf}

	item := sniff(adv, payload.NewValidator(), payload.NewDedup(2*time.Second), now)
	copy(buf, ">XXXXXXXXXXXXX")

	if item.text != ">hello sniffer" || item.hex != "3e68656c6c6f20736e6966666572" {
		t.Fatalf("sniffed frame changed with the radio buffer: %+v", item)
	}
	if item.verdict != verdictText || item.length != 14 || item.rssi != -61 {
		t.Fatalf("unexpected sniffed frame %+v", item)
	}
	if item.address != adv.AddressString() {
		t.Fatalf("unexpected address %q", item.address)
	}
}
