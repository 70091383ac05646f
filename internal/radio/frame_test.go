package radio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestReadFrameResyncsToHeader(t *testing.T) {
	want := []byte{0x01, 0x02, 0x03}
	raw := bytes.NewBuffer([]byte{
		'b', 'o', 'o', 't', '\n', // dongle banner
		frameHeader[0], frameHeader[0], frameHeader[1],
		0x00, 0x03,
		0x01, 0x02, 0x03,
	})

	got, err := readFrame(ioReadFullFunc(raw))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload mismatch: got %x want %x", got, want)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	raw := bytes.NewBuffer([]byte{frameHeader[0], frameHeader[1], 0x00, 0x00})
	if _, err := readFrame(ioReadFullFunc(raw)); err == nil {
		t.Fatalf("expected error for zero-length frame")
	}
}

func TestEncodeFrameLimits(t *testing.T) {
	if _, err := encodeFrame(make([]byte, math.MaxUint16+1)); err == nil {
		t.Fatalf("expected payload size error")
	}
	if _, err := encodeFrame(nil); err == nil {
		t.Fatalf("expected empty payload error")
	}
}

func TestEncodeFrameAndReadFrameRoundTrip(t *testing.T) {
	payload := toDongle{Op: OpAdvertise, AdvData: []byte{0x02, 0x01, 0x06}}.marshal()
	frame, err := encodeFrame(payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	got, err := readFrame(ioReadFullFunc(bytes.NewReader(frame)))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %x want %x", got, payload)
	}
}

func TestReadFramePayloadEOF(t *testing.T) {
	raw := bytes.NewBuffer([]byte{frameHeader[0], frameHeader[1], 0x00, 0x04, 0x01, 0x02})

	_, err := readFrame(ioReadFullFunc(raw))
	if err == nil {
		t.Fatalf("expected payload read error")
	}
	if err == io.ErrUnexpectedEOF || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped unexpected EOF, got %v", err)
	}
}
