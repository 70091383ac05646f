package radio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Frames on the dongle link start with a two byte magic and a big endian
// payload length.
var frameHeader = [2]byte{0x94, 0xC3}

type readFullFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty frame payload")
	}
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	copy(frame, frameHeader[:])
	// #nosec G115 -- length is bounded by math.MaxUint16 above.
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)

	return frame, nil
}

func readFrame(readFull readFullFunc) ([]byte, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	ln := int(binary.BigEndian.Uint16(lenBuf[:]))
	if ln == 0 {
		return nil, fmt.Errorf("invalid frame length: %d", ln)
	}

	payload := make([]byte, ln)
	if err := readFull(payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	return payload, nil
}

// resyncToHeader skips bytes until the magic pair. Boot banners and log
// lines from the dongle firmware land here.
func resyncToHeader(readFull readFullFunc) error {
	var b [1]byte
	matched := false
	for {
		if err := readFull(b[:]); err != nil {
			return fmt.Errorf("read frame header: %w", err)
		}
		switch {
		case matched && b[0] == frameHeader[1]:
			return nil
		case b[0] == frameHeader[0]:
			matched = true
		default:
			matched = false
		}
	}
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}
