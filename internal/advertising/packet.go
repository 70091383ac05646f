// Package advertising encodes and decodes the AD structures that make up a
// legacy BLE advertisement payload.
package advertising

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AD types used by text advertisements.
const (
	ADTypeFlags                = 0x01
	ADTypeShortenedLocalName   = 0x08
	ADTypeCompleteLocalName    = 0x09
	ADTypeServiceData16Bit     = 0x16
	ADTypeManufacturerSpecific = 0xFF
)

// Flag bits for ADTypeFlags.
const (
	FlagLEGeneralDiscoverableMode = 0x02
	FlagBREDRNotSupported         = 0x04

	// TextFlags is what text bursts advertise.
	TextFlags = FlagLEGeneralDiscoverableMode | FlagBREDRNotSupported
)

// MaxDataLen is the legacy advertising data limit.
const MaxDataLen = 31

var (
	ErrTooLong   = fmt.Errorf("advertising data exceeds %d bytes", MaxDataLen)
	ErrTruncated = errors.New("advertising data truncated")
)

// Structure is one length-type-value element.
type Structure struct {
	Type byte
	Data []byte
}

// Encode concatenates structures, rejecting anything over MaxDataLen.
func Encode(structures []Structure) ([]byte, error) {
	size := 0
	for _, s := range structures {
		size += 2 + len(s.Data)
	}
	if size > MaxDataLen {
		return nil, fmt.Errorf("%w: %d", ErrTooLong, size)
	}

	buf := make([]byte, 0, size)
	for _, s := range structures {
		buf = append(buf, byte(1+len(s.Data)), s.Type)
		buf = append(buf, s.Data...)
	}

	return buf, nil
}

// Decode splits advertising data into structures. A zero length byte ends
// the payload (controllers pad with zeros). Data slices alias data.
func Decode(data []byte) ([]Structure, error) {
	var out []Structure
	for offset := 0; offset < len(data); {
		length := int(data[offset])
		if length == 0 {
			break
		}
		offset++
		if offset+length > len(data) {
			return nil, fmt.Errorf("%w: length=%d remaining=%d", ErrTruncated, length, len(data)-offset)
		}
		out = append(out, Structure{Type: data[offset], Data: data[offset+1 : offset+length]})
		offset += length
	}

	return out, nil
}

func Flags(flags byte) Structure {
	return Structure{Type: ADTypeFlags, Data: []byte{flags}}
}

func LocalName(name string) Structure {
	return Structure{Type: ADTypeCompleteLocalName, Data: []byte(name)}
}

// ServiceData16 builds a 16-bit service data element; the UUID is little
// endian on air.
func ServiceData16(uuid uint16, data []byte) Structure {
	buf := make([]byte, 2+len(data))
	binary.LittleEndian.PutUint16(buf, uuid)
	copy(buf[2:], data)

	return Structure{Type: ADTypeServiceData16Bit, Data: buf}
}

// FindServiceData16 returns the payload of the first service data element
// for uuid.
func FindServiceData16(structures []Structure, uuid uint16) ([]byte, bool) {
	for _, s := range structures {
		if s.Type != ADTypeServiceData16Bit || len(s.Data) < 2 {
			continue
		}
		if binary.LittleEndian.Uint16(s.Data) == uuid {
			return s.Data[2:], true
		}
	}

	return nil, false
}

// FindLocalName returns the complete or shortened local name.
func FindLocalName(structures []Structure) (string, bool) {
	for _, s := range structures {
		if s.Type == ADTypeCompleteLocalName || s.Type == ADTypeShortenedLocalName {
			return string(s.Data), true
		}
	}

	return "", false
}

// TextAdvertisement lays out flags plus service data for uuid. The local
// name is appended only when it still fits.
func TextAdvertisement(uuid uint16, payload []byte, name string) ([]byte, error) {
	structures := []Structure{Flags(TextFlags), ServiceData16(uuid, payload)}
	if name != "" {
		withName := append(structures, LocalName(name))
		if data, err := Encode(withName); err == nil {
			return data, nil
		}
	}

	return Encode(structures)
}
