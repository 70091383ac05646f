package radio

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages exchanged with the serial dongle, protobuf wire encoded:
//
//	message ToDongle   { Op op = 1; bytes adv_data = 2; bool allow_duplicates = 3; string device_name = 4; }
//	message FromDongle { AdvReport report = 1; Ack ack = 2; }
//	message AdvReport  { bytes address = 1; sint32 rssi = 2; bytes adv_data = 3; }
//	message Ack        { Op op = 1; string error = 2; }

type Op uint8

const (
	OpUnknown Op = iota
	OpEnable
	OpStartScan
	OpStopScan
	OpAdvertise
	OpStopAdvertise
)

func (o Op) String() string {
	switch o {
	case OpEnable:
		return "enable"
	case OpStartScan:
		return "start_scan"
	case OpStopScan:
		return "stop_scan"
	case OpAdvertise:
		return "advertise"
	case OpStopAdvertise:
		return "stop_advertise"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

type toDongle struct {
	Op              Op
	AdvData         []byte
	AllowDuplicates bool
	DeviceName      string
}

type advReport struct {
	Address [6]byte
	RSSI    int16
	AdvData []byte
}

type ack struct {
	Op    Op
	Error string
}

type fromDongle struct {
	Report *advReport
	Ack    *ack
}

var errMalformedMessage = errors.New("malformed dongle message")

func (m toDongle) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Op))
	if len(m.AdvData) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.AdvData)
	}
	if m.AllowDuplicates {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if m.DeviceName != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.DeviceName)
	}

	return b
}

func unmarshalToDongle(b []byte) (toDongle, error) {
	var m toDongle
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			m.Op = Op(v)
		case num == 2 && typ == protowire.BytesType:
			m.AdvData = append([]byte(nil), raw...)
		case num == 3 && typ == protowire.VarintType:
			m.AllowDuplicates = protowire.DecodeBool(v)
		case num == 4 && typ == protowire.BytesType:
			m.DeviceName = string(raw)
		}
		return nil
	})

	return m, err
}

func (m fromDongle) marshal() []byte {
	var b []byte
	if m.Report != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Report.marshal())
	}
	if m.Ack != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Ack.marshal())
	}

	return b
}

func unmarshalFromDongle(b []byte) (fromDongle, error) {
	var m fromDongle
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, _ uint64, raw []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			r, err := unmarshalAdvReport(raw)
			if err != nil {
				return err
			}
			m.Report = &r
		case 2:
			a, err := unmarshalAck(raw)
			if err != nil {
				return err
			}
			m.Ack = &a
		}
		return nil
	})

	return m, err
}

func (r advReport) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Address[:])
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.RSSI)))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, r.AdvData)

	return b
}

func unmarshalAdvReport(b []byte) (advReport, error) {
	var r advReport
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			if len(raw) != len(r.Address) {
				return fmt.Errorf("%w: address length %d", errMalformedMessage, len(raw))
			}
			copy(r.Address[:], raw)
		case num == 2 && typ == protowire.VarintType:
			// #nosec G115 -- RSSI values are small dBm readings.
			r.RSSI = int16(protowire.DecodeZigZag(v))
		case num == 3 && typ == protowire.BytesType:
			r.AdvData = raw
		}
		return nil
	})

	return r, err
}

func (a ack) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Op))
	if a.Error != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, a.Error)
	}

	return b
}

func unmarshalAck(b []byte) (ack, error) {
	var a ack
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			a.Op = Op(v)
		case num == 2 && typ == protowire.BytesType:
			a.Error = string(raw)
		}
		return nil
	})

	return a, err
}

// walkFields visits every field. Varints arrive in v, length-delimited
// values in raw; other wire types are skipped.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", errMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		var (
			v   uint64
			raw []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", errMalformedMessage, num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType || typ == protowire.BytesType {
			if err := visit(num, typ, v, raw); err != nil {
				return err
			}
		}
	}

	return nil
}
