package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/skobkin/advchat/internal/advertising"
)

const (
	defaultSerialReadTimeout = 300 * time.Millisecond
	DefaultSerialBaudRate    = 115200
)

// PortOpener opens the byte stream to the dongle.
type PortOpener func(portName string, baudRate int) (io.ReadWriteCloser, error)

// OpenSerialPort opens a USB serial port with a short read timeout so the
// reader can observe cancellation.
func OpenSerialPort(portName string, baudRate int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}

	return port, nil
}

// SerialPorts lists candidate dongle ports.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// SerialRadio drives a BLE dongle attached over a serial line. The dongle
// scans and advertises on our behalf and streams advertisement reports back.
type SerialRadio struct {
	portName string
	baudRate int
	open     PortOpener

	mu         sync.Mutex
	port       io.ReadWriteCloser
	cancel     context.CancelFunc
	readerDone chan struct{}
	deviceName string

	writeMu sync.Mutex
	handler atomic.Pointer[Handler]
}

func NewSerialRadio(portName string, baudRate int) *SerialRadio {
	return NewSerialRadioWithOpener(portName, baudRate, OpenSerialPort)
}

func NewSerialRadioWithOpener(portName string, baudRate int, open PortOpener) *SerialRadio {
	if baudRate <= 0 {
		baudRate = DefaultSerialBaudRate
	}

	return &SerialRadio{portName: portName, baudRate: baudRate, open: open}
}

func (r *SerialRadio) Name() string { return "serial" }

func (r *SerialRadio) PortName() string { return r.portName }

func (r *SerialRadio) Enable(ctx context.Context, deviceName string) error {
	logger := radioLogger("serial", "port", r.portName)

	r.mu.Lock()
	if r.port == nil {
		if err := ctx.Err(); err != nil {
			r.mu.Unlock()
			return err
		}
		if r.portName == "" {
			r.mu.Unlock()
			return errors.New("serial port is empty")
		}
		port, err := r.open(r.portName, r.baudRate)
		if err != nil {
			r.mu.Unlock()
			logger.Warn("open port failed", "error", err)
			return err
		}
		readCtx, cancel := context.WithCancel(context.Background())
		r.port = port
		r.cancel = cancel
		r.readerDone = make(chan struct{})
		go r.runReader(readCtx, port, r.readerDone)
		logger.Info("port opened", "baud", r.baudRate)
	}
	r.deviceName = deviceName
	r.mu.Unlock()

	return r.send(ctx, toDongle{Op: OpEnable, DeviceName: deviceName})
}

func (r *SerialRadio) StartScan(h Handler, allowDuplicates bool) error {
	if h == nil {
		return errors.New("scan handler is nil")
	}
	r.handler.Store(&h)
	if err := r.send(context.Background(), toDongle{Op: OpStartScan, AllowDuplicates: allowDuplicates}); err != nil {
		r.handler.Store(nil)
		return err
	}

	return nil
}

func (r *SerialRadio) StopScan() error {
	r.handler.Store(nil)

	return r.send(context.Background(), toDongle{Op: OpStopScan})
}

func (r *SerialRadio) Advertise(payload []byte) error {
	r.mu.Lock()
	name := r.deviceName
	r.mu.Unlock()

	data, err := advertising.TextAdvertisement(MessageServiceUUID, payload, name)
	if err != nil {
		return fmt.Errorf("build advertisement: %w", err)
	}

	return r.send(context.Background(), toDongle{Op: OpAdvertise, AdvData: data})
}

func (r *SerialRadio) StopAdvertise() error {
	return r.send(context.Background(), toDongle{Op: OpStopAdvertise})
}

func (r *SerialRadio) Close() error {
	r.mu.Lock()
	port, cancel, done := r.port, r.cancel, r.readerDone
	r.port, r.cancel, r.readerDone = nil, nil, nil
	r.mu.Unlock()
	r.handler.Store(nil)
	if port == nil {
		return nil
	}

	cancel()
	err := port.Close()
	<-done
	radioLogger("serial", "port", r.portName).Info("port closed")

	return err
}

func (r *SerialRadio) currentPort() (io.ReadWriteCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.port == nil {
		return nil, ErrNotEnabled
	}

	return r.port, nil
}

func (r *SerialRadio) send(ctx context.Context, msg toDongle) error {
	port, err := r.currentPort()
	if err != nil {
		return err
	}
	frame, err := encodeFrame(msg.marshal())
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := writeFull(ctx, port, frame); err != nil {
		return fmt.Errorf("write %s: %w", msg.Op, err)
	}

	return nil
}

func (r *SerialRadio) runReader(ctx context.Context, port io.Reader, done chan struct{}) {
	defer close(done)
	logger := radioLogger("serial", "port", r.portName)

	for {
		payload, err := readFrame(func(buf []byte) error {
			return readFull(ctx, port, buf)
		})
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("reader stopped", "error", err)
			}
			return
		}

		msg, err := unmarshalFromDongle(payload)
		if err != nil {
			logger.Debug("skip malformed frame", "len", len(payload), "error", err)
			continue
		}
		if msg.Ack != nil && msg.Ack.Error != "" {
			logger.Warn("dongle rejected command", "op", msg.Ack.Op, "error", msg.Ack.Error)
		}
		if msg.Report != nil {
			r.dispatch(*msg.Report)
		}
	}
}

func (r *SerialRadio) dispatch(report advReport) {
	h := r.handler.Load()
	if h == nil {
		return
	}
	structures, err := advertising.Decode(report.AdvData)
	if err != nil {
		return
	}
	payload, ok := advertising.FindServiceData16(structures, MessageServiceUUID)
	if !ok {
		return
	}

	(*h)(Advertisement{Address: report.Address, RSSI: report.RSSI, Payload: payload})
}

func readFull(ctx context.Context, r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf[read:])
		if err != nil {
			return err
		}
		read += n
	}

	return nil
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}

	return nil
}
