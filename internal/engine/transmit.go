package engine

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/skobkin/advchat/internal/advertising"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
)

// maxPayload is what is left of legacy advertising data after the flags
// structure (3 bytes) and the 16-bit service data header (4 bytes).
const maxPayload = advertising.MaxDataLen - 3 - 4

// Send broadcasts data as one advertisement burst. A missing '>' marker is
// prepended and the frame is cut to PayloadMax on a rune boundary. With
// pauseDuringSend, scanning is stopped for the burst and resumed after it.
// On success it returns len(data).
func (e *Engine) Send(data []byte, pauseDuringSend bool) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyPayload
	}
	frame := e.frame(data)
	if err := e.transmit([][]byte{frame}, pauseDuringSend); err != nil {
		return 0, err
	}

	return len(data), nil
}

// SendText is Send without the error: failures are logged and reported as 0.
func (e *Engine) SendText(data []byte, pauseDuringSend bool) int {
	n, err := e.Send(data, pauseDuringSend)
	if err != nil {
		e.log().Warn("send failed", "error", err)
	}

	return n
}

// SendMessage splits text into a header and data parcels and broadcasts
// them in order, pausing scanning once around the whole message.
func (e *Engine) SendMessage(from, to, text string, pauseDuringSend bool) (parcel.Outgoing, error) {
	out, err := parcel.Split(from, to, text, parcel.SplitOptions{
		ChunkSize:  e.cfg.ChunkSize,
		PayloadMax: e.cfg.PayloadMax,
		MaxParcels: e.cfg.MaxParcels,
	})
	if err != nil {
		return parcel.Outgoing{}, fmt.Errorf("split message: %w", err)
	}

	frames := make([][]byte, 0, len(out.Parcels))
	for _, p := range out.Parcels {
		frames = append(frames, e.frame([]byte(p)))
	}
	if err := e.transmit(frames, pauseDuringSend); err != nil {
		return parcel.Outgoing{}, err
	}
	e.log().Info("message sent", "session", out.Session, "to", out.To, "parcels", len(out.Parcels))

	return out, nil
}

func (e *Engine) frame(data []byte) []byte {
	frame := make([]byte, 0, len(data)+1)
	if data[0] != payload.Marker {
		frame = append(frame, payload.Marker)
	}
	frame = append(frame, data...)
	if len(frame) <= e.cfg.PayloadMax {
		return frame
	}

	cut := e.cfg.PayloadMax
	for cut > 1 && !utf8.RuneStart(frame[cut]) {
		cut--
	}

	return frame[:cut]
}

func (e *Engine) transmit(frames [][]byte, pauseDuringSend bool) error {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	resume, allowDuplicates, err := e.pauseScan(pauseDuringSend)
	if err != nil {
		return err
	}

	var sendErr error
	for i, frame := range frames {
		if i > 0 && e.cfg.ParcelGap > 0 {
			e.sleep(e.cfg.ParcelGap)
		}
		if sendErr = e.burst(frame); sendErr != nil {
			break
		}
	}

	if resume {
		if err := e.StartListening(allowDuplicates); err != nil {
			e.log().Warn("resume listening after send", "error", err)
		}
	}

	return sendErr
}

func (e *Engine) pauseScan(pauseDuringSend bool) (resume, allowDuplicates bool, err error) {
	if !pauseDuringSend {
		return false, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.listening {
		return false, false, nil
	}
	allowDuplicates = e.allowDuplicates
	if err := e.stopListeningLocked(); err != nil {
		return false, false, fmt.Errorf("pause listening: %w", err)
	}

	return true, allowDuplicates, nil
}

func (e *Engine) burst(frame []byte) error {
	// A leftover advertisement from an aborted burst must not keep the
	// controller busy.
	_ = e.radio.StopAdvertise()
	if err := e.radio.Advertise(frame); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}

	logger := e.log()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("adv burst", "payload", string(frame), "duration", e.cfg.BurstDuration)
	}

	e.sleep(e.cfg.BurstDuration)
	if err := e.radio.StopAdvertise(); err != nil {
		return fmt.Errorf("stop advertise: %w", err)
	}

	return nil
}
