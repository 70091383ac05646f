package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
	"github.com/skobkin/advchat/internal/radio"
)

// HandleAdvertisement is the radio callback. It runs validation, dedup,
// reassembly and sweeping inline and never blocks on consumers. Rejected
// frames are dropped silently.
func (e *Engine) HandleAdvertisement(adv radio.Advertisement) {
	content, ok := payload.Split(adv.Payload)
	if !ok || !e.validator.Valid(content) {
		return
	}

	now := e.now()
	if e.dedup.Seen(adv.Payload, now) {
		return
	}

	logger := e.log()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("adv text", "payload", string(adv.Payload), "rssi", adv.RSSI, "from", adv.AddressString())
	}

	ev := bus.Event{Kind: bus.KindSingleText}
	ev.Single.Text.Set(adv.Payload)
	ev.Single.RSSI = clampRSSI(adv.RSSI)
	ev.Single.Address = adv.Address
	e.events.Publish(ev)

	e.ingestMu.Lock()
	var (
		msg  parcel.Message
		done bool
	)
	if parcel.LooksLikeParcel(content) {
		msg, done = e.assembler.Add(content, now)
	}
	e.assembler.Sweep(now)
	e.ingestMu.Unlock()

	if done {
		e.complete(msg)
	}
}

func (e *Engine) complete(msg parcel.Message) {
	ev := bus.Event{Kind: bus.KindMessageDone}
	copy(ev.Done.Session[:], msg.Session)
	ev.Done.From.SetString(msg.From)
	ev.Done.To.SetString(msg.To)
	ev.Done.Checksum = msg.Checksum
	// #nosec G115 -- reassembled bodies are bounded by MaxParcels * 31 bytes.
	ev.Done.FullLength = uint32(len(msg.Text))
	ev.Done.Snippet.SetString(msg.Text)
	e.events.Publish(ev)

	e.log().Debug("message completed", "session", msg.Session, "from", msg.From, "to", msg.To, "len", len(msg.Text))

	if h := e.onComplete.Load(); h != nil {
		(*h)(msg)
	}
}

func clampRSSI(v int16) int8 {
	switch {
	case v > math.MaxInt8:
		return math.MaxInt8
	case v < math.MinInt8:
		return math.MinInt8
	default:
		return int8(v)
	}
}
