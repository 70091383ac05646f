package app

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/skobkin/advchat/internal/beacon"
	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/parcel"
	"github.com/skobkin/advchat/internal/payload"
)

// EventRoute turns drained engine events into application topics. Parcels
// are skipped here: their message arrives through the completion handler.
func EventRoute(now func() time.Time) bus.Route {
	if now == nil {
		now = time.Now
	}

	return func(ev bus.Event, publish func(topic string, msg any)) {
		if ev.Kind != bus.KindSingleText {
			return
		}
		single := ev.Single
		at := now()
		addr := net.HardwareAddr(single.Address[:]).String()
		rssi := int(single.RSSI)

		publish(connectors.TopicRawAdv, connectors.RawAdvertisement{
			Address: addr,
			RSSI:    rssi,
			Hex:     hex.EncodeToString(single.Text.Bytes()),
			Len:     single.Text.Len(),
		})

		content := strings.TrimPrefix(single.Text.String(), string(payload.Marker))
		if parcel.LooksLikeParcel([]byte(content)) {
			return
		}

		msg := domain.Message{
			Kind:      domain.KindText,
			Body:      content,
			Address:   addr,
			RSSI:      &rssi,
			Direction: domain.MessageDirectionIn,
			At:        at,
		}
		if ping, ok := beacon.ParsePing(content); ok {
			msg.Kind = domain.KindPing
			msg.From = ping.Callsign
			publish(connectors.TopicPeer, domain.PeerUpdate{
				Peer: domain.Peer{
					Callsign:    ping.Callsign,
					Model:       ping.Model,
					Version:     ping.Version,
					Address:     addr,
					RSSI:        &rssi,
					LastHeardAt: at,
				},
				LastHeard: at,
			})
		}
		msg.Checksum = domain.RecordChecksum(msg.Kind, msg.Body)
		publish(connectors.TopicText, msg)
	}
}

// MessageForwarder moves reassembled messages from the engine's completion
// hook onto the bus. The hook never blocks: when the buffer is full the
// message is dropped and logged.
type MessageForwarder struct {
	ch     chan parcel.Message
	now    func() time.Time
	logger *slog.Logger
}

func NewMessageForwarder(size int, logger *slog.Logger) *MessageForwarder {
	if size <= 0 {
		size = CompletionBuffer
	}
	if logger == nil {
		logger = slog.Default().With("component", "app.forwarder")
	}

	return &MessageForwarder{
		ch:     make(chan parcel.Message, size),
		now:    time.Now,
		logger: logger,
	}
}

// Handle is installed as the engine completion handler.
func (f *MessageForwarder) Handle(msg parcel.Message) {
	select {
	case f.ch <- msg:
	default:
		f.logger.Warn("completed message dropped", "session", msg.Session, "from", msg.From)
	}
}

func (f *MessageForwarder) Start(ctx context.Context, messageBus bus.MessageBus) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-f.ch:
				f.logger.Info("message completed", "session", msg.Session, "from", msg.From, "to", msg.To, "len", len(msg.Text))
				messageBus.Publish(connectors.TopicMessage, MessageRecord(msg, f.now()))
			}
		}
	}()
}

// MessageRecord converts a reassembled message into a log record.
func MessageRecord(msg parcel.Message, at time.Time) domain.Message {
	kind := domain.KindMessage
	if msg.Single {
		kind = domain.KindText
	}
	rec := domain.Message{
		Kind:      kind,
		From:      msg.From,
		To:        msg.To,
		Body:      msg.Text,
		Direction: domain.MessageDirectionIn,
		At:        at,
	}
	rec.Checksum = domain.RecordChecksum(rec.Kind, rec.Body)

	return rec
}

// OutgoingRecord describes something this node put on air.
func OutgoingRecord(kind domain.MessageKind, from, to, body string, at time.Time) domain.Message {
	return domain.Message{
		Kind:      kind,
		Checksum:  domain.RecordChecksum(kind, body),
		From:      from,
		To:        to,
		Body:      body,
		Direction: domain.MessageDirectionOut,
		At:        at,
	}
}
