package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/parcel"
)

type published struct {
	topic string
	msg   any
}

func routeText(t *testing.T, text string, rssi int8) []published {
	t.Helper()

	var ev bus.Event
	ev.Kind = bus.KindSingleText
	ev.Single.Text.SetString(text)
	ev.Single.RSSI = rssi
	ev.Single.Address = [6]byte{0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22}

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var out []published
	EventRoute(func() time.Time { return at })(ev, func(topic string, msg any) {
		out = append(out, published{topic: topic, msg: msg})
	})

	return out
}

func TestEventRoute_PlainText(t *testing.T) {
	out := routeText(t, ">hello world", -61)
	if len(out) != 2 {
		t.Fatalf("expected raw and text publishes, got %+v", out)
	}

	raw, ok := out[0].msg.(connectors.RawAdvertisement)
	if out[0].topic != connectors.TopicRawAdv || !ok {
		t.Fatalf("unexpected first publish %+v", out[0])
	}
	if raw.Address != "aa:bb:cc:00:11:22" || raw.RSSI != -61 || raw.Len != 12 || raw.Hex != "3e68656c6c6f20776f726c64" {
		t.Fatalf("unexpected raw advertisement %+v", raw)
	}

	msg, ok := out[1].msg.(domain.Message)
	if out[1].topic != connectors.TopicText || !ok {
		t.Fatalf("unexpected second publish %+v", out[1])
	}
	if msg.Kind != domain.KindText || msg.Body != "hello world" || msg.Direction != domain.MessageDirectionIn {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.RSSI == nil || *msg.RSSI != -61 {
		t.Fatalf("unexpected rssi %v", msg.RSSI)
	}
	if msg.Checksum != domain.RecordChecksum(domain.KindText, "hello world") {
		t.Fatalf("unexpected checksum %q", msg.Checksum)
	}
}

func TestEventRoute_PingPublishesPeer(t *testing.T) {
	out := routeText(t, ">+X1ABCD#LT1-0.0.1", -70)
	if len(out) != 3 {
		t.Fatalf("expected raw, peer and text publishes, got %d", len(out))
	}

	update, ok := out[1].msg.(domain.PeerUpdate)
	if out[1].topic != connectors.TopicPeer || !ok {
		t.Fatalf("unexpected peer publish %+v", out[1])
	}
	if update.Peer.Callsign != "X1ABCD" || update.Peer.Model != "LT1" || update.Peer.Version != "0.0.1" {
		t.Fatalf("unexpected peer %+v", update.Peer)
	}
	if update.LastHeard.IsZero() || update.Peer.Address == "" {
		t.Fatalf("expected heard time and address, got %+v", update)
	}

	msg := out[2].msg.(domain.Message)
	if msg.Kind != domain.KindPing || msg.From != "X1ABCD" || msg.Body != "+X1ABCD#LT1-0.0.1" {
		t.Fatalf("unexpected ping record %+v", msg)
	}
}

func TestEventRoute_ParcelOnlyRaw(t *testing.T) {
	out := routeText(t, ">AB1:HelloWorld", -50)
	if len(out) != 1 || out[0].topic != connectors.TopicRawAdv {
		t.Fatalf("expected only raw publish for a parcel, got %+v", out)
	}

	out = routeText(t, ">AB1HelloWorld", -50)
	if len(out) != 2 || out[1].topic != connectors.TopicText {
		t.Fatalf("a key without colon is plain text, got %+v", out)
	}
	if msg := out[1].msg.(domain.Message); msg.Kind != domain.KindText || msg.Body != "AB1HelloWorld" {
		t.Fatalf("unexpected text record %+v", msg)
	}
}

func TestEventRoute_IgnoresMessageDone(t *testing.T) {
	var ev bus.Event
	ev.Kind = bus.KindMessageDone
	called := false
	EventRoute(nil)(ev, func(string, any) { called = true })
	if called {
		t.Fatalf("message done must not be routed")
	}
}

func TestMessageRecord(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := MessageRecord(parcel.Message{Session: "AB", From: "X1AAAA", To: "X1BBBB", Text: "HelloWorld"}, at)
	if rec.Kind != domain.KindMessage || rec.From != "X1AAAA" || rec.To != "X1BBBB" || rec.Body != "HelloWorld" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Checksum != domain.RecordChecksum(domain.KindMessage, "HelloWorld") || !rec.At.Equal(at) {
		t.Fatalf("unexpected checksum or time %+v", rec)
	}

	single := MessageRecord(parcel.Message{Text: "AB1reset", Single: true}, at)
	if single.Kind != domain.KindText {
		t.Fatalf("expected single completion to be a text record, got %s", single.Kind)
	}
}

func TestOutgoingRecord(t *testing.T) {
	rec := OutgoingRecord(domain.KindText, "X1AAAA", "", "hi all", time.Now())
	if rec.Direction != domain.MessageDirectionOut || rec.Checksum != domain.RecordChecksum(domain.KindText, "hi all") {
		t.Fatalf("unexpected outgoing record %+v", rec)
	}
}

func TestMessageForwarder_PublishesAndDropsWhenFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(messageBus.Close)

	fwd := NewMessageForwarder(1, logger)
	fwd.Handle(parcel.Message{Session: "AB", Text: "first"})
	fwd.Handle(parcel.Message{Session: "CD", Text: "dropped"})

	sub := messageBus.Subscribe(connectors.TopicMessage)
	t.Cleanup(func() { messageBus.Unsubscribe(sub, connectors.TopicMessage) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fwd.Start(ctx, messageBus)

	select {
	case raw := <-sub:
		msg, ok := raw.(domain.Message)
		if !ok || msg.Body != "first" || msg.Kind != domain.KindMessage {
			t.Fatalf("unexpected forwarded message %#v", raw)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}

	select {
	case raw := <-sub:
		t.Fatalf("expected overflow message to be dropped, got %#v", raw)
	case <-time.After(100 * time.Millisecond):
	}
}
