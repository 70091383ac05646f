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
)

func TestPeerDiscoveryProjection_EmitsOncePerUnknownCallsign(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(messageBus.Close)

	store := domain.NewPeerStore("0.0.2")
	store.Upsert(domain.Peer{Callsign: "X1KNWN", LastHeardAt: time.Now()})

	proj := NewPeerDiscoveryProjection(store, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	proj.Start(ctx, messageBus)

	sub := messageBus.Subscribe(connectors.TopicPeerDiscovered)
	t.Cleanup(func() {
		messageBus.Unsubscribe(sub, connectors.TopicPeerDiscovered)
	})

	// Already-known startup peer should not emit.
	messageBus.Publish(connectors.TopicPeer, domain.PeerUpdate{Peer: domain.Peer{Callsign: "x1knwn"}})
	assertNoPeerDiscovered(t, sub)

	// Placeholder callsigns are ignored.
	messageBus.Publish(connectors.TopicPeer, domain.PeerUpdate{Peer: domain.Peer{Callsign: "geogram"}})
	assertNoPeerDiscovered(t, sub)

	messageBus.Publish(connectors.TopicPeer, domain.PeerUpdate{Peer: domain.Peer{Callsign: "x1new1", Model: "LT1", Version: "0.0.1"}})
	event := waitPeerDiscovered(t, sub)
	if event.Peer.Callsign != "X1NEW1" {
		t.Fatalf("unexpected discovered callsign: %q", event.Peer.Callsign)
	}
	if !event.Outdated {
		t.Fatalf("expected 0.0.1 to be outdated against 0.0.2")
	}
	if event.DiscoveredAt.IsZero() {
		t.Fatalf("expected discovery time")
	}

	messageBus.Publish(connectors.TopicPeer, domain.PeerUpdate{Peer: domain.Peer{Callsign: "X1NEW1"}})
	assertNoPeerDiscovered(t, sub)
}

func TestPeerDiscoveryProjection_ResetFromStore(t *testing.T) {
	store := domain.NewPeerStore("")
	proj := NewPeerDiscoveryProjection(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, ok := proj.discoveredEvent(domain.PeerUpdate{Peer: domain.Peer{Callsign: "X1AAAA"}}); !ok {
		t.Fatalf("expected first sighting to be a discovery")
	}
	proj.ResetFromStore()
	if _, ok := proj.discoveredEvent(domain.PeerUpdate{Peer: domain.Peer{Callsign: "X1AAAA"}}); !ok {
		t.Fatalf("expected discovery again after baseline reset")
	}
}

func waitPeerDiscovered(t *testing.T, sub bus.Subscription) domain.PeerDiscovered {
	t.Helper()

	select {
	case raw := <-sub:
		event, ok := raw.(domain.PeerDiscovered)
		if !ok {
			t.Fatalf("unexpected payload type: %T", raw)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for peer discovered event")
	}

	return domain.PeerDiscovered{}
}

func assertNoPeerDiscovered(t *testing.T, sub bus.Subscription) {
	t.Helper()

	select {
	case raw := <-sub:
		t.Fatalf("unexpected peer discovered event: %#v", raw)
	case <-time.After(100 * time.Millisecond):
	}
}
