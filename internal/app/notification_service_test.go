package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/notifications"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notifications.Payload
	ch   chan notifications.Payload
}

func newRecordingSender() *recordingSender {
	return &recordingSender{ch: make(chan notifications.Payload, 16)}
}

func (s *recordingSender) Send(payload notifications.Payload) {
	s.mu.Lock()
	s.sent = append(s.sent, payload)
	s.mu.Unlock()
	s.ch <- payload
}

func (s *recordingSender) wait(t *testing.T) notifications.Payload {
	t.Helper()
	select {
	case p := <-s.ch:
		return p
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for notification")
	}

	return notifications.Payload{}
}

func (s *recordingSender) assertNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-s.ch:
		t.Fatalf("unexpected notification %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func startNotificationService(t *testing.T, cfg config.AppConfig, store *domain.PeerStore) (*bus.PubSubBus, *recordingSender) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(messageBus.Close)
	sender := newRecordingSender()
	svc := NewNotificationService(messageBus, store, func() config.AppConfig { return cfg }, sender, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc.Start(ctx)

	return messageBus, sender
}

func TestNotificationService_IncomingMessage(t *testing.T) {
	cfg := config.Default()
	cfg.Beacon.Callsign = "X1ME00"
	store := domain.NewPeerStore("")
	store.Upsert(domain.Peer{Callsign: "X1PEER", Model: "LT1", Version: "0.0.1"})
	messageBus, sender := startNotificationService(t, cfg, store)

	messageBus.Publish(connectors.TopicMessage, domain.Message{
		Kind:      domain.KindMessage,
		From:      "X1PEER",
		To:        "X1ME00",
		Body:      " HelloWorld ",
		Direction: domain.MessageDirectionIn,
	})
	got := sender.wait(t)
	if got.Title != "@X1PEER (LT1 0.0.1)" {
		t.Fatalf("unexpected direct title %q", got.Title)
	}
	if got.Content != "X1PEER (LT1 0.0.1): HelloWorld" || !got.Alert {
		t.Fatalf("unexpected direct notification %+v", got)
	}

	messageBus.Publish(connectors.TopicMessage, domain.Message{
		Kind:      domain.KindMessage,
		From:      "X1ZZZZ",
		To:        "chat",
		Body:      "hi",
		Direction: domain.MessageDirectionIn,
	})
	got = sender.wait(t)
	if got.Title != "#chat" || got.Content != "X1ZZZZ: hi" || got.Alert {
		t.Fatalf("unexpected group notification %+v", got)
	}

	// Outgoing and single texts stay quiet.
	messageBus.Publish(connectors.TopicMessage, domain.Message{Kind: domain.KindMessage, Body: "mine", Direction: domain.MessageDirectionOut})
	messageBus.Publish(connectors.TopicMessage, domain.Message{Kind: domain.KindText, Body: "txt", Direction: domain.MessageDirectionIn})
	sender.assertNone(t)
}

func TestNotificationService_RespectsToggles(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Events.IncomingMessage = false
	messageBus, sender := startNotificationService(t, cfg, nil)

	messageBus.Publish(connectors.TopicMessage, domain.Message{Kind: domain.KindMessage, Body: "hi", Direction: domain.MessageDirectionIn})
	sender.assertNone(t)

	messageBus.Publish(connectors.TopicPeerDiscovered, domain.PeerDiscovered{Peer: domain.Peer{Callsign: "X1NEW1", Model: "LT1", Version: "0.0.1"}, Outdated: true})
	got := sender.wait(t)
	if got.Title != notificationTitlePeerDiscovered {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if !strings.HasPrefix(got.Content, "X1NEW1 (LT1 0.0.1)") || !strings.Contains(got.Content, "outdated") {
		t.Fatalf("unexpected content %q", got.Content)
	}
}

func TestNotificationService_ConnectionStatusTransitions(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Events.ConnectionStatus = true
	messageBus, sender := startNotificationService(t, cfg, nil)

	radioCfg := config.RadioConfig{Connector: config.ConnectorSerial, SerialPort: "/dev/ttyACM0"}
	messageBus.Publish(connectors.TopicConnStatus, ConnStatus(radioCfg, connectors.ConnectionStateConnecting, nil))
	sender.assertNone(t)

	messageBus.Publish(connectors.TopicConnStatus, ConnStatus(radioCfg, connectors.ConnectionStateListening, nil))
	got := sender.wait(t)
	if got.Title != "Serial dongle - listening" || got.Content != "/dev/ttyACM0" {
		t.Fatalf("unexpected listening notification %+v", got)
	}

	// Same state twice is collapsed.
	messageBus.Publish(connectors.TopicConnStatus, ConnStatus(radioCfg, connectors.ConnectionStateListening, nil))
	sender.assertNone(t)

	messageBus.Publish(connectors.TopicConnStatus, ConnStatus(radioCfg, connectors.ConnectionStateDisconnected, errors.New("unplugged")))
	got = sender.wait(t)
	if got.Content != "/dev/ttyACM0 (error: unplugged)" {
		t.Fatalf("unexpected disconnect content %q", got.Content)
	}
}

func TestNotificationService_DisabledGlobally(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = false
	messageBus, sender := startNotificationService(t, cfg, nil)

	messageBus.Publish(connectors.TopicPeerDiscovered, domain.PeerDiscovered{Peer: domain.Peer{Callsign: "X1NEW1"}})
	sender.assertNone(t)
}
