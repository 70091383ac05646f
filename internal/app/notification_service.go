package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/config"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
	"github.com/skobkin/advchat/internal/notifications"
)

const (
	notificationTitlePeerDiscovered = "New peer discovered"
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	peerStore     *domain.PeerStore
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	peerStore *domain.PeerStore,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		peerStore:     peerStore,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	msgSub := s.bus.Subscribe(connectors.TopicMessage)
	peerSub := s.bus.Subscribe(connectors.TopicPeerDiscovered)
	connSub := s.bus.Subscribe(connectors.TopicConnStatus)

	go func() {
		defer s.bus.Unsubscribe(msgSub, connectors.TopicMessage)
		defer s.bus.Unsubscribe(peerSub, connectors.TopicPeerDiscovered)
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-msgSub:
				if !ok {
					return
				}
				msg, ok := raw.(domain.Message)
				if !ok {
					continue
				}
				s.handleIncomingMessage(msg)
			case raw, ok := <-peerSub:
				if !ok {
					return
				}
				event, ok := raw.(domain.PeerDiscovered)
				if !ok {
					continue
				}
				s.handlePeerDiscovered(event)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			}
		}
	}()
}

func (s *NotificationService) handleIncomingMessage(msg domain.Message) {
	cfg := s.config()
	if msg.Direction != domain.MessageDirectionIn || msg.Kind != domain.KindMessage {
		return
	}
	if !cfg.Notifications.Enabled || !cfg.Notifications.Events.IncomingMessage {
		return
	}

	sender := s.senderName(msg.From)
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		body = "(empty)"
	}

	to := domain.NormalizeCallsign(msg.To)
	title := "#" + strings.TrimSpace(msg.To)
	direct := to != "" && to == domain.NormalizeCallsign(cfg.Beacon.Callsign)
	if direct {
		title = "@" + sender
	}
	if strings.TrimSpace(msg.To) == "" {
		title = "#all"
	}

	s.send(notifications.Payload{
		Title:   title,
		Content: fmt.Sprintf("%s: %s", sender, body),
		Alert:   direct,
	})
}

func (s *NotificationService) handlePeerDiscovered(event domain.PeerDiscovered) {
	cfg := s.config()
	if !cfg.Notifications.Enabled || !cfg.Notifications.Events.PeerDiscovered {
		return
	}

	content := domain.PeerDisplayName(event.Peer)
	if content == "" {
		return
	}
	if event.Outdated {
		content += ", firmware is outdated"
	}
	s.send(notifications.Payload{
		Title:   notificationTitlePeerDiscovered,
		Content: content,
	})
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnStatus) {
	cfg := s.config()
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State != connectors.ConnectionStateListening &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	if !cfg.Notifications.Enabled || !cfg.Notifications.Events.ConnectionStatus {
		return
	}

	radioName := radioDisplayName(status.RadioName)
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No radio details"
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", radioName, status.State),
		Content: details,
	})
}

func (s *NotificationService) config() config.AppConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg
}

func (s *NotificationService) senderName(callsign string) string {
	normalized := domain.NormalizeCallsign(callsign)
	if normalized == "" {
		return "unknown"
	}
	if s.peerStore != nil {
		if peer, ok := s.peerStore.Get(normalized); ok {
			return domain.PeerDisplayName(peer)
		}
	}

	return normalized
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
		Alert:   notification.Alert,
	})
}

func radioDisplayName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "serial":
		return "Serial dongle"
	case "bluetooth":
		return "Bluetooth LE"
	case "":
		return "Unknown"
	default:
		return strings.TrimSpace(name)
	}
}
