package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the OS notification service.
type DesktopSender struct {
	appName string
	icon    any
	notify  func(title, message string, icon any) error
	alert   func(title, message string, icon any) error
	logger  *slog.Logger
}

// NewDesktopSender builds a sender whose titles are prefixed with appName.
// icon is passed to beeep as is: a file path, embedded bytes or nil.
func NewDesktopSender(appName string, icon any, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	beeep.AppName = appName

	return &DesktopSender{
		appName: strings.TrimSpace(appName),
		icon:    icon,
		notify:  beeep.Notify,
		alert:   beeep.Alert,
		logger:  logger,
	}
}

func (s *DesktopSender) Send(payload Payload) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = s.appName
	}
	show := s.notify
	if payload.Alert {
		show = s.alert
	}
	if err := show(title, strings.TrimSpace(payload.Content), s.icon); err != nil {
		s.logger.Warn("send desktop notification", "title", title, "error", err)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Send(Payload) {}
