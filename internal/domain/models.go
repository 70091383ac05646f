package domain

import (
	"strings"
	"time"
)

// MessageKind is the three-letter record type used by the message log.
type MessageKind string

const (
	// KindText is a single advertisement text.
	KindText MessageKind = "TXT"
	// KindMessage is a reassembled multi-parcel message.
	KindMessage MessageKind = "MSG"
	// KindPing is a node announcement.
	KindPing MessageKind = "PNG"
)

func ParseMessageKind(raw string) (MessageKind, bool) {
	switch kind := MessageKind(strings.ToUpper(strings.TrimSpace(raw))); kind {
	case KindText, KindMessage, KindPing:
		return kind, true
	default:
		return "", false
	}
}

type MessageDirection int

const (
	MessageDirectionIn MessageDirection = iota + 1
	MessageDirectionOut
)

type Message struct {
	LocalID   int64
	Kind      MessageKind
	Checksum  string
	From      string
	To        string
	Body      string
	Address   string
	RSSI      *int
	Direction MessageDirection
	At        time.Time
}

type Peer struct {
	Callsign    string
	Model       string
	Version     string
	Address     string
	RSSI        *int
	FirstSeenAt time.Time
	LastHeardAt time.Time
	UpdatedAt   time.Time
}

type PeerUpdate struct {
	Peer      Peer
	LastHeard time.Time
}

// MessageFilter narrows message queries. Zero fields match everything and
// the time bounds are inclusive.
type MessageFilter struct {
	Kind     MessageKind
	Contains string
	Since    time.Time
	Until    time.Time
}

func (f MessageFilter) Match(m Message) bool {
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.Contains != "" && !strings.Contains(m.Body, f.Contains) {
		return false
	}
	if !f.Since.IsZero() && m.At.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && m.At.After(f.Until) {
		return false
	}

	return true
}

// PeerDiscovered is emitted the first time a callsign is heard live.
type PeerDiscovered struct {
	Peer         Peer
	DiscoveredAt time.Time
	Outdated     bool
}
