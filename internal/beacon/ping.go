// Package beacon announces this node with a periodic ping advertisement and
// parses pings heard from others.
package beacon

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// PingPrefix starts every ping body.
	PingPrefix = '+'
	// MaxPingLen is the longest ping body that is still sent.
	MaxPingLen = 30

	DefaultModel   = "LT1"
	DefaultVersion = "0.0.1"
)

var ErrPingTooLong = errors.New("ping does not fit the advertisement")

// Ping is a decoded "+CALLSIGN#MODEL-VERSION" body.
type Ping struct {
	Callsign string
	Model    string
	Version  string
}

func (p Ping) String() string {
	return fmt.Sprintf("%c%s#%s-%s", PingPrefix, p.Callsign, p.Model, p.Version)
}

// Encode returns the ping body without the advertisement marker.
func (p Ping) Encode() ([]byte, error) {
	body := p.String()
	if len(body) > MaxPingLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPingTooLong, len(body))
	}

	return []byte(body), nil
}

// ParsePing decodes content (marker already stripped). The model and
// version are split at the first '-'; a body without '#' or '-' still
// yields the callsign.
func ParsePing(content string) (Ping, bool) {
	if len(content) < 2 || content[0] != PingPrefix {
		return Ping{}, false
	}
	callsign, rest, _ := strings.Cut(content[1:], "#")
	if !ValidCallsign(callsign) {
		return Ping{}, false
	}
	model, version, _ := strings.Cut(rest, "-")

	return Ping{Callsign: callsign, Model: model, Version: version}, true
}
