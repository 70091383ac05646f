package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/skobkin/advchat/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func directionArrow(d domain.MessageDirection) string {
	if d == domain.MessageDirectionOut {
		return ">>"
	}

	return "<<"
}

func formatMessage(msg domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", msg.At.Local().Format(timeLayout), directionArrow(msg.Direction), msg.Kind)
	switch {
	case msg.From != "" && msg.To != "":
		fmt.Fprintf(&b, " %s->%s", msg.From, msg.To)
	case msg.From != "":
		fmt.Fprintf(&b, " %s", msg.From)
	}
	if msg.Address != "" {
		fmt.Fprintf(&b, " [%s", msg.Address)
		if msg.RSSI != nil {
			fmt.Fprintf(&b, " %ddBm", *msg.RSSI)
		}
		b.WriteString("]")
	}
	fmt.Fprintf(&b, ": %s", msg.Body)

	return b.String()
}

func formatPeer(peer domain.Peer, outdated bool, now time.Time) string {
	var b strings.Builder
	b.WriteString(domain.PeerDisplayName(peer))
	if peer.RSSI != nil {
		fmt.Fprintf(&b, " %ddBm (%s)", *peer.RSSI, domain.DetermineSignalQuality(*peer.RSSI))
	}
	if !peer.LastHeardAt.IsZero() {
		fmt.Fprintf(&b, " heard %s ago", now.Sub(peer.LastHeardAt).Truncate(time.Second))
	}
	if outdated {
		b.WriteString(" [outdated firmware]")
	}

	return b.String()
}
