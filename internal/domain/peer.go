package domain

import (
	"strings"

	"golang.org/x/mod/semver"
)

// NormalizeCallsign trims, upper-cases and rejects placeholder callsigns.
func NormalizeCallsign(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" || v == "UNKNOWN" || v == "GEOGRAM" {
		return ""
	}

	return v
}

func PeerDisplayName(peer Peer) string {
	name := peer.Callsign
	if peer.Model != "" {
		name += " (" + peer.Model
		if peer.Version != "" {
			name += " " + peer.Version
		}
		name += ")"
	}

	return name
}

// CompareVersions compares firmware versions with or without a leading
// "v". ok is false when either side is not semver.
func CompareVersions(a, b string) (cmp int, ok bool) {
	a, b = canonicalVersion(a), canonicalVersion(b)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return 0, false
	}

	return semver.Compare(a, b), true
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}

	return "v" + strings.TrimPrefix(v, "v")
}
