package beacon

import (
	"math/rand/v2"
	"strings"
)

const (
	callsignPrefix   = "X1"
	callsignAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	callsignSuffix   = 4

	// placeholderCallsign is what unprovisioned firmware ships with.
	placeholderCallsign = "geogram"
)

// NewCallsign returns "X1" followed by four random characters from [0-9A-Z].
func NewCallsign(intN func(int) int) string {
	if intN == nil {
		intN = rand.IntN
	}

	var b strings.Builder
	b.Grow(len(callsignPrefix) + callsignSuffix)
	b.WriteString(callsignPrefix)
	for i := 0; i < callsignSuffix; i++ {
		b.WriteByte(callsignAlphabet[intN(len(callsignAlphabet))])
	}

	return b.String()
}

// EnsureCallsign keeps a usable stored callsign and otherwise generates a
// new one. The second result reports whether the value changed and should be
// saved.
func EnsureCallsign(stored string, intN func(int) int) (string, bool) {
	stored = strings.TrimSpace(stored)
	if stored != "" && !strings.EqualFold(stored, placeholderCallsign) && ValidCallsign(stored) {
		return stored, false
	}

	return NewCallsign(intN), true
}

// ValidCallsign accepts 1..16 characters from [0-9A-Z].
func ValidCallsign(callsign string) bool {
	if callsign == "" || len(callsign) > 16 {
		return false
	}
	for i := 0; i < len(callsign); i++ {
		if !strings.ContainsRune(callsignAlphabet, rune(callsign[i])) {
			return false
		}
	}

	return true
}
