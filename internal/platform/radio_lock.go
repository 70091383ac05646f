// Package platform holds OS-specific helpers.
package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrRadioBusy indicates another process already drives the same radio.
var ErrRadioBusy = errors.New("radio is used by another process")

// ErrRadioLockUnsupported indicates the current platform has no lock backend implementation.
var ErrRadioLockUnsupported = errors.New("radio lock unsupported")

// RadioLock is held for as long as this process owns a radio.
type RadioLock interface {
	Release() error
}

// AcquireRadioLock takes an exclusive per-user lock named after appID and
// the radio target, e.g. an adapter id or a serial port path. The lock is
// dropped by the OS when the process dies.
func AcquireRadioLock(appID, target string) (RadioLock, error) {
	return acquireRadioLock(radioLockName(appID, target), lockOwner{
		PID:    os.Getpid(),
		Target: strings.TrimSpace(target),
		Since:  time.Now(),
	})
}

// lockOwner is written into lock files so a busy radio can be traced back
// to the process holding it.
type lockOwner struct {
	PID    int
	Target string
	Since  time.Time
}

func (o lockOwner) String() string {
	return fmt.Sprintf("pid=%d target=%s since=%s", o.PID, o.Target, o.Since.UTC().Format(time.RFC3339))
}

// busyError wraps ErrRadioBusy with whatever the current holder recorded.
func busyError(holder string) error {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return ErrRadioBusy
	}

	return fmt.Errorf("%w (%s)", ErrRadioBusy, holder)
}

func radioLockName(appID, target string) string {
	return normalizeLockComponent(appID, "app") + "-" + normalizeLockComponent(target, "radio")
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
