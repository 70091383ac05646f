package bluetoothutil

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"tinygo.org/x/bluetooth"
)

// ErrAdapterOff is returned when the controller exists but is powered down
// or blocked by rfkill. Advertising cannot work until it is turned on.
var ErrAdapterOff = errors.New("bluetooth adapter is powered off")

func EnableAdapter(adapter *bluetooth.Adapter) error {
	return enableWith(adapter.Enable, runtime.GOOS)
}

func enableWith(enable func() error, goos string) error {
	err := enable()
	switch {
	case err == nil:
		return nil
	case isBenignEnableAdapterError(err, goos):
		return nil
	case isAdapterOffError(err):
		return fmt.Errorf("%w: %w", ErrAdapterOff, err)
	default:
		return err
	}
}

func isBenignEnableAdapterError(err error, goos string) bool {
	if err == nil || goos != "windows" {
		return false
	}

	// tinygo.org/x/bluetooth on Windows surfaces RoInitialize(S_FALSE=1) as
	// "Incorrect function.", even though this means COM is already initialized.
	msg := strings.TrimSpace(errorText(err))

	return msg == "incorrect function" || msg == "incorrect function."
}

func isAdapterOffError(err error) bool {
	if IsDBusErrorName(err, bluezNotReady) {
		return true
	}
	msg := errorText(err)

	return strings.Contains(msg, "not powered") ||
		strings.Contains(msg, "powered off") ||
		strings.Contains(msg, "rfkill")
}
