package bluetoothutil

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// BlueZ error names seen while scanning and advertising.
const (
	bluezNotReady      = "org.bluez.Error.NotReady"
	bluezFailed        = "org.bluez.Error.Failed"
	bluezInProgress    = "org.bluez.Error.InProgress"
	bluezDoesNotExist  = "org.bluez.Error.DoesNotExist"
	bluezAlreadyExists = "org.bluez.Error.AlreadyExists"
)

// IsDBusErrorName reports whether err wraps a D-Bus error called want.
func IsDBusErrorName(err error, want string) bool {
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil && dbusErrPtr.Name == want {
		return true
	}

	var dbusErr dbus.Error
	return errors.As(err, &dbusErr) && dbusErr.Name == want
}

func errorText(err error) string {
	return strings.ToLower(err.Error())
}

func IsBenignStopScanError(err error) bool {
	if err == nil {
		return true
	}
	if IsDBusErrorName(err, bluezNotReady) {
		return true
	}
	if IsDBusErrorName(err, bluezFailed) && strings.Contains(errorText(err), "no discovery started") {
		return true
	}

	msg := errorText(err)
	return strings.Contains(msg, "cancel") ||
		strings.Contains(msg, "stopped") ||
		strings.Contains(msg, "not scanning") ||
		strings.Contains(msg, "no scan in progress")
}

func IsScanAlreadyInProgressError(err error) bool {
	if err == nil {
		return false
	}
	if IsDBusErrorName(err, bluezInProgress) {
		return true
	}

	return strings.Contains(errorText(err), "already in progress")
}

// IsBenignStopAdvertiseError covers stopping an advertisement BlueZ has
// already dropped, which happens after adapter resets.
func IsBenignStopAdvertiseError(err error) bool {
	if err == nil {
		return true
	}
	if IsDBusErrorName(err, bluezDoesNotExist) {
		return true
	}

	msg := errorText(err)
	return strings.Contains(msg, "not advertising") || strings.Contains(msg, "does not exist")
}

// IsAdvertisementRegisteredError reports a start on an advertisement that is
// still registered from a previous burst.
func IsAdvertisementRegisteredError(err error) bool {
	if err == nil {
		return false
	}
	if IsDBusErrorName(err, bluezAlreadyExists) {
		return true
	}

	return strings.Contains(errorText(err), "already exists")
}
