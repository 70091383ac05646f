package bluetoothutil

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestEnableWith(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		goos    string
		wantErr bool
		wantOff bool
	}{
		{name: "ok", err: nil, goos: "linux"},
		{name: "windows already initialized", err: errors.New("Incorrect function."), goos: "windows"},
		{name: "incorrect function elsewhere", err: errors.New("Incorrect function."), goos: "linux", wantErr: true},
		{name: "bluez not ready", err: &dbus.Error{Name: bluezNotReady}, goos: "linux", wantErr: true, wantOff: true},
		{name: "rfkill text", err: errors.New("adapter blocked by rfkill"), goos: "linux", wantErr: true, wantOff: true},
		{name: "other", err: errors.New("no such adapter"), goos: "linux", wantErr: true},
	}

	for _, tc := range tests {
		got := enableWith(func() error { return tc.err }, tc.goos)
		if (got != nil) != tc.wantErr {
			t.Fatalf("%s: unexpected error state: %v", tc.name, got)
		}
		if errors.Is(got, ErrAdapterOff) != tc.wantOff {
			t.Fatalf("%s: unexpected ErrAdapterOff match: %v", tc.name, got)
		}
		if tc.wantErr && tc.err != nil && !errors.Is(got, tc.err) {
			t.Fatalf("%s: expected original error to be wrapped, got %v", tc.name, got)
		}
	}
}
