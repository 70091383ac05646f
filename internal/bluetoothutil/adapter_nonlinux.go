//go:build !linux

package bluetoothutil

import "tinygo.org/x/bluetooth"

// AdapterSelectable is false outside BlueZ: the stack only exposes the
// system default controller.
const AdapterSelectable = false

func ResolveAdapter(_ string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
