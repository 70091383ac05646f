//go:build linux

package bluetoothutil

import "tinygo.org/x/bluetooth"

// AdapterSelectable reports whether ResolveAdapter honors adapter ids.
const AdapterSelectable = true

// ResolveAdapter returns the default adapter or the BlueZ adapter by id.
func ResolveAdapter(adapterID string) *bluetooth.Adapter {
	id := NormalizeAdapterID(adapterID)
	if id == "" {
		return bluetooth.DefaultAdapter
	}

	return bluetooth.NewAdapter(id)
}
