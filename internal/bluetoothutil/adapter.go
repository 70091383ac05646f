package bluetoothutil

import "strings"

// NormalizeAdapterID accepts "hci1", "HCI1" or a bare "1".
func NormalizeAdapterID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return ""
	}
	if strings.Trim(id, "0123456789") == "" {
		return "hci" + id
	}

	return id
}
