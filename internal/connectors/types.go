package connectors

import "time"

// ConnectionState describes the radio lifecycle state.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateListening    ConnectionState = "listening"
	ConnectionStateIdle         ConnectionState = "idle"
)

// ConnStatus is a bus snapshot of the radio status.
type ConnStatus struct {
	State     ConnectionState
	Err       string
	RadioName string
	Target    string
	Timestamp time.Time
}

// RawAdvertisement carries accepted advertisement text for debug views.
type RawAdvertisement struct {
	Address string
	RSSI    int
	Hex     string
	Len     int
}
