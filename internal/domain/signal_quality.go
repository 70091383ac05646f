package domain

// RSSI thresholds for BLE advertising reception, in dBm.
const (
	RSSIGood = -67
	RSSIFair = -80
	// RSSIUnavailable is what HCI controllers report when they have no
	// reading for the frame.
	RSSIUnavailable = 127
)

type SignalQuality int

const (
	SignalUnknown SignalQuality = iota
	SignalBad
	SignalFair
	SignalGood
)

func (q SignalQuality) String() string {
	switch q {
	case SignalGood:
		return "good"
	case SignalFair:
		return "fair"
	case SignalBad:
		return "bad"
	default:
		return "unknown"
	}
}

// DetermineSignalQuality grades a received RSSI. Zero and RSSIUnavailable
// mean the radio did not report one.
func DetermineSignalQuality(rssi int) SignalQuality {
	if rssi == 0 || rssi == RSSIUnavailable {
		return SignalUnknown
	}
	if rssi >= RSSIGood {
		return SignalGood
	}
	if rssi >= RSSIFair {
		return SignalFair
	}
	return SignalBad
}
