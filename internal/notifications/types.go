package notifications

// Payload is one user-facing notification.
type Payload struct {
	Title   string
	Content string
	// Alert asks the backend to also play its attention sound. Used for
	// messages addressed to our own callsign.
	Alert bool
}

// Sender delivers notifications. Send must not block the caller for long.
type Sender interface {
	Send(payload Payload)
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(Payload)

func (f SenderFunc) Send(payload Payload) { f(payload) }
