package bluetoothutil

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// MessageService16 is the 16-bit service data UUID that carries text
// advertisements.
const MessageService16 uint16 = 0xFFF0

// Same UUID in full Bluetooth base form, as BlueZ reports it.
var messageServiceUUID = mustParseUUID("0000fff0-0000-1000-8000-00805f9b34fb")

func mustParseUUID(raw string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(strings.TrimSpace(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid bluetooth UUID %q: %v", raw, err))
	}

	return uuid
}

func MessageServiceUUID() bluetooth.UUID {
	return messageServiceUUID
}
