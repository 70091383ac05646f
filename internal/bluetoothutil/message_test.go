package bluetoothutil

import (
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestMessageServiceUUIDMatches16BitForm(t *testing.T) {
	if got, want := MessageServiceUUID(), bluetooth.New16BitUUID(MessageService16); got != want {
		t.Fatalf("unexpected uuid: got %s want %s", got, want)
	}
	if !MessageServiceUUID().Is16Bit() {
		t.Fatalf("expected a 16-bit UUID")
	}
}

func TestMustParseUUIDPanicsOnInvalidValue(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid UUID")
		}
	}()
	_ = mustParseUUID("not-a-uuid")
}
