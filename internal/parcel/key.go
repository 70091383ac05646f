package parcel

import "strconv"

// Slots is the number of addressable sessions (two letters A-Z).
const Slots = 26 * 26

// maxIndexDigits bounds the decimal index so it always fits an int.
const maxIndexDigits = 5

// SlotIndex maps a two-letter session id to its slot, or -1.
func SlotIndex(a, b byte) int {
	if a < 'A' || a > 'Z' || b < 'A' || b > 'Z' {
		return -1
	}

	return int(a-'A')*26 + int(b-'A')
}

// LooksLikeParcel reports whether content starts with a two-letter session
// id, at least one digit and a colon.
func LooksLikeParcel(content []byte) bool {
	if len(content) < 4 || SlotIndex(content[0], content[1]) < 0 {
		return false
	}
	i := 2
	if content[i] < '0' || content[i] > '9' {
		return false
	}
	for i < len(content) && content[i] >= '0' && content[i] <= '9' {
		i++
	}

	return i < len(content) && content[i] == ':'
}

// parsedKey is the "<id><index>" prefix of a parcel plus what follows the colon.
type parsedKey struct {
	slot  int
	key   []byte
	index int
	body  []byte
}

func parseKey(content []byte) (parsedKey, bool) {
	if len(content) < 4 {
		return parsedKey{}, false
	}
	slot := SlotIndex(content[0], content[1])
	if slot < 0 {
		return parsedKey{}, false
	}

	index, i := 0, 2
	for i < len(content) && content[i] >= '0' && content[i] <= '9' {
		if i-2 >= maxIndexDigits {
			return parsedKey{}, false
		}
		index = index*10 + int(content[i]-'0')
		i++
	}
	if i == 2 || i >= len(content) || content[i] != ':' {
		return parsedKey{}, false
	}

	return parsedKey{slot: slot, key: content[:i], index: index, body: content[i+1:]}, true
}

// FormatKey renders a parcel key with the index zero-padded to width.
func FormatKey(session string, index, width int) string {
	digits := strconv.Itoa(index)
	for len(digits) < width {
		digits = "0" + digits
	}

	return session + digits
}
