package parcel

// Code is a 4-letter integrity code.
type Code [4]byte

// EmptyCode is the code of empty input.
var EmptyCode = Code{'A', 'A', 'A', 'A'}

func (c Code) String() string { return string(c[:]) }

// Checksum sums the byte values of p and encodes the sum as four base-26
// letters, least significant first.
func Checksum(p []byte) Code {
	if len(p) == 0 {
		return EmptyCode
	}

	var sum uint64
	for _, b := range p {
		sum += uint64(b)
	}

	var c Code
	for i := range c {
		c[i] = byte('A' + sum%26)
		sum /= 26
	}

	return c
}

// ParseCode accepts exactly four letters A-Z.
func ParseCode(p []byte) (Code, bool) {
	var c Code
	if len(p) != len(c) {
		return c, false
	}
	for i, b := range p {
		if b < 'A' || b > 'Z' {
			return Code{}, false
		}
		c[i] = b
	}

	return c, true
}
