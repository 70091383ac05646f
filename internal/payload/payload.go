// Package payload holds the first two ingest stages for advertisement text:
// content validation and payload-based duplicate suppression.
package payload

import "unicode/utf8"

// Marker is the first byte of every text advertisement.
const Marker = '>'

// DefaultMinLength is the minimum content length (bytes after the marker).
const DefaultMinLength = 5

// Validator is a pure predicate over advertisement content.
type Validator struct {
	MinLength int
	// ASCIIOnly switches to the lenient printable-ASCII mode. The default
	// accepts any well-formed UTF-8 text without control characters.
	ASCIIOnly bool
}

func NewValidator() Validator {
	return Validator{MinLength: DefaultMinLength}
}

// Split separates a raw advertisement into its content and reports whether
// the frame carried the text marker at all.
func Split(raw []byte) ([]byte, bool) {
	if len(raw) < 2 || raw[0] != Marker {
		return nil, false
	}

	return raw[1:], true
}

// Valid reports whether content (the bytes after the marker) is acceptable.
func (v Validator) Valid(content []byte) bool {
	if v.ASCIIOnly {
		if !printableASCII(content) {
			return false
		}
	} else if !textLine(content) {
		return false
	}

	return len(content) >= v.MinLength
}

func printableASCII(p []byte) bool {
	for _, c := range p {
		if c < 0x20 || c >= 0x7F {
			return false
		}
	}

	return true
}

// textLine accepts well-formed UTF-8 without C0 controls or DEL. utf8 already
// rejects overlong forms, surrogate code points and truncated sequences.
func textLine(p []byte) bool {
	for i := 0; i < len(p); {
		c := p[i]
		if c < utf8.RuneSelf {
			if c < 0x20 || c == 0x7F {
				return false
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size <= 1 {
			return false
		}
		i += size
	}

	return true
}
