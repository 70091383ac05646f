package bus

import "unicode/utf8"

// Kind tags the active member of an Event.
type Kind uint8

const (
	KindSingleText Kind = iota + 1
	KindMessageDone
)

func (k Kind) String() string {
	switch k {
	case KindSingleText:
		return "single_text"
	case KindMessageDone:
		return "message_done"
	default:
		return "unknown"
	}
}

const (
	// TextCapacity bounds event text and snippets.
	TextCapacity = 64
	// NameCapacity bounds sender and destination ids.
	NameCapacity = 16
)

// Text is a fixed-capacity byte string. Set truncates on a rune boundary and
// records the stored length.
type Text struct {
	buf [TextCapacity]byte
	n   uint8
}

func (t *Text) Set(p []byte) int {
	t.n = uint8(truncateInto(t.buf[:], p))
	return int(t.n)
}

func (t *Text) SetString(s string) int { return t.Set([]byte(s)) }

func (t Text) Bytes() []byte  { return t.buf[:t.n] }
func (t Text) String() string { return string(t.buf[:t.n]) }
func (t Text) Len() int       { return int(t.n) }

// Name is a fixed-capacity id such as a sender or destination.
type Name struct {
	buf [NameCapacity]byte
	n   uint8
}

func (n *Name) SetString(s string) int {
	n.n = uint8(truncateInto(n.buf[:], []byte(s)))
	return int(n.n)
}

func (n Name) String() string { return string(n.buf[:n.n]) }

func truncateInto(dst, src []byte) int {
	if len(src) <= len(dst) {
		return copy(dst, src)
	}
	end := len(dst)
	for end > 0 && !utf8.RuneStart(src[end]) {
		end--
	}

	return copy(dst, src[:end])
}

// SingleText is one accepted advertisement, marker included.
type SingleText struct {
	Text    Text
	RSSI    int8
	Address [6]byte
}

// MessageDone reports a reassembled multi-parcel message. Only a snippet of
// the body travels in the event; FullLength is the body size in bytes.
type MessageDone struct {
	Session    [2]byte
	From       Name
	To         Name
	Checksum   [4]byte
	FullLength uint32
	Snippet    Text
}

// Event is copied by value into and out of the queue.
type Event struct {
	Kind   Kind
	Single SingleText
	Done   MessageDone

	seq uint64
}

// Seq is the publish order assigned by the queue.
func (e Event) Seq() uint64 { return e.seq }
