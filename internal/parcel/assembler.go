package parcel

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long an incomplete assembly may sit untouched.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxParcels bounds the parcels kept per session.
	DefaultMaxParcels = 64
	// maxParcelLen is the largest parcel that fits an advertisement.
	maxParcelLen = 31
)

// Order selects how parcel keys are sorted before reassembly.
type Order int

const (
	// OrderLexical sorts by raw key bytes, so "AA10" sorts before "AA2".
	// Peers that zero-pad their indices are unaffected.
	OrderLexical Order = iota
	// OrderNumeric sorts by decoded index.
	OrderNumeric
)

func (o Order) String() string {
	if o == OrderNumeric {
		return "numeric"
	}

	return "lexical"
}

func ParseOrder(raw string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "lexical":
		return OrderLexical, nil
	case "numeric":
		return OrderNumeric, nil
	default:
		return OrderLexical, fmt.Errorf("unsupported parcel order: %q", raw)
	}
}

type Config struct {
	TTL        time.Duration
	MaxParcels int
	Order      Order
}

func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, MaxParcels: DefaultMaxParcels, Order: OrderLexical}
}

// Message is a completed assembly.
type Message struct {
	Session  string
	From     string
	To       string
	Checksum Code
	Text     string
	// Single is set for a colon-free command that completed on its own.
	Single bool
}

type storedParcel struct {
	raw    [maxParcelLen]byte
	n      uint8
	keyLen uint8
	index  int
}

func (p *storedParcel) key() []byte  { return p.raw[:p.keyLen] }
func (p *storedParcel) body() []byte { return p.raw[p.keyLen+1 : p.n] }

type slot struct {
	session   [2]byte
	from      [maxParcelLen]byte
	fromLen   uint8
	to        [maxParcelLen]byte
	toLen     uint8
	checksum  Code
	hasHeader bool
	lastTouch time.Time
	parcels   []storedParcel
}

func (s *slot) empty() bool { return s.lastTouch.IsZero() }

// reset clears the slot but keeps its parcel buffer for reuse.
func (s *slot) reset() {
	buf := s.parcels[:0]
	*s = slot{parcels: buf}
}

func (s *slot) find(key []byte) bool {
	for i := range s.parcels {
		if bytes.Equal(s.parcels[i].key(), key) {
			return true
		}
	}

	return false
}

// Assembler reconstructs multi-parcel messages. It is not safe for
// concurrent use; the ingest path is its only caller.
type Assembler struct {
	cfg     Config
	slots   [Slots]slot
	scratch []byte
}

func NewAssembler(cfg Config) *Assembler {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxParcels < 2 {
		cfg.MaxParcels = DefaultMaxParcels
	}

	return &Assembler{
		cfg:     cfg,
		scratch: make([]byte, 0, cfg.MaxParcels*maxParcelLen),
	}
}

func (a *Assembler) Config() Config { return a.cfg }

// Add feeds one parcel (content without the marker). It returns the
// completed message when this parcel finished a session. Malformed parcels,
// repeated keys and overflowing sessions are ignored without touching state.
func (a *Assembler) Add(content []byte, now time.Time) (Message, bool) {
	if bytes.IndexByte(content, ':') < 0 {
		if len(content) == 0 {
			return Message{}, false
		}

		return Message{Text: string(content), Single: true}, true
	}
	if len(content) > maxParcelLen {
		return Message{}, false
	}

	pk, ok := parseKey(content)
	if !ok {
		return Message{}, false
	}
	s := &a.slots[pk.slot]
	if s.find(pk.key) || len(s.parcels) >= a.cfg.MaxParcels {
		return Message{}, false
	}

	if pk.index == 0 {
		from, to, code, ok := parseHeader(pk.body)
		if !ok {
			return Message{}, false
		}
		s.fromLen = uint8(copy(s.from[:], from))
		s.toLen = uint8(copy(s.to[:], to))
		s.checksum = code
		s.hasHeader = true
	}

	if s.parcels == nil {
		s.parcels = make([]storedParcel, 0, a.cfg.MaxParcels)
	}
	s.session = [2]byte{content[0], content[1]}
	a.insert(s, content, len(pk.key), pk.index)
	s.lastTouch = now

	if pk.index == 0 || len(s.parcels) < 2 || !s.hasHeader {
		return Message{}, false
	}

	return a.tryComplete(s)
}

func (a *Assembler) insert(s *slot, content []byte, keyLen, index int) {
	var p storedParcel
	p.n = uint8(copy(p.raw[:], content))
	p.keyLen = uint8(keyLen)
	p.index = index

	pos := len(s.parcels)
	for pos > 0 && a.less(&p, &s.parcels[pos-1]) {
		pos--
	}
	s.parcels = append(s.parcels, storedParcel{})
	copy(s.parcels[pos+1:], s.parcels[pos:])
	s.parcels[pos] = p
}

func (a *Assembler) less(x, y *storedParcel) bool {
	if a.cfg.Order == OrderNumeric && x.index != y.index {
		return x.index < y.index
	}

	return bytes.Compare(x.key(), y.key()) < 0
}

func (a *Assembler) tryComplete(s *slot) (Message, bool) {
	body := a.scratch[:0]
	for i := range s.parcels {
		if s.parcels[i].index >= 1 {
			body = append(body, s.parcels[i].body()...)
		}
	}
	a.scratch = body

	if Checksum(body) != s.checksum {
		return Message{}, false
	}

	msg := Message{
		Session:  string(s.session[:]),
		From:     string(s.from[:s.fromLen]),
		To:       string(s.to[:s.toLen]),
		Checksum: s.checksum,
		Text:     string(body),
	}
	s.reset()

	return msg, true
}

// parseHeader splits "<from>:<to>:<checksum>".
func parseHeader(body []byte) (from, to []byte, code Code, ok bool) {
	first := bytes.IndexByte(body, ':')
	if first < 0 {
		return nil, nil, Code{}, false
	}
	second := bytes.IndexByte(body[first+1:], ':')
	if second < 0 {
		return nil, nil, Code{}, false
	}
	second += first + 1

	code, ok = ParseCode(body[second+1:])
	if !ok {
		return nil, nil, Code{}, false
	}

	return body[:first], body[first+1 : second], code, true
}

// Sweep resets every incomplete session untouched for longer than the TTL
// and returns how many were reclaimed.
func (a *Assembler) Sweep(now time.Time) int {
	reclaimed := 0
	for i := range a.slots {
		s := &a.slots[i]
		if s.empty() {
			continue
		}
		if now.Sub(s.lastTouch) > a.cfg.TTL {
			s.reset()
			reclaimed++
		}
	}

	return reclaimed
}

// Active counts sessions currently accumulating parcels.
func (a *Assembler) Active() int {
	n := 0
	for i := range a.slots {
		if !a.slots[i].empty() {
			n++
		}
	}

	return n
}

// Reset drops every session.
func (a *Assembler) Reset() {
	for i := range a.slots {
		a.slots[i].reset()
	}
}
