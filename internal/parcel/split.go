package parcel

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/skobkin/advchat/internal/payload"
)

const (
	// DefaultChunkSize is the number of text bytes per data parcel.
	DefaultChunkSize = 20
	// DefaultPayloadMax is the advertisement text capacity, marker included.
	DefaultPayloadMax = 24
)

var (
	ErrEmptyText      = errors.New("message text is empty")
	ErrInvalidText    = errors.New("message text contains control characters or malformed utf-8")
	ErrInvalidAddress = errors.New("sender and destination must not contain ':'")
	ErrInvalidSession = errors.New("session id must be two letters A-Z")
	ErrHeaderTooLong  = errors.New("header parcel does not fit the advertisement")
	ErrTooManyParcels = errors.New("message needs more parcels than a session can hold")
)

type SplitOptions struct {
	// Session is the two-letter id; empty picks a random one.
	Session    string
	ChunkSize  int
	PayloadMax int
	MaxParcels int
	// IntN overrides the random source used for session ids.
	IntN func(n int) int
}

// Outgoing is a message split into parcels ready to be sent in order.
// Parcels carry no marker byte.
type Outgoing struct {
	Session  string
	From     string
	To       string
	Checksum Code
	Text     string
	Parcels  []string
}

// Split builds the header parcel "<id>0:<from>:<to>:<checksum>" followed by
// data parcels. Data parcels never cut a UTF-8 sequence, and every parcel
// plus the marker fits PayloadMax. With more than nine data parcels all
// indices are zero-padded to the same width.
func Split(from, to, text string, opts SplitOptions) (Outgoing, error) {
	if text == "" {
		return Outgoing{}, ErrEmptyText
	}
	if !(payload.Validator{}).Valid([]byte(text + from + to)) {
		return Outgoing{}, ErrInvalidText
	}
	if strings.ContainsRune(from, ':') || strings.ContainsRune(to, ':') {
		return Outgoing{}, ErrInvalidAddress
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.PayloadMax <= 0 {
		opts.PayloadMax = DefaultPayloadMax
	}
	if opts.MaxParcels <= 0 {
		opts.MaxParcels = DefaultMaxParcels
	}

	session := opts.Session
	if session == "" {
		session = randomSession(opts.IntN)
	}
	if len(session) != 2 || SlotIndex(session[0], session[1]) < 0 {
		return Outgoing{}, ErrInvalidSession
	}

	chunks, width, err := chunkText(text, session, opts)
	if err != nil {
		return Outgoing{}, err
	}
	if len(chunks)+1 > opts.MaxParcels {
		return Outgoing{}, ErrTooManyParcels
	}

	code := Checksum([]byte(text))
	header := FormatKey(session, 0, width) + ":" + from + ":" + to + ":" + code.String()
	if 1+len(header) > opts.PayloadMax {
		return Outgoing{}, ErrHeaderTooLong
	}

	out := Outgoing{
		Session:  session,
		From:     from,
		To:       to,
		Checksum: code,
		Text:     text,
		Parcels:  make([]string, 0, len(chunks)+1),
	}
	out.Parcels = append(out.Parcels, header)
	for i, chunk := range chunks {
		out.Parcels = append(out.Parcels, FormatKey(session, i+1, width)+":"+chunk)
	}

	return out, nil
}

// chunkText settles on an index width and the chunks it allows. A wider
// index leaves less room per parcel, which can raise the count again.
func chunkText(text, session string, opts SplitOptions) ([]string, int, error) {
	width := 1
	for {
		budget := opts.PayloadMax - 1 - len(session) - width - 1
		if budget > opts.ChunkSize {
			budget = opts.ChunkSize
		}
		if budget < utf8.UTFMax {
			return nil, 0, ErrTooManyParcels
		}

		chunks := chunkRunes(text, budget)
		need := 1
		if len(chunks) > 9 {
			need = len(strconv.Itoa(len(chunks)))
		}
		if need <= width {
			return chunks, width, nil
		}
		width = need
	}
}

func chunkRunes(text string, budget int) []string {
	var chunks []string
	for len(text) > 0 {
		end := len(text)
		if end > budget {
			end = budget
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}

	return chunks
}

func randomSession(intN func(int) int) string {
	if intN == nil {
		intN = rand.IntN
	}

	return string([]byte{byte('A' + intN(26)), byte('A' + intN(26))})
}
