package parcel

import (
	"strconv"
	"time"
)

// Pending is a snapshot of a session that has not completed yet.
type Pending struct {
	Session   string
	From      string
	To        string
	Checksum  Code
	HasHeader bool
	Indices   []int
	LastTouch time.Time
}

// Pending returns the state of an accumulating session.
func (a *Assembler) Pending(session string) (Pending, bool) {
	if len(session) != 2 {
		return Pending{}, false
	}
	idx := SlotIndex(session[0], session[1])
	if idx < 0 || a.slots[idx].empty() {
		return Pending{}, false
	}

	s := &a.slots[idx]
	p := Pending{
		Session:   session,
		From:      string(s.from[:s.fromLen]),
		To:        string(s.to[:s.toLen]),
		Checksum:  s.checksum,
		HasHeader: s.hasHeader,
		LastTouch: s.lastTouch,
		Indices:   make([]int, 0, len(s.parcels)),
	}
	for i := range s.parcels {
		p.Indices = append(p.Indices, s.parcels[i].index)
	}

	return p, true
}

func (p Pending) has(index int) bool {
	for _, v := range p.Indices {
		if v == index {
			return true
		}
	}

	return false
}

func (p Pending) key(index int) string {
	return p.Session + strconv.Itoa(index)
}

// FirstMissing names the first parcel worth asking for: the header when it
// is absent, otherwise the lowest index not yet received.
func (p Pending) FirstMissing() string {
	if !p.HasHeader {
		return p.key(0)
	}
	if len(p.Indices) == 1 {
		return p.key(1)
	}
	for i := 0; i < len(p.Indices); i++ {
		if !p.has(i) {
			return p.key(i)
		}
	}

	return p.key(len(p.Indices))
}

// Missing lists every key below the highest received index that has not
// arrived.
func (p Pending) Missing() []string {
	maxSeen := -1
	for _, v := range p.Indices {
		if v > maxSeen {
			maxSeen = v
		}
	}
	if maxSeen <= 0 {
		return nil
	}

	var out []string
	for i := 0; i < maxSeen; i++ {
		if !p.has(i) {
			out = append(out, p.key(i))
		}
	}

	return out
}
