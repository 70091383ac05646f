package domain

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
)

// PeerStore keeps the latest announcement of every heard node in memory.
type PeerStore struct {
	ourVersion string

	mu      sync.RWMutex
	peers   map[string]Peer
	changes chan struct{}
}

// NewPeerStore builds a store that compares peer firmware to ourVersion.
func NewPeerStore(ourVersion string) *PeerStore {
	return &PeerStore{
		ourVersion: strings.TrimSpace(ourVersion),
		peers:      make(map[string]Peer),
		changes:    make(chan struct{}, 1),
	}
}

func (s *PeerStore) Load(peers []Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, peer := range peers {
		s.peers[peer.Callsign] = peer
	}
	s.notify()
}

func (s *PeerStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicPeer)
	go func() {
		defer b.Unsubscribe(sub, connectors.TopicPeer)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				update, ok := msg.(PeerUpdate)
				if !ok {
					continue
				}
				peer := update.Peer
				if peer.LastHeardAt.IsZero() {
					peer.LastHeardAt = update.LastHeard
				}
				s.Upsert(peer)
			}
		}
	}()
}

// Upsert merges a sparse announcement into the stored peer and reports
// whether the callsign was new.
func (s *PeerStore) Upsert(peer Peer) bool {
	peer.Callsign = NormalizeCallsign(peer.Callsign)
	if peer.Callsign == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.peers[peer.Callsign]
	if ok {
		if peer.Model == "" {
			peer.Model = existing.Model
		}
		if peer.Version == "" {
			peer.Version = existing.Version
		}
		if peer.Address == "" {
			peer.Address = existing.Address
		}
		if peer.RSSI == nil {
			peer.RSSI = existing.RSSI
		}
		if !existing.FirstSeenAt.IsZero() && (peer.FirstSeenAt.IsZero() || existing.FirstSeenAt.Before(peer.FirstSeenAt)) {
			peer.FirstSeenAt = existing.FirstSeenAt
		}
		if peer.LastHeardAt.IsZero() || existing.LastHeardAt.After(peer.LastHeardAt) {
			peer.LastHeardAt = existing.LastHeardAt
		}
		if existing.UpdatedAt.After(peer.UpdatedAt) {
			peer.UpdatedAt = existing.UpdatedAt
		}
	}
	if peer.UpdatedAt.IsZero() {
		peer.UpdatedAt = time.Now()
	}
	if peer.FirstSeenAt.IsZero() {
		peer.FirstSeenAt = peer.LastHeardAt
	}
	s.peers[peer.Callsign] = peer
	s.notify()

	return !ok
}

func (s *PeerStore) SnapshotSorted() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		out = append(out, peer)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastHeardAt.Equal(out[j].LastHeardAt) {
			return out[i].Callsign < out[j].Callsign
		}
		return out[i].LastHeardAt.After(out[j].LastHeardAt)
	})

	return out
}

func (s *PeerStore) Get(callsign string) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peer, ok := s.peers[NormalizeCallsign(callsign)]

	return peer, ok
}

// Outdated reports whether peer runs an older firmware than this node.
// Unparseable versions are never outdated.
func (s *PeerStore) Outdated(peer Peer) bool {
	cmp, ok := CompareVersions(peer.Version, s.ourVersion)

	return ok && cmp < 0
}

func (s *PeerStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *PeerStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = make(map[string]Peer)
	s.notify()
}

func (s *PeerStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
