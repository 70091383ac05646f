package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
	"github.com/skobkin/advchat/internal/domain"
)

// PeerDiscoveryProjection emits TopicPeerDiscovered the first time a
// callsign that was not in the store at startup announces itself.
type PeerDiscoveryProjection struct {
	store  *domain.PeerStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	known map[string]struct{}
}

func NewPeerDiscoveryProjection(store *domain.PeerStore, logger *slog.Logger) *PeerDiscoveryProjection {
	if logger == nil {
		logger = slog.Default().With("component", "app.peer_discovery")
	}

	return &PeerDiscoveryProjection{
		store:  store,
		logger: logger,
		now:    time.Now,
		known:  snapshotCallsigns(store),
	}
}

func (p *PeerDiscoveryProjection) Start(ctx context.Context, messageBus bus.MessageBus) {
	if p == nil || messageBus == nil {
		return
	}
	sub := messageBus.Subscribe(connectors.TopicPeer)

	go func() {
		defer messageBus.Unsubscribe(sub, connectors.TopicPeer)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				update, ok := raw.(domain.PeerUpdate)
				if !ok {
					continue
				}
				event, shouldPublish := p.discoveredEvent(update)
				if !shouldPublish {
					continue
				}
				messageBus.Publish(connectors.TopicPeerDiscovered, event)
				p.logger.Info("peer discovered", "callsign", event.Peer.Callsign, "version", event.Peer.Version, "outdated", event.Outdated)
			}
		}
	}()
}

// ResetFromStore re-reads the baseline, e.g. after the log was cleared.
func (p *PeerDiscoveryProjection) ResetFromStore() {
	if p == nil {
		return
	}
	known := snapshotCallsigns(p.store)
	p.mu.Lock()
	p.known = known
	p.mu.Unlock()
	p.logger.Info("peer discovery baseline reset", "known_peers", len(known))
}

func (p *PeerDiscoveryProjection) discoveredEvent(update domain.PeerUpdate) (domain.PeerDiscovered, bool) {
	callsign := domain.NormalizeCallsign(update.Peer.Callsign)
	if callsign == "" {
		return domain.PeerDiscovered{}, false
	}

	p.mu.Lock()
	if _, ok := p.known[callsign]; ok {
		p.mu.Unlock()
		return domain.PeerDiscovered{}, false
	}
	p.known[callsign] = struct{}{}
	p.mu.Unlock()

	peer := update.Peer
	peer.Callsign = callsign
	event := domain.PeerDiscovered{Peer: peer, DiscoveredAt: p.now()}
	if p.store != nil {
		event.Outdated = p.store.Outdated(peer)
	}

	return event, true
}

func snapshotCallsigns(store *domain.PeerStore) map[string]struct{} {
	known := make(map[string]struct{})
	if store == nil {
		return known
	}
	for _, peer := range store.SnapshotSorted() {
		known[peer.Callsign] = struct{}{}
	}

	return known
}
