package domain

import (
	"context"
	"fmt"
)

const defaultRecentMessagesLoad = 200

// LoadStoresFromRepositories warms the in-memory stores: every known peer
// and the newest recent log records (defaultRecentMessagesLoad when
// recent <= 0).
func LoadStoresFromRepositories(ctx context.Context, peers *PeerStore, inbox *Inbox, peerRepo PeerRepository, msgRepo MessageRepository, recent int) error {
	if recent <= 0 {
		recent = defaultRecentMessagesLoad
	}

	peerItems, err := peerRepo.ListSortedByLastHeard(ctx)
	if err != nil {
		return fmt.Errorf("load peers: %w", err)
	}
	peers.Load(peerItems)

	messageItems, err := msgRepo.Query(ctx, MessageFilter{}, recent)
	if err != nil {
		return fmt.Errorf("load recent messages: %w", err)
	}
	inbox.Load(messageItems)

	return nil
}
