package domain

import "context"

type PeerRepository interface {
	Upsert(ctx context.Context, p Peer) error
	ListSortedByLastHeard(ctx context.Context) ([]Peer, error)
}

type MessageRepository interface {
	// Insert stores m and returns its id, or 0 when the same checksum is
	// already logged for that day.
	Insert(ctx context.Context, m Message) (int64, error)
	Query(ctx context.Context, filter MessageFilter, limit int) ([]Message, error)
}
