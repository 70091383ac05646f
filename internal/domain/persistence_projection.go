package domain

import (
	"context"

	"github.com/skobkin/advchat/internal/bus"
	"github.com/skobkin/advchat/internal/connectors"
)

// WriteQueue serializes persistence writes from async domain events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartPersistenceProjection stores peer announcements and received
// messages. Outgoing messages are written by the sender itself.
func StartPersistenceProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, peerRepo PeerRepository, msgRepo MessageRepository) {
	peerSub := b.Subscribe(connectors.TopicPeer)
	messageTopics := []string{connectors.TopicText, connectors.TopicMessage}
	messageSub := b.Subscribe(messageTopics...)

	go func() {
		defer b.Unsubscribe(peerSub, connectors.TopicPeer)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-peerSub:
				if !ok {
					return
				}
				update, ok := raw.(PeerUpdate)
				if !ok {
					continue
				}
				p := update.Peer
				if p.LastHeardAt.IsZero() {
					p.LastHeardAt = update.LastHeard
				}
				queue.Enqueue("upsert_peer", func(writeCtx context.Context) error {
					return peerRepo.Upsert(writeCtx, p)
				})
			}
		}
	}()

	go func() {
		defer b.Unsubscribe(messageSub, messageTopics...)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-messageSub:
				if !ok {
					return
				}
				msg, ok := raw.(Message)
				if !ok {
					continue
				}
				copyMsg := msg
				queue.Enqueue("insert_message", func(writeCtx context.Context) error {
					_, err := msgRepo.Insert(writeCtx, copyMsg)

					return err
				})
			}
		}
	}()
}
