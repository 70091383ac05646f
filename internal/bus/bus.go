package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

// Subscription is a channel returned by MessageBus.Subscribe.
type Subscription chan any

// MessageBus is the application-level topic fan-out that sits behind the
// engine's EventBus: drained events are republished here for stores,
// persistence and notifications.
type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

// DefaultTopicCapacity is the per-subscriber channel buffer.
const DefaultTopicCapacity = 128

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	return NewWithCapacity(logger, DefaultTopicCapacity)
}

func NewWithCapacity(logger *slog.Logger, capacity int) *PubSubBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if capacity <= 0 {
		capacity = DefaultTopicCapacity
	}

	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)

	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

// Route maps an engine event to zero or more topic payloads.
type Route func(ev Event, publish func(topic string, msg any))

// Relay returns a Handler that republishes drained engine events on mb.
// It is meant to be registered with EventBus.Subscribe.
func Relay(mb MessageBus, route Route) Handler {
	return func(ev Event, _ any) {
		route(ev, mb.Publish)
	}
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
