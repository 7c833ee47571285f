package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
)

const subscriberBufferSize = 32

// RoomTopic names the shared topic every observer of a chat room listens on.
func RoomTopic(roomID uint) string {
	return fmt.Sprintf("chatroom:%d", roomID)
}

// UserNotificationTopic names the private topic that reaches one user across
// all their rooms.
func UserNotificationTopic(userID uint) string {
	return fmt.Sprintf("user:%d:notifications", userID)
}

// Broker fans chat events out to topic subscribers. Delivery is at-most-once
// and best-effort: events published to a topic with no active subscriber are
// dropped, as are events for subscribers whose buffer is full.
type Broker interface {
	Publish(ctx context.Context, topic string, event dto.ChatEvent)
	Subscribe(topic string) (<-chan dto.ChatEvent, func())
}

type memoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.ChatEvent]struct{}
	log         zerolog.Logger
}

// NewMemoryBroker constructs an in-process broker.
func NewMemoryBroker(logger zerolog.Logger) Broker {
	return &memoryBroker{
		subscribers: make(map[string]map[chan dto.ChatEvent]struct{}),
		log:         logger.With().Str("component", "memory_broker").Logger(),
	}
}

func (b *memoryBroker) Publish(_ context.Context, topic string, event dto.ChatEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
			b.log.Warn().Str("topic", topic).Msg("dropping event for slow subscriber")
		}
	}
}

func (b *memoryBroker) Subscribe(topic string) (<-chan dto.ChatEvent, func()) {
	ch := make(chan dto.ChatEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[chan dto.ChatEvent]struct{})
	}
	b.subscribers[topic][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if subscribers, ok := b.subscribers[topic]; ok {
			if _, present := subscribers[ch]; present {
				delete(subscribers, ch)
				close(ch)
				if len(subscribers) == 0 {
					delete(b.subscribers, topic)
				}
			}
		}
	}

	return ch, cancel
}
