package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cambohq/marketplace-api/internal/dto"
)

func TestMemoryBrokerFansOutToAllTopicSubscribers(t *testing.T) {
	broker := NewMemoryBroker(zerolog.Nop())

	first, cancelFirst := broker.Subscribe(RoomTopic(1))
	defer cancelFirst()
	second, cancelSecond := broker.Subscribe(RoomTopic(1))
	defer cancelSecond()
	other, cancelOther := broker.Subscribe(RoomTopic(2))
	defer cancelOther()

	event := dto.ChatEvent{ChatRoomID: 1, SenderID: 1, Content: "hello", Type: dto.ChatEventChat}
	broker.Publish(context.Background(), RoomTopic(1), event)

	require.Equal(t, event, receiveEvent(t, first))
	require.Equal(t, event, receiveEvent(t, second))

	select {
	case unexpected := <-other:
		t.Fatalf("event leaked across topics: %+v", unexpected)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBrokerPublishWithoutSubscribersIsDropped(t *testing.T) {
	broker := NewMemoryBroker(zerolog.Nop())

	// Must not panic or block.
	broker.Publish(context.Background(), RoomTopic(1), dto.ChatEvent{ChatRoomID: 1, Type: dto.ChatEventChat})
}

func TestMemoryBrokerCancelClosesChannel(t *testing.T) {
	broker := NewMemoryBroker(zerolog.Nop())

	events, cancel := broker.Subscribe(RoomTopic(1))
	cancel()

	_, open := <-events
	require.False(t, open)

	// Double cancel is safe.
	cancel()

	broker.Publish(context.Background(), RoomTopic(1), dto.ChatEvent{ChatRoomID: 1, Type: dto.ChatEventChat})
}

func TestMemoryBrokerSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	broker := NewMemoryBroker(zerolog.Nop())

	events, cancel := broker.Subscribe(RoomTopic(1))
	defer cancel()

	event := dto.ChatEvent{ChatRoomID: 1, Type: dto.ChatEventChat}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			broker.Publish(context.Background(), RoomTopic(1), event)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffer holds the first events; the overflow was dropped.
	require.Equal(t, event, receiveEvent(t, events))
}

func TestTopicNames(t *testing.T) {
	require.Equal(t, "chatroom:42", RoomTopic(42))
	require.Equal(t, "user:7:notifications", UserNotificationTopic(7))
}

func receiveEvent(t *testing.T, ch <-chan dto.ChatEvent) dto.ChatEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return dto.ChatEvent{}
	}
}
