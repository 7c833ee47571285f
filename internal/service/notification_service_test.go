package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/pubsub"
	"github.com/cambohq/marketplace-api/internal/repository"
)

func newNotificationService(t *testing.T) (NotificationService, pubsub.Broker) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	broker := pubsub.NewMemoryBroker(zerolog.Nop())
	svc := NewNotificationService(repository.NewNotificationRepository(db), broker, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	return svc, broker
}

func TestNotificationServicePublishSanitizesAndPersists(t *testing.T) {
	svc, _ := newNotificationService(t)

	response, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:     1,
		ChatRoomID: 3,
		Type:       "chat_message",
		Message:    "<b>alice</b>: <script>alert(1)</script>hello",
	})
	require.NoError(t, err)
	require.Equal(t, "alice: hello", response.Message)
	require.False(t, response.Read)

	listed, err := svc.List(context.Background(), 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, response.ID, listed[0].ID)
}

func TestNotificationServicePublishRejectsEmptyMessage(t *testing.T) {
	svc, _ := newNotificationService(t)

	_, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  1,
		Type:    "chat_message",
		Message: "<img src=x>",
	})
	require.Error(t, err)
}

func TestNotificationServiceMarkReadUnknownID(t *testing.T) {
	svc, _ := newNotificationService(t)

	_, err := svc.MarkRead(context.Background(), 404, 1)
	require.True(t, IsNotFound(err))
	require.EqualError(t, err, "notification not found with id: 404")
}

func TestNotificationServiceSubscribeReceivesUserTopicEvents(t *testing.T) {
	svc, broker := newNotificationService(t)

	stream, cleanup := svc.Subscribe(7)
	defer cleanup()

	published := dto.ChatEvent{ChatRoomID: 3, SenderID: 1, SenderUsername: "alice", Content: "hi", Type: dto.ChatEventChat}
	broker.Publish(context.Background(), pubsub.UserNotificationTopic(7), published)

	event := receiveEvent(t, stream)
	require.Equal(t, published, event)

	// Traffic for other users never reaches this stream.
	broker.Publish(context.Background(), pubsub.UserNotificationTopic(8), published)
	requireNoEvent(t, stream)
}
