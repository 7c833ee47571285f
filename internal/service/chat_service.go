package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/observability"
	"github.com/cambohq/marketplace-api/internal/pubsub"
	"github.com/cambohq/marketplace-api/internal/repository"
)

// NotificationPublisher is the subset of the notification service the chat
// router depends on.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// ChatService routes chat events: it persists messages through the message
// log, then fans each one out to the room topic and the counterpart's
// notification topic. It also tracks session presence for join/leave events.
type ChatService interface {
	HandleSend(ctx context.Context, event dto.ChatEvent) (dto.ChatEvent, error)
	HandleJoin(ctx context.Context, sessionID string, event dto.ChatEvent)
	HandleLeave(ctx context.Context, sessionID string)
	History(ctx context.Context, roomID uint) ([]dto.ChatEvent, error)
	Recent(ctx context.Context, roomID uint, limit int) ([]dto.ChatEvent, error)
	SubscribeRoom(roomID uint) (<-chan dto.ChatEvent, func())
}

// sessionBinding associates a transport session with a display identity and a
// room. Last write wins per session.
type sessionBinding struct {
	Username string
	RoomID   uint
}

type chatService struct {
	messages      repository.MessageRepository
	rooms         repository.ChatRoomRepository
	users         repository.UserRepository
	notifications NotificationPublisher
	broker        pubsub.Broker
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy

	mu       sync.Mutex
	presence map[string]sessionBinding
}

// NewChatService constructs the chat router.
func NewChatService(messages repository.MessageRepository, rooms repository.ChatRoomRepository, users repository.UserRepository, notifications NotificationPublisher, broker pubsub.Broker, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &chatService{
		messages:      messages,
		rooms:         rooms,
		users:         users,
		notifications: notifications,
		broker:        broker,
		validator:     validate,
		logger:        logger.With().Str("component", "chat_service").Logger(),
		tracer:        otel.Tracer("github.com/cambohq/marketplace-api/internal/service/chat"),
		sanitizer:     sanitizer,
		presence:      make(map[string]sessionBinding),
	}
}

// HandleSend persists the message and, only after a successful append,
// publishes the reconciled CHAT event to the room topic and the counterpart's
// notification topic. The notification leg is best-effort: its failure is
// logged and never surfaced to the caller.
func (s *chatService) HandleSend(ctx context.Context, event dto.ChatEvent) (dto.ChatEvent, error) {
	event.Type = dto.ChatEventChat
	if err := s.validator.Struct(event); err != nil {
		return dto.ChatEvent{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(event.Content))
	if clean == "" {
		return dto.ChatEvent{}, fmt.Errorf("message content empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chat.room_id", int64(event.ChatRoomID)),
		attribute.Int64("chat.sender_id", int64(event.SenderID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(attrs...))
	defer span.End()

	sender, err := s.users.FindByID(spanCtx, event.SenderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatEvent{}, NotFoundError{Kind: "user", ID: event.SenderID}
		}
		span.RecordError(err)
		return dto.ChatEvent{}, err
	}

	room, err := s.rooms.FindByID(spanCtx, event.ChatRoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatEvent{}, NotFoundError{Kind: "chat room", ID: event.ChatRoomID}
		}
		span.RecordError(err)
		return dto.ChatEvent{}, err
	}

	message, err := s.messages.Append(spanCtx, room.ID, sender.ID, clean)
	if err != nil {
		span.RecordError(err)
		return dto.ChatEvent{}, err
	}

	// The broadcast payload is rebuilt from the persisted row; the sender
	// username comes from storage, not from the client event.
	outbound := dto.NewChatEvent(message, sender.Username)

	s.broker.Publish(spanCtx, pubsub.RoomTopic(room.ID), outbound)
	observability.ChatMessagesSent().WithLabelValues(outbound.Type).Inc()

	recipientID := room.SellerID
	if sender.ID == room.SellerID {
		recipientID = room.BuyerID
	}

	s.broker.Publish(spanCtx, pubsub.UserNotificationTopic(recipientID), outbound)

	if s.notifications != nil {
		payload := dto.NotificationCreateRequest{
			UserID:     recipientID,
			ChatRoomID: room.ID,
			Type:       "chat_message",
			Message:    fmt.Sprintf("%s: %s", sender.Username, clean),
		}
		if _, err := s.notifications.Publish(spanCtx, payload); err != nil {
			s.logger.Warn().Err(err).Uint("recipient_id", recipientID).Msg("failed to record chat notification")
		}
	}

	return outbound, nil
}

// HandleJoin binds the session to the client-supplied identity and rebroadcasts
// the event verbatim. Unlike HandleSend this path deliberately trusts the
// client payload.
func (s *chatService) HandleJoin(ctx context.Context, sessionID string, event dto.ChatEvent) {
	s.mu.Lock()
	s.presence[sessionID] = sessionBinding{
		Username: event.SenderUsername,
		RoomID:   event.ChatRoomID,
	}
	s.mu.Unlock()

	event.Type = dto.ChatEventJoin
	s.broker.Publish(ctx, pubsub.RoomTopic(event.ChatRoomID), event)
	observability.ChatMessagesSent().WithLabelValues(event.Type).Inc()

	s.logger.Info().
		Str("session_id", sessionID).
		Str("username", event.SenderUsername).
		Uint("chat_room_id", event.ChatRoomID).
		Msg("user joined chat room")
}

// HandleLeave drops the session binding and, when one existed, announces the
// departure to the room.
func (s *chatService) HandleLeave(ctx context.Context, sessionID string) {
	s.mu.Lock()
	binding, bound := s.presence[sessionID]
	delete(s.presence, sessionID)
	s.mu.Unlock()

	if !bound {
		return
	}

	event := dto.ChatEvent{
		ChatRoomID:     binding.RoomID,
		SenderUsername: binding.Username,
		Type:           dto.ChatEventLeave,
	}
	s.broker.Publish(ctx, pubsub.RoomTopic(binding.RoomID), event)
	observability.ChatMessagesSent().WithLabelValues(event.Type).Inc()
}

func (s *chatService) History(ctx context.Context, roomID uint) ([]dto.ChatEvent, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{Kind: "chat room", ID: roomID}
		}
		return nil, err
	}

	messages, err := s.messages.History(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.toEvents(ctx, messages)
}

func (s *chatService) Recent(ctx context.Context, roomID uint, limit int) ([]dto.ChatEvent, error) {
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{Kind: "chat room", ID: roomID}
		}
		return nil, err
	}

	messages, err := s.messages.Recent(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	return s.toEvents(ctx, messages)
}

func (s *chatService) SubscribeRoom(roomID uint) (<-chan dto.ChatEvent, func()) {
	return s.broker.Subscribe(pubsub.RoomTopic(roomID))
}

// toEvents maps stored messages to CHAT events, resolving each distinct
// sender's username once.
func (s *chatService) toEvents(ctx context.Context, messages []models.Message) ([]dto.ChatEvent, error) {
	usernames := make(map[uint]string)
	out := make([]dto.ChatEvent, 0, len(messages))

	for _, message := range messages {
		username, ok := usernames[message.SenderID]
		if !ok {
			sender, err := s.users.FindByID(ctx, message.SenderID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			username = sender.Username
			usernames[message.SenderID] = username
		}
		out = append(out, dto.NewChatEvent(message, username))
	}
	return out, nil
}
