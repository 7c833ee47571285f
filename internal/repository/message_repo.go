package repository

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/models"
)

const (
	messageRecentDefaultLimit = 50
	messageRecentMaxLimit     = 100
)

// MessageRepository is the append-only, time-ordered log of chat messages.
// Appends to the same room are serialised so every message receives a
// strictly increasing SentAt; appends to different rooms proceed in parallel.
type MessageRepository interface {
	Append(ctx context.Context, roomID, senderID uint, content string) (models.Message, error)
	History(ctx context.Context, roomID uint) ([]models.Message, error)
	Recent(ctx context.Context, roomID uint, limit int) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB

	mu sync.Mutex
	// clocks keeps one entry per room ever written to. Rooms are never
	// deleted, so entries are not pruned; the map tracks the room table.
	clocks map[uint]*roomClock
}

// roomClock is the per-room critical section around timestamp assignment.
type roomClock struct {
	mu   sync.Mutex
	last time.Time
}

// NewMessageRepository constructs a message log backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db:     db,
		clocks: make(map[uint]*roomClock),
	}
}

func (r *messageRepository) clock(roomID uint) *roomClock {
	r.mu.Lock()
	defer r.mu.Unlock()

	clock, ok := r.clocks[roomID]
	if !ok {
		clock = &roomClock{}
		r.clocks[roomID] = clock
	}
	return clock
}

func (r *messageRepository) Append(ctx context.Context, roomID, senderID uint, content string) (models.Message, error) {
	clock := r.clock(roomID)
	clock.mu.Lock()
	defer clock.mu.Unlock()

	sentAt := time.Now().UTC()
	if !sentAt.After(clock.last) {
		// Clock granularity or skew collapsed two appends onto the same
		// instant; bump so ordering stays observable.
		sentAt = clock.last.Add(time.Microsecond)
	}

	message := models.Message{
		ChatRoomID: roomID,
		SenderID:   senderID,
		Content:    content,
		SentAt:     sentAt,
	}

	if err := r.db.WithContext(ctx).Create(&message).Error; err != nil {
		return models.Message{}, err
	}

	clock.last = sentAt
	return message, nil
}

func (r *messageRepository) History(ctx context.Context, roomID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Recent(ctx context.Context, roomID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = messageRecentDefaultLimit
	}
	if limit > messageRecentMaxLimit {
		limit = messageRecentMaxLimit
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
