package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/models"
)

// ChatRoomRepository persists chat rooms. The (product, buyer, seller) triple
// carries a unique index, so Create surfaces gorm.ErrDuplicatedKey when a
// concurrent request already materialised the same room.
type ChatRoomRepository interface {
	FindByTriple(ctx context.Context, productID, buyerID, sellerID uint) (models.ChatRoom, error)
	FindByID(ctx context.Context, id uint) (models.ChatRoom, error)
	Create(ctx context.Context, room *models.ChatRoom) error
	ListForUser(ctx context.Context, userID uint) ([]models.ChatRoom, error)
}

type chatRoomRepository struct {
	db *gorm.DB
}

// NewChatRoomRepository constructs a chat room repository backed by GORM.
func NewChatRoomRepository(db *gorm.DB) ChatRoomRepository {
	return &chatRoomRepository{db: db}
}

func (r *chatRoomRepository) FindByTriple(ctx context.Context, productID, buyerID, sellerID uint) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ? AND seller_id = ?", productID, buyerID, sellerID).
		First(&room).Error
	if err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func (r *chatRoomRepository) FindByID(ctx context.Context, id uint) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func (r *chatRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *chatRoomRepository) ListForUser(ctx context.Context, userID uint) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
