package dto

import (
	"time"

	"github.com/cambohq/marketplace-api/internal/models"
)

// Chat event types carried over the websocket and the pub/sub topics.
const (
	ChatEventChat  = "CHAT"
	ChatEventJoin  = "JOIN"
	ChatEventLeave = "LEAVE"
)

// ChatEvent is the transient payload exchanged with realtime clients and
// published to the room and notification topics. For CHAT events produced by
// the server the sender username is re-derived from storage, never trusted
// from the client.
type ChatEvent struct {
	ChatRoomID     uint      `json:"chat_room_id" validate:"required"`
	SenderID       uint      `json:"sender_id" validate:"required"`
	SenderUsername string    `json:"sender_username" validate:"omitempty,max=64"`
	Content        string    `json:"content" validate:"omitempty,max=4000"`
	SentAt         time.Time `json:"sent_at"`
	Type           string    `json:"type" validate:"required,oneof=CHAT JOIN LEAVE"`
}

// NewChatEvent converts a persisted message into a CHAT event.
func NewChatEvent(message models.Message, senderUsername string) ChatEvent {
	return ChatEvent{
		ChatRoomID:     message.ChatRoomID,
		SenderID:       message.SenderID,
		SenderUsername: senderUsername,
		Content:        message.Content,
		SentAt:         message.SentAt,
		Type:           ChatEventChat,
	}
}

// RoomCreateRequest asks for the unique room of a (product, buyer, seller) triple.
type RoomCreateRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	BuyerID   uint `json:"buyerId" validate:"required"`
	SellerID  uint `json:"sellerId" validate:"required"`
}

// RoomParticipant is the subset of user data exposed in room payloads.
type RoomParticipant struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// RoomProduct is the subset of product data exposed in room payloads.
type RoomProduct struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// ChatRoomResponse is the serialized representation of a chat room.
type ChatRoomResponse struct {
	ChatRoomID uint            `json:"chatRoomId"`
	Buyer      RoomParticipant `json:"buyer"`
	Seller     RoomParticipant `json:"seller"`
	Product    *RoomProduct    `json:"product,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewChatRoomResponse assembles a room DTO from its entities.
func NewChatRoomResponse(room models.ChatRoom, buyer, seller models.User, product *models.Product) ChatRoomResponse {
	response := ChatRoomResponse{
		ChatRoomID: room.ID,
		Buyer:      RoomParticipant{ID: buyer.ID, Username: buyer.Username},
		Seller:     RoomParticipant{ID: seller.ID, Username: seller.Username},
		CreatedAt:  room.CreatedAt,
	}
	if product != nil {
		response.Product = &RoomProduct{ID: product.ID, Title: product.Title}
	}
	return response
}
