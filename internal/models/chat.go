package models

import "time"

// ChatRoom is the unique negotiation context between one buyer and one seller
// for a single product. The (product, buyer, seller) triple is enforced unique
// at the storage layer; concurrent create attempts for the same triple must
// converge on a single row.
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_chat_rooms_triple" json:"product_id"`
	BuyerID   uint      `gorm:"not null;uniqueIndex:idx_chat_rooms_triple;index:idx_chat_rooms_buyer" json:"buyer_id"`
	SellerID  uint      `gorm:"not null;uniqueIndex:idx_chat_rooms_triple;index:idx_chat_rooms_seller" json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one immutable entry in a room's append-only log. SentAt is
// assigned by the server at persistence time and is strictly increasing
// within a room.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatRoomID uint      `gorm:"not null;index:idx_messages_room_sent" json:"chat_room_id"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	SentAt     time.Time `gorm:"not null;index:idx_messages_room_sent" json:"sent_at"`
}
