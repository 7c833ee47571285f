package models

import "time"

// Notification represents a cross-room alert targeted at a single user,
// created when the counterpart in a chat room receives a new message.
type Notification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	ChatRoomID uint      `gorm:"index" json:"chat_room_id"`
	Type       string    `gorm:"size:64" json:"type"`
	Message    string    `gorm:"type:text" json:"message"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
