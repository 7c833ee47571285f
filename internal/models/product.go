package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product listing statuses.
const (
	ProductStatusAvailable = "AVAILABLE"
	ProductStatusSold      = "SOLD"
)

// Product represents an item listed for sale by a seller.
type Product struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Price       float64           `gorm:"not null" json:"price"`
	Status      string            `gorm:"size:32;not null;default:AVAILABLE" json:"status"`
	SellerID    uint              `gorm:"index;not null" json:"seller_id"`
	Attributes  datatypes.JSONMap `gorm:"type:json" json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Images      []ProductImage    `json:"images,omitempty"`
}

// ProductImage stores the public URL of one uploaded listing image.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	ImageURL  string    `gorm:"size:512;not null" json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}
