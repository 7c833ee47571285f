package dto

import (
	"time"

	"github.com/cambohq/marketplace-api/internal/models"
)

// ProductCreateRequest carries the multipart form fields of a new listing.
// Images travel separately as multipart file headers.
type ProductCreateRequest struct {
	Title       string  `form:"title" validate:"required,min=3,max=255"`
	Description string  `form:"description" validate:"omitempty,max=10000"`
	Price       float64 `form:"price" validate:"required,gt=0"`
	Status      string  `form:"status" validate:"omitempty,oneof=AVAILABLE SOLD"`
}

// ProductImageResponse is the serialized representation of a listing image.
type ProductImageResponse struct {
	ID       uint   `json:"id"`
	ImageURL string `json:"image_url"`
}

// ProductResponse is the serialized representation of a listing.
type ProductResponse struct {
	ID          uint                   `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Price       float64                `json:"price"`
	Status      string                 `json:"status"`
	SellerID    uint                   `json:"seller_id"`
	Attributes  map[string]string      `json:"attributes,omitempty"`
	Images      []ProductImageResponse `json:"images,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewProductResponse converts a product model into a DTO.
func NewProductResponse(product models.Product) ProductResponse {
	response := ProductResponse{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Status:      product.Status,
		SellerID:    product.SellerID,
		CreatedAt:   product.CreatedAt,
	}
	if product.Attributes != nil {
		response.Attributes = make(map[string]string)
		for key, value := range product.Attributes {
			if str, ok := value.(string); ok {
				response.Attributes[key] = str
			}
		}
	}
	for _, image := range product.Images {
		response.Images = append(response.Images, ProductImageResponse{ID: image.ID, ImageURL: image.ImageURL})
	}
	return response
}

// NewProductResponseSlice converts a slice of products into DTOs.
func NewProductResponseSlice(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		out = append(out, NewProductResponse(product))
	}
	return out
}
