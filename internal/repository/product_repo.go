package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/models"
)

// ProductRepository handles persistence for listings and their images.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	AddImages(ctx context.Context, images []models.ProductImage) error
	FindByID(ctx context.Context, id uint) (models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository constructs a product repository backed by GORM.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) AddImages(ctx context.Context, images []models.ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Images").First(&product, id).Error; err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Preload("Images").Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("status", status).Error
}
