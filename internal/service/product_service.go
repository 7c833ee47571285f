package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/repository"
	"github.com/cambohq/marketplace-api/pkg/storage"
)

var (
	// ErrImageTooLarge indicates an uploaded image exceeded the configured limit.
	ErrImageTooLarge = errors.New("image exceeds maximum allowed size")
	// ErrImageTypeNotAllowed indicates the upload is not an image.
	ErrImageTypeNotAllowed = errors.New("file type not allowed, expected an image")
)

// ProductService handles listing creation and retrieval.
type ProductService interface {
	Create(ctx context.Context, sellerID uint, payload dto.ProductCreateRequest, images []*multipart.FileHeader) (dto.ProductResponse, error)
	Get(ctx context.Context, id uint) (dto.ProductResponse, error)
	List(ctx context.Context) ([]dto.ProductResponse, error)
	MarkSold(ctx context.Context, id, sellerID uint) error
}

type productService struct {
	products  repository.ProductRepository
	users     repository.UserRepository
	storage   storage.FileStorage
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	maxSize   int64
}

// NewProductService constructs a product service. maxImageSizeMB caps each
// uploaded image.
func NewProductService(products repository.ProductRepository, users repository.UserRepository, store storage.FileStorage, validate *validator.Validate, maxImageSizeMB int, logger zerolog.Logger) ProductService {
	if maxImageSizeMB <= 0 {
		maxImageSizeMB = 10
	}
	return &productService{
		products:  products,
		users:     users,
		storage:   store,
		validator: validate,
		logger:    logger.With().Str("component", "product_service").Logger(),
		tracer:    otel.Tracer("github.com/cambohq/marketplace-api/internal/service/product"),
		maxSize:   int64(maxImageSizeMB) * 1024 * 1024,
	}
}

func (s *productService) Create(ctx context.Context, sellerID uint, payload dto.ProductCreateRequest, images []*multipart.FileHeader) (dto.ProductResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProductResponse{}, err
	}

	seller, err := s.users.FindByID(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProductResponse{}, NotFoundError{Kind: "seller", ID: sellerID}
		}
		return dto.ProductResponse{}, err
	}

	status := payload.Status
	if status == "" {
		status = models.ProductStatusAvailable
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("product.seller_id", int64(seller.ID)),
		attribute.Int("product.image_count", len(images)),
	}
	spanCtx, span := s.tracer.Start(ctx, "product.create", trace.WithAttributes(attrs...))
	defer span.End()

	product := models.Product{
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		Price:       payload.Price,
		Status:      status,
		SellerID:    seller.ID,
	}

	if err := s.products.Create(spanCtx, &product); err != nil {
		span.RecordError(err)
		return dto.ProductResponse{}, err
	}

	imageRows := make([]models.ProductImage, 0, len(images))
	for _, header := range images {
		url, err := s.storeImage(spanCtx, header)
		if err != nil {
			span.RecordError(err)
			return dto.ProductResponse{}, err
		}
		imageRows = append(imageRows, models.ProductImage{ProductID: product.ID, ImageURL: url})
	}

	if err := s.products.AddImages(spanCtx, imageRows); err != nil {
		span.RecordError(err)
		return dto.ProductResponse{}, err
	}
	product.Images = imageRows

	s.logger.Info().Uint("product_id", product.ID).Uint("seller_id", seller.ID).Int("images", len(imageRows)).Msg("product listed")

	return dto.NewProductResponse(product), nil
}

func (s *productService) storeImage(ctx context.Context, header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxSize {
		return "", ErrImageTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(content)) > s.maxSize {
		return "", ErrImageTooLarge
	}

	detected := mimetype.Detect(content)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", ErrImageTypeNotAllowed, detected.String())
	}

	return s.storage.Upload(ctx, header.Filename, bytes.NewReader(content))
}

func (s *productService) Get(ctx context.Context, id uint) (dto.ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProductResponse{}, NotFoundError{Kind: "product", ID: id}
		}
		return dto.ProductResponse{}, err
	}
	return dto.NewProductResponse(product), nil
}

func (s *productService) List(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewProductResponseSlice(products), nil
}

// MarkSold flips a listing to SOLD; only the owning seller may do so.
func (s *productService) MarkSold(ctx context.Context, id, sellerID uint) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError{Kind: "product", ID: id}
		}
		return err
	}
	if product.SellerID != sellerID {
		return ErrOwnershipMismatch
	}
	return s.products.UpdateStatus(ctx, id, models.ProductStatusSold)
}
