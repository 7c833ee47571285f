package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/observability"
	"github.com/cambohq/marketplace-api/internal/repository"
)

// RoomService resolves the unique chat room for a (product, buyer, seller)
// triple and answers room lookups.
type RoomService interface {
	ResolveOrCreate(ctx context.Context, payload dto.RoomCreateRequest) (dto.ChatRoomResponse, error)
	Get(ctx context.Context, roomID uint) (dto.ChatRoomResponse, error)
	ListForUser(ctx context.Context, userID uint) ([]dto.ChatRoomResponse, error)
}

type roomService struct {
	rooms     repository.ChatRoomRepository
	users     repository.UserRepository
	products  repository.ProductRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRoomService constructs the chat room registry.
func NewRoomService(rooms repository.ChatRoomRepository, users repository.UserRepository, products repository.ProductRepository, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		users:     users,
		products:  products,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
		tracer:    otel.Tracer("github.com/cambohq/marketplace-api/internal/service/room"),
		now:       time.Now,
	}
}

// ResolveOrCreate returns the existing room for the triple or creates it.
// Duplicate creation under concurrency is prevented by the unique triple
// index: a create that loses the race retries as a lookup.
func (s *roomService) ResolveOrCreate(ctx context.Context, payload dto.RoomCreateRequest) (dto.ChatRoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatRoomResponse{}, err
	}

	if payload.BuyerID == payload.SellerID {
		return dto.ChatRoomResponse{}, ErrInvalidParticipants
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("room.product_id", int64(payload.ProductID)),
		attribute.Int64("room.buyer_id", int64(payload.BuyerID)),
		attribute.Int64("room.seller_id", int64(payload.SellerID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "room.resolve_or_create", trace.WithAttributes(attrs...))
	defer span.End()

	room, err := s.rooms.FindByTriple(spanCtx, payload.ProductID, payload.BuyerID, payload.SellerID)
	if err == nil {
		return s.assemble(spanCtx, room)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.ChatRoomResponse{}, err
	}

	product, err := s.products.FindByID(spanCtx, payload.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatRoomResponse{}, NotFoundError{Kind: "product", ID: payload.ProductID}
		}
		span.RecordError(err)
		return dto.ChatRoomResponse{}, err
	}

	buyer, err := s.users.FindByID(spanCtx, payload.BuyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatRoomResponse{}, NotFoundError{Kind: "buyer", ID: payload.BuyerID}
		}
		span.RecordError(err)
		return dto.ChatRoomResponse{}, err
	}

	seller, err := s.users.FindByID(spanCtx, payload.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatRoomResponse{}, NotFoundError{Kind: "seller", ID: payload.SellerID}
		}
		span.RecordError(err)
		return dto.ChatRoomResponse{}, err
	}

	if product.SellerID != 0 && product.SellerID != payload.SellerID {
		return dto.ChatRoomResponse{}, ErrOwnershipMismatch
	}

	room = models.ChatRoom{
		ProductID: payload.ProductID,
		BuyerID:   payload.BuyerID,
		SellerID:  payload.SellerID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.rooms.Create(spanCtx, &room); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent identical request; the
			// winner's row is the room.
			room, err = s.rooms.FindByTriple(spanCtx, payload.ProductID, payload.BuyerID, payload.SellerID)
			if err != nil {
				span.RecordError(err)
				return dto.ChatRoomResponse{}, err
			}
			return dto.NewChatRoomResponse(room, buyer, seller, &product), nil
		}
		span.RecordError(err)
		return dto.ChatRoomResponse{}, err
	}

	observability.RoomsCreatedTotal().Inc()
	s.logger.Info().
		Uint("chat_room_id", room.ID).
		Uint("product_id", room.ProductID).
		Uint("buyer_id", room.BuyerID).
		Uint("seller_id", room.SellerID).
		Msg("chat room created")

	return dto.NewChatRoomResponse(room, buyer, seller, &product), nil
}

func (s *roomService) Get(ctx context.Context, roomID uint) (dto.ChatRoomResponse, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatRoomResponse{}, NotFoundError{Kind: "chat room", ID: roomID}
		}
		return dto.ChatRoomResponse{}, err
	}
	return s.assemble(ctx, room)
}

func (s *roomService) ListForUser(ctx context.Context, userID uint) ([]dto.ChatRoomResponse, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ChatRoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response, err := s.assemble(ctx, room)
		if err != nil {
			return nil, err
		}
		out = append(out, response)
	}
	return out, nil
}

// assemble resolves the room's participants and product into a response DTO.
func (s *roomService) assemble(ctx context.Context, room models.ChatRoom) (dto.ChatRoomResponse, error) {
	buyer, err := s.users.FindByID(ctx, room.BuyerID)
	if err != nil {
		return dto.ChatRoomResponse{}, err
	}
	seller, err := s.users.FindByID(ctx, room.SellerID)
	if err != nil {
		return dto.ChatRoomResponse{}, err
	}

	var product *models.Product
	if found, err := s.products.FindByID(ctx, room.ProductID); err == nil {
		product = &found
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ChatRoomResponse{}, err
	}

	return dto.NewChatRoomResponse(room, buyer, seller, product), nil
}
