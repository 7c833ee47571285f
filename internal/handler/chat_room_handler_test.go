package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cambohq/marketplace-api/internal/config"
	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/handler"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/pubsub"
	"github.com/cambohq/marketplace-api/internal/repository"
	"github.com/cambohq/marketplace-api/internal/router"
	"github.com/cambohq/marketplace-api/internal/service"
)

type marketplaceFixture struct {
	app    *fiber.App
	db     *gorm.DB
	chat   service.ChatService
	buyer  models.User
	seller models.User
	bike   models.Product
}

// setupMarketplaceApp wires the full HTTP surface against an in-memory
// database. The JWT middleware is replaced by a stub that reads the caller
// identity from test-only headers.
func setupMarketplaceApp(t *testing.T) *marketplaceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.ProductImage{}, &models.ChatRoom{}, &models.Message{}, &models.Notification{}))

	buyer := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	seller := models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: models.RoleSeller}
	require.NoError(t, db.Create(&buyer).Error)
	require.NoError(t, db.Create(&seller).Error)

	bike := models.Product{Title: "City Bike", Price: 250, Status: models.ProductStatusAvailable, SellerID: seller.ID}
	require.NoError(t, db.Create(&bike).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	broker := pubsub.NewMemoryBroker(logger)

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	roomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	userService := service.NewUserService(userRepo, validate, logger)
	roomService := service.NewRoomService(roomRepo, userRepo, productRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, broker, validate, logger)
	chatService := service.NewChatService(messageRepo, roomRepo, userRepo, notificationService, broker, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		ChatRoomHandler:     handler.NewChatRoomHandler(roomService, chatService, validate, logger),
		ChatSocketHandler:   handler.NewChatSocketHandler(chatService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, 0),
		UserHandler:         handler.NewUserHandler(userService, roomService, logger),
		JWTMiddleware:       testAuth,
	})

	return &marketplaceFixture{app: app, db: db, chat: chatService, buyer: buyer, seller: seller, bike: bike}
}

// testAuth stands in for JWT verification: identity comes from request headers.
func testAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	role := c.Get("X-Test-Role")
	if role == "" {
		role = models.RoleUser
	}
	c.Locals("user_role", role)
	return c.Next()
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestChatRoomHandlerCreateOrGetIsIdempotent(t *testing.T) {
	f := setupMarketplaceApp(t)

	payload := dto.RoomCreateRequest{ProductID: f.bike.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID}

	resp, err := f.app.Test(jsonRequest(t, "POST", "/api/chatrooms/create-or-get", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var first struct {
		Success bool                 `json:"success"`
		Data    dto.ChatRoomResponse `json:"data"`
	}
	decodeResponse(t, resp, &first)
	require.True(t, first.Success)
	require.NotZero(t, first.Data.ChatRoomID)
	require.Equal(t, "alice", first.Data.Buyer.Username)
	require.Equal(t, "bob", first.Data.Seller.Username)
	require.NotNil(t, first.Data.Product)
	require.Equal(t, "City Bike", first.Data.Product.Title)

	resp, err = f.app.Test(jsonRequest(t, "POST", "/api/chatrooms/create-or-get", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var second struct {
		Data dto.ChatRoomResponse `json:"data"`
	}
	decodeResponse(t, resp, &second)
	require.Equal(t, first.Data.ChatRoomID, second.Data.ChatRoomID)
}

func TestChatRoomHandlerRejectsInvalidRequests(t *testing.T) {
	f := setupMarketplaceApp(t)

	// Buyer and seller must differ.
	resp, err := f.app.Test(jsonRequest(t, "POST", "/api/chatrooms/create-or-get", dto.RoomCreateRequest{
		ProductID: f.bike.ID, BuyerID: f.seller.ID, SellerID: f.seller.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var invalid struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &invalid)
	require.False(t, invalid.Success)
	require.Equal(t, "buyer and seller cannot be the same person", invalid.Message)

	// Unknown product maps to 404 with the entity named in the message.
	resp, err = f.app.Test(jsonRequest(t, "POST", "/api/chatrooms/create-or-get", dto.RoomCreateRequest{
		ProductID: 999, BuyerID: f.buyer.ID, SellerID: f.seller.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var missing struct {
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &missing)
	require.Equal(t, "product not found with id: 999", missing.Message)

	// Seller that does not own the product.
	resp, err = f.app.Test(jsonRequest(t, "POST", "/api/chatrooms/create-or-get", dto.RoomCreateRequest{
		ProductID: f.bike.ID, BuyerID: f.seller.ID, SellerID: f.buyer.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatRoomHandlerHistoryAndRecent(t *testing.T) {
	f := setupMarketplaceApp(t)

	room := models.ChatRoom{ProductID: f.bike.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.Create(&room).Error)

	for i := 0; i < 4; i++ {
		_, err := f.chat.HandleSend(context.Background(), dto.ChatEvent{
			ChatRoomID: room.ID,
			SenderID:   f.buyer.ID,
			Content:    fmt.Sprintf("message %d", i),
			Type:       dto.ChatEventChat,
		})
		require.NoError(t, err)
	}

	resp, err := f.app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/chatrooms/%d/messages", room.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var history struct {
		Data []dto.ChatEvent `json:"data"`
	}
	decodeResponse(t, resp, &history)
	require.Len(t, history.Data, 4)
	require.Equal(t, "message 0", history.Data[0].Content)
	require.Equal(t, "message 3", history.Data[3].Content)
	require.Equal(t, "alice", history.Data[0].SenderUsername)

	resp, err = f.app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/chatrooms/%d/messages/recent?limit=2", room.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var recent struct {
		Data []dto.ChatEvent `json:"data"`
	}
	decodeResponse(t, resp, &recent)
	require.Len(t, recent.Data, 2)
	require.Equal(t, "message 3", recent.Data[0].Content)
	require.Equal(t, "message 2", recent.Data[1].Content)

	// Omitting the limit falls back to the default; an explicit zero does
	// not, it is rejected.
	resp, err = f.app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/chatrooms/%d/messages/recent", room.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var unlimited struct {
		Data []dto.ChatEvent `json:"data"`
	}
	decodeResponse(t, resp, &unlimited)
	require.Len(t, unlimited.Data, 4)

	resp, err = f.app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/chatrooms/%d/messages/recent?limit=0", room.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Unknown rooms are reported, not silently empty.
	resp, err = f.app.Test(httptest.NewRequest("GET", "/api/chatrooms/999/messages", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestChatRoomHandlerListForUser(t *testing.T) {
	f := setupMarketplaceApp(t)

	room := models.ChatRoom{ProductID: f.bike.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.Create(&room).Error)

	resp, err := f.app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/chatrooms/user/%d", f.buyer.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed struct {
		Data []dto.ChatRoomResponse `json:"data"`
	}
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 1)
	require.Equal(t, room.ID, listed.Data[0].ChatRoomID)

	resp, err = f.app.Test(httptest.NewRequest("GET", "/api/chatrooms/user/999", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var empty struct {
		Data []dto.ChatRoomResponse `json:"data"`
	}
	decodeResponse(t, resp, &empty)
	require.Empty(t, empty.Data)
}
