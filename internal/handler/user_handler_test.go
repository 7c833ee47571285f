package handler_test

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/models"
)

func TestUserHandlerListRequiresAdmin(t *testing.T) {
	f := setupMarketplaceApp(t)

	req := httptest.NewRequest("GET", "/api/users/", nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/users/", nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	req.Header.Set("X-Test-Role", models.RoleAdmin)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed struct {
		Data []dto.UserResponse `json:"data"`
	}
	decodeResponse(t, resp, &listed)
	require.Len(t, listed.Data, 2)
}

func TestUserHandlerGetSelfOrAdmin(t *testing.T) {
	f := setupMarketplaceApp(t)

	// A user can read their own record.
	req := httptest.NewRequest("GET", fmt.Sprintf("/api/users/%d", f.buyer.ID), nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var self struct {
		Data dto.UserResponse `json:"data"`
	}
	decodeResponse(t, resp, &self)
	require.Equal(t, "alice", self.Data.Username)

	// But not someone else's.
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/users/%d", f.seller.ID), nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Admins can read anyone.
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/users/%d", f.seller.ID), nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	req.Header.Set("X-Test-Role", models.RoleAdmin)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUserHandlerCreateValidatesAndConflicts(t *testing.T) {
	f := setupMarketplaceApp(t)

	req := jsonRequest(t, "POST", "/api/users/", dto.UserCreateRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "s3cret-pass",
	})
	req.Header.Set("X-Test-Role", models.RoleAdmin)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Duplicate usernames are a conflict, not a server error.
	req = jsonRequest(t, "POST", "/api/users/", dto.UserCreateRequest{
		Username: "carol",
		Email:    "carol2@example.com",
		Password: "s3cret-pass",
	})
	req.Header.Set("X-Test-Role", models.RoleAdmin)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Validation failures are 400s.
	req = jsonRequest(t, "POST", "/api/users/", dto.UserCreateRequest{Username: "x", Email: "bad", Password: "short"})
	req.Header.Set("X-Test-Role", models.RoleAdmin)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUserHandlerChatRoomIDs(t *testing.T) {
	f := setupMarketplaceApp(t)

	room := models.ChatRoom{ProductID: f.bike.ID, BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.Create(&room).Error)

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/users/%d/chatrooms", f.buyer.ID), nil)
	req.Header.Set("X-Test-User", fmt.Sprint(f.buyer.ID))
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var ids struct {
		Data []uint `json:"data"`
	}
	decodeResponse(t, resp, &ids)
	require.Equal(t, []uint{room.ID}, ids.Data)
}
