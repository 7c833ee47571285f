package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/middleware"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/service"
	"github.com/cambohq/marketplace-api/internal/utils"
)

// UserHandler exposes account management over REST.
type UserHandler struct {
	users  service.UserService
	rooms  service.RoomService
	logger zerolog.Logger
}

// NewUserHandler creates a user handler instance.
func NewUserHandler(users service.UserService, rooms service.RoomService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		rooms:  rooms,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds the user routes under the provided router group. The group
// is expected to sit behind JWT authentication; role checks are applied per
// route.
func (h *UserHandler) Register(router fiber.Router) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	selfOrAdmin := middleware.RequireRoleOrSelf("id", models.RoleAdmin)

	router.Get("/", adminOnly, h.list)
	router.Post("/", adminOnly, h.create)
	router.Get("/:id", selfOrAdmin, h.get)
	router.Put("/:id", selfOrAdmin, h.update)
	router.Delete("/:id", adminOnly, h.delete)
	router.Get("/:id/chatrooms", selfOrAdmin, h.chatRoomIDs)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	users, err := h.users.List(requestContext(c))
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "users", users)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "username, email, and password are required")
	}

	user, err := h.users.Create(requestContext(c), payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	user, err := h.users.Get(requestContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "user", user)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.Update(requestContext(c), id, payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "user updated", user)
}

func (h *UserHandler) delete(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.users.Delete(requestContext(c), id); err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "user deleted", nil)
}

// chatRoomIDs returns only the room identifiers a user participates in,
// newest first. Clients that need full room details fetch them per room.
func (h *UserHandler) chatRoomIDs(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	rooms, err := h.rooms.ListForUser(requestContext(c), id)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	ids := make([]uint, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ChatRoomID)
	}

	return utils.SendSuccess(c, "chat room ids", ids)
}
