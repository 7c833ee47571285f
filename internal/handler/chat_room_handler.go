package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/service"
	"github.com/cambohq/marketplace-api/internal/utils"
)

// ChatRoomHandler exposes the room registry and message history over REST.
type ChatRoomHandler struct {
	rooms     service.RoomService
	chat      service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatRoomHandler creates a chat room handler instance.
func NewChatRoomHandler(rooms service.RoomService, chat service.ChatService, validate *validator.Validate, logger zerolog.Logger) *ChatRoomHandler {
	return &ChatRoomHandler{
		rooms:     rooms,
		chat:      chat,
		validator: validate,
		logger:    logger.With().Str("component", "chat_room_handler").Logger(),
	}
}

// Register binds the chat room routes under the provided router group.
func (h *ChatRoomHandler) Register(router fiber.Router) {
	router.Post("/create-or-get", h.createOrGet)
	router.Get("/user/:userId", h.listForUser)
	router.Get("/:id", h.get)
	router.Get("/:id/messages", h.messages)
	router.Get("/:id/messages/recent", h.recent)
}

func (h *ChatRoomHandler) createOrGet(c *fiber.Ctx) error {
	var payload dto.RoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "productId, buyerId, and sellerId are required")
	}

	room, err := h.rooms.ResolveOrCreate(requestContext(c), payload)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "chat room resolved", room)
}

func (h *ChatRoomHandler) listForUser(c *fiber.Ctx) error {
	userID, err := parseParamUint(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	rooms, err := h.rooms.ListForUser(requestContext(c), userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "chat rooms", rooms)
}

func (h *ChatRoomHandler) get(c *fiber.Ctx) error {
	roomID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat room id")
	}

	room, err := h.rooms.Get(requestContext(c), roomID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "chat room", room)
}

func (h *ChatRoomHandler) messages(c *fiber.Ctx) error {
	roomID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat room id")
	}

	// Full history, ascending by send time.
	history, err := h.chat.History(requestContext(c), roomID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "chat history", history)
}

func (h *ChatRoomHandler) recent(c *fiber.Ctx) error {
	roomID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid chat room id")
	}

	limit, hasLimit, err := parseQueryInt(c, "limit")
	if err != nil || (hasLimit && limit <= 0) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	// Latest N, descending; deliberately the opposite ordering of the
	// full-history endpoint.
	recent, err := h.chat.Recent(requestContext(c), roomID, limit)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "recent messages", recent)
}
