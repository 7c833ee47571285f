package handler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
	"github.com/cambohq/marketplace-api/internal/middleware"
	"github.com/cambohq/marketplace-api/internal/observability"
	"github.com/cambohq/marketplace-api/internal/service"
)

const chatKeepAliveInterval = 30 * time.Second

// ChatSocketHandler wires the websocket upgrade for live chat.
type ChatSocketHandler struct {
	chat   service.ChatService
	logger zerolog.Logger
}

// NewChatSocketHandler creates a chat websocket handler instance.
func NewChatSocketHandler(chat service.ChatService, logger zerolog.Logger) *ChatSocketHandler {
	return &ChatSocketHandler{
		chat:   chat,
		logger: logger.With().Str("component", "chat_socket_handler").Logger(),
	}
}

// Register binds the websocket endpoint under the provided router group.
func (h *ChatSocketHandler) Register(router fiber.Router) {
	router.Use("/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/chat", websocket.New(h.handleConnection))
}

func (h *ChatSocketHandler) handleConnection(conn *websocket.Conn) {
	roomID, err := parseRoomID(conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "room_id required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	events, cancel := h.chat.SubscribeRoom(roomID)

	session := &chatSession{
		id:      uuid.NewString(),
		roomID:  roomID,
		conn:    conn,
		events:  events,
		handler: h,
		baseCtx: baseCtx,
		closed:  make(chan struct{}),
		cancel:  cancel,
	}

	observability.ChatConnectionsTotal().Inc()
	h.logger.Info().Uint("room_id", roomID).Str("session_id", session.id).Msg("chat websocket connected")

	go session.writer()
	session.reader()

	h.logger.Info().Uint("room_id", roomID).Str("session_id", session.id).Msg("chat websocket disconnected")
}

// chatSession pairs one websocket connection with its room subscription.
type chatSession struct {
	id      string
	roomID  uint
	conn    *websocket.Conn
	events  <-chan dto.ChatEvent
	handler *ChatSocketHandler
	baseCtx context.Context
	closed  chan struct{}
	cancel  func()
	once    sync.Once
}

func (s *chatSession) reader() {
	defer s.close()

	for {
		var event dto.ChatEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			s.handler.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		event.ChatRoomID = s.roomID

		switch event.Type {
		case dto.ChatEventJoin:
			s.handler.chat.HandleJoin(s.baseCtx, s.id, event)
		case dto.ChatEventLeave:
			s.handler.chat.HandleLeave(s.baseCtx, s.id)
		default:
			if _, err := s.handler.chat.HandleSend(s.baseCtx, event); err != nil {
				s.handler.logger.Warn().Err(err).Uint("room_id", s.roomID).Msg("failed to process chat message")
			}
		}
	}
}

func (s *chatSession) writer() {
	defer s.close()

	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				s.handler.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(chatKeepAliveInterval):
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.handler.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *chatSession) close() {
	s.once.Do(func() {
		close(s.closed)
		s.handler.chat.HandleLeave(s.baseCtx, s.id)
		s.cancel()
		_ = s.conn.Close()
	})
}

func parseRoomID(conn *websocket.Conn) (uint, error) {
	raw := strings.TrimSpace(conn.Query("room_id"))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
