package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cambohq/marketplace-api/internal/config"
	"github.com/cambohq/marketplace-api/internal/handler"
	"github.com/cambohq/marketplace-api/internal/middleware"
	"github.com/cambohq/marketplace-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatRoomHandler     *handler.ChatRoomHandler
	ChatSocketHandler   *handler.ChatSocketHandler
	NotificationHandler *handler.NotificationHandler
	ProductHandler      *handler.ProductHandler
	UserHandler         *handler.UserHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ChatRoomHandler != nil {
		chatRooms := app.Group("/api/chatrooms", jwtMiddleware, middleware.RateLimit("chatrooms", 60, time.Minute))
		deps.ChatRoomHandler.Register(chatRooms)
	}

	if deps.ChatSocketHandler != nil {
		ws := app.Group("/ws")
		deps.ChatSocketHandler.Register(ws)
	}

	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.ProductHandler != nil {
		products := app.Group("/api/products")
		deps.ProductHandler.Register(products, jwtMiddleware, middleware.RateLimit("products", 20, time.Minute))
	}

	if deps.UserHandler != nil {
		users := app.Group("/api/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	// Locally stored listing images are served straight from disk.
	if cfg.ImageStorage == "local" && cfg.UploadDir != "" {
		app.Static(cfg.UploadPublicURL, cfg.UploadDir)
	}
}
