package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/config"
	"github.com/cambohq/marketplace-api/internal/database"
	"github.com/cambohq/marketplace-api/internal/handler"
	"github.com/cambohq/marketplace-api/internal/middleware"
	"github.com/cambohq/marketplace-api/internal/models"
	"github.com/cambohq/marketplace-api/internal/pubsub"
	"github.com/cambohq/marketplace-api/internal/repository"
	"github.com/cambohq/marketplace-api/internal/router"
	"github.com/cambohq/marketplace-api/internal/service"
	"github.com/cambohq/marketplace-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductImage{},
		&models.ChatRoom{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS back the cross-node chat relay; the service still runs
	// single-node without either of them.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	fileStore, err := buildFileStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize file storage: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()

	broker := pubsub.NewBridge(pubsub.NewMemoryBroker(logger), redisClient, natsConn, cfg.ChannelBase, logger)
	broker.Start(brokerCtx)

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	chatRoomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	userService := service.NewUserService(userRepo, validate, logger)
	productService := service.NewProductService(productRepo, userRepo, fileStore, validate, cfg.MaxImageSizeMB, logger)
	roomService := service.NewRoomService(chatRoomRepo, userRepo, productRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, broker, validate, logger)
	chatService := service.NewChatService(messageRepo, chatRoomRepo, userRepo, notificationService, broker, validate, logger)

	chatRoomHandler := handler.NewChatRoomHandler(roomService, chatService, validate, logger)
	chatSocketHandler := handler.NewChatSocketHandler(chatService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)
	productHandler := handler.NewProductHandler(productService, logger)
	userHandler := handler.NewUserHandler(userService, roomService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ChatRoomHandler:     chatRoomHandler,
		ChatSocketHandler:   chatSocketHandler,
		NotificationHandler: notificationHandler,
		ProductHandler:      productHandler,
		UserHandler:         userHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildFileStorage(cfg config.Config, logger zerolog.Logger) (storage.FileStorage, error) {
	if cfg.ImageStorage == "cloudinary" {
		return storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryName,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
			Folder:    cfg.CloudinaryDir,
		}, logger)
	}

	return storage.NewLocal(cfg.UploadDir, cfg.UploadPublicURL, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
