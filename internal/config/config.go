package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	ChannelBase      string
	UploadDir        string
	UploadPublicURL  string
	MaxImageSizeMB   int
	ImageStorage     string
	CloudinaryName   string
	CloudinaryKey    string
	CloudinarySecret string
	CloudinaryDir    string
	SSEKeepAlive     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Marketplace API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "market:events")
	v.SetDefault("upload.dir", "uploads/products")
	v.SetDefault("upload.public_url", "/images/products")
	v.SetDefault("upload.max_image_mb", 10)
	v.SetDefault("image.storage", "local")
	v.SetDefault("sse.keepalive", "30s")

	keepAlive, err := time.ParseDuration(v.GetString("sse.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sse keepalive: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		ChannelBase:      v.GetString("channel.base"),
		UploadDir:        v.GetString("upload.dir"),
		UploadPublicURL:  v.GetString("upload.public_url"),
		MaxImageSizeMB:   v.GetInt("upload.max_image_mb"),
		ImageStorage:     strings.ToLower(v.GetString("image.storage")),
		CloudinaryName:   v.GetString("cloudinary.cloud_name"),
		CloudinaryKey:    v.GetString("cloudinary.api_key"),
		CloudinarySecret: v.GetString("cloudinary.api_secret"),
		CloudinaryDir:    v.GetString("cloudinary.folder"),
		SSEKeepAlive:     keepAlive,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxImageSizeMB <= 0 {
		cfg.MaxImageSizeMB = 10
	}

	return cfg, nil
}
