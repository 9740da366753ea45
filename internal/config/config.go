// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Port string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	SessionKey       string
	LogLevel         string
	NotificationLang string
}

// Load reads .env if present and then the process environment.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("No .env file found, using environment")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		VAPIDPublicKey:   os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:  os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubscriber:  getEnv("VAPID_SUBSCRIBER", "mailto:alerts@example.com"),
		SessionKey:       getEnv("SESSION_KEY", "secret-key-change-in-production"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		NotificationLang: getEnv("NOTIFICATION_LANG", "en"),
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}

	return cfg, nil
}

// EnsureVAPIDKeys generates a key pair when either key is missing. Generated
// keys only live as long as the process; existing browser subscriptions stop
// working after a restart unless the keys are persisted.
func (c *Config) EnsureVAPIDKeys(logger zerolog.Logger) error {
	if c.VAPIDPrivateKey != "" && c.VAPIDPublicKey != "" {
		return nil
	}

	logger.Warn().Msg("VAPID keys not found in environment, generating new keys")
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("generate VAPID keys: %w", err)
	}
	c.VAPIDPrivateKey = privateKey
	c.VAPIDPublicKey = publicKey
	logger.Info().
		Str("VAPID_PUBLIC_KEY", publicKey).
		Str("VAPID_PRIVATE_KEY", privateKey).
		Msg("Generated VAPID keys, add them to your .env file to persist them")
	return nil
}

// Validate checks the settings required by the serve command.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
