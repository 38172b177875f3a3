package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config holds all configuration for the application
type Config struct {
	// Storage configuration
	StorageType  string `validate:"oneof=memory file sqlite redis"`
	DataDir      string `validate:"required"`
	RedisURL     string `validate:"required_if=StorageType redis"`
	RedisChannel string `validate:"required"`

	// Audit index, disabled when ESURL is empty
	ESURL         string `validate:"omitempty,url"`
	ESUsername    string
	ESPassword    string
	ESIndexPrefix string `validate:"required"`

	// Engine policy
	ChallengeCatalog    string
	DailyChallengeCount int  `validate:"gte=0"`
	EnableDebugResets   bool
	RandomSeed          uint64
	WatchInterval       time.Duration `validate:"gt=0"`
	// IdleTimeout closes engines unused this long, 0 keeps them forever
	IdleTimeout time.Duration `validate:"gte=0"`

	// HTTP surface
	HTTPPort string `validate:"required,numeric"`

	// Discord configuration, only required by the bot
	Token   string
	AppID   string
	GuildID string

	// Environment
	Environment string `validate:"oneof=development production"`
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg := &Config{
		StorageType:      getEnvWithDefault("STORAGE_TYPE", "sqlite"),
		DataDir:          getEnvWithDefault("DATA_DIR", filepath.Join(wd, "data")),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisChannel:     getEnvWithDefault("REDIS_CHANNEL", "ebucks:changes"),
		ESURL:            os.Getenv("ES_URL"),
		ESUsername:       os.Getenv("ES_USERNAME"),
		ESPassword:       os.Getenv("ES_PASSWORD"),
		ESIndexPrefix:    getEnvWithDefault("ES_INDEX_PREFIX", "ebucks"),
		ChallengeCatalog: os.Getenv("CHALLENGE_CATALOG"),
		HTTPPort:         getEnvWithDefault("HTTP_PORT", "8080"),
		Token:            os.Getenv("DISCORD_TOKEN"),
		AppID:            os.Getenv("APP_ID"),
		GuildID:          os.Getenv("GUILD_ID"),
		Environment:      getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
	}

	if cfg.DailyChallengeCount, err = parseIntEnv("DAILY_CHALLENGE_COUNT", 0); err != nil {
		return nil, fmt.Errorf("invalid DAILY_CHALLENGE_COUNT: %w", err)
	}
	if cfg.EnableDebugResets, err = parseBoolEnv("ENABLE_DEBUG_RESETS", false); err != nil {
		return nil, fmt.Errorf("invalid ENABLE_DEBUG_RESETS: %w", err)
	}
	if cfg.RandomSeed, err = parseUintEnv("RANDOM_SEED", 0); err != nil {
		return nil, fmt.Errorf("invalid RANDOM_SEED: %w", err)
	}
	if cfg.WatchInterval, err = parseDurationEnv("WATCH_INTERVAL", 2*time.Second); err != nil {
		return nil, fmt.Errorf("invalid WATCH_INTERVAL: %w", err)
	}
	if cfg.IdleTimeout, err = parseDurationEnv("ENGINE_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid ENGINE_IDLE_TIMEOUT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// validate checks the struct tag constraints
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// ValidateDiscord checks the fields the Discord bot needs
func (c *Config) ValidateDiscord() error {
	if c.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.AppID == "" {
		return fmt.Errorf("APP_ID is required")
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// StorePath returns the on-disk location for file-backed store types
func (c *Config) StorePath() string {
	switch c.StorageType {
	case "file":
		return filepath.Join(c.DataDir, "ebucks.json")
	default:
		return filepath.Join(c.DataDir, "ebucks.db")
	}
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func parseUintEnv(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseUint(value, 10, 64)
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(value)
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(value)
}
