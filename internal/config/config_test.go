package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"STORAGE_TYPE", "DATA_DIR", "REDIS_URL", "REDIS_CHANNEL", "ES_URL", "ES_INDEX_PREFIX",
	"CHALLENGE_CATALOG", "DAILY_CHALLENGE_COUNT", "ENABLE_DEBUG_RESETS", "RANDOM_SEED",
	"WATCH_INTERVAL", "ENGINE_IDLE_TIMEOUT", "HTTP_PORT", "ENVIRONMENT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		dataDir := filepath.Join(t.TempDir(), "data")
		t.Setenv("DATA_DIR", dataDir)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.StorageType)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.Equal(t, "ebucks:changes", cfg.RedisChannel)
		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, 2*time.Second, cfg.WatchInterval)
		assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
		assert.False(t, cfg.EnableDebugResets)
		assert.True(t, cfg.IsDevelopment())
		assert.Equal(t, filepath.Join(dataDir, "ebucks.db"), cfg.StorePath())
		assert.DirExists(t, dataDir)
	})

	t.Run("explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("STORAGE_TYPE", "file")
		t.Setenv("DAILY_CHALLENGE_COUNT", "3")
		t.Setenv("ENABLE_DEBUG_RESETS", "true")
		t.Setenv("RANDOM_SEED", "42")
		t.Setenv("WATCH_INTERVAL", "500ms")
		t.Setenv("ENGINE_IDLE_TIMEOUT", "0")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "file", cfg.StorageType)
		assert.Equal(t, 3, cfg.DailyChallengeCount)
		assert.True(t, cfg.EnableDebugResets)
		assert.Equal(t, uint64(42), cfg.RandomSeed)
		assert.Equal(t, 500*time.Millisecond, cfg.WatchInterval)
		assert.Zero(t, cfg.IdleTimeout)
		assert.False(t, cfg.IsDevelopment())
		assert.Equal(t, "ebucks.json", filepath.Base(cfg.StorePath()))
	})

	t.Run("redis requires url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("STORAGE_TYPE", "redis")
		t.Setenv("REDIS_URL", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown storage type", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("STORAGE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed number", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("DAILY_CHALLENGE_COUNT", "many")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidateDiscord(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateDiscord())

	cfg.Token = "token"
	assert.Error(t, cfg.ValidateDiscord())

	cfg.AppID = "app"
	assert.NoError(t, cfg.ValidateDiscord())
}
