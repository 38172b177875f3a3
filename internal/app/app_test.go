package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fadedpez/ebucks/internal/config"
	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/services/challenges"
	"github.com/fadedpez/ebucks/pkg/storage/file"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/fadedpez/ebucks/pkg/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, storageType string) *config.Config {
	return &config.Config{
		StorageType:   storageType,
		DataDir:       t.TempDir(),
		ESIndexPrefix: "ebucks",
		WatchInterval: 50 * time.Millisecond,
		Environment:   "production",
		LogLevel:      "error",
	}
}

func TestOpenStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := map[string]any{
		"memory": &memory.Storage{},
		"file":   &file.Storage{},
		"sqlite": &sqlite.Storage{},
	}
	for kind, want := range cases {
		t.Run(kind, func(t *testing.T) {
			store, err := OpenStore(ctx, testConfig(t, kind), logging.Nop())
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, want, store)
		})
	}

	_, err := OpenStore(ctx, testConfig(t, "tape"), logging.Nop())
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.DailyChallengeCount = 3
	cfg.EnableDebugResets = true
	cfg.RandomSeed = 7

	opts, err := EngineOptions(cfg, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, challenges.DailySubset{Size: 3}, opts.Rotation)
	assert.True(t, opts.EnableDebugResets)
	assert.NotNil(t, opts.Random)
	assert.Nil(t, opts.Challenges)
}

func TestEngineOptionsCatalog(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.ChallengeCatalog = filepath.Join(cfg.DataDir, "challenges.json")
	require.NoError(t, os.WriteFile(cfg.ChallengeCatalog,
		[]byte(`[{"id":"read-docs","title":"Read the docs","reward":15}]`), 0644))

	opts, err := EngineOptions(cfg, logging.Nop())
	require.NoError(t, err)
	require.Len(t, opts.Challenges, 1)
	assert.Equal(t, "read-docs", opts.Challenges[0].ID)

	require.NoError(t, os.WriteFile(cfg.ChallengeCatalog, []byte(`[{"id":"","reward":0}]`), 0644))
	_, err = EngineOptions(cfg, logging.Nop())
	assert.True(t, types.IsEngineError(err, types.ErrInvalidCatalog))
}

func TestRuntimeServesUsers(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, testConfig(t, "memory"), logging.Nop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Audit)

	engine, err := rt.Registry.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = engine.AwardBucks(ctx, 5, "hello", nil, "")
	require.NoError(t, err)

	raw, err := rt.Store.Get(ctx, "user:alice:wallet")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"balance":5`)
}

func TestEvictionInterval(t *testing.T) {
	assert.Equal(t, 15*time.Second, evictionInterval(time.Minute))
	assert.Equal(t, time.Minute, evictionInterval(30*time.Minute))
}
