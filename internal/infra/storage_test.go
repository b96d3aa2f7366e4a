package infra

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

func testConfig(t *testing.T, backend string) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{
			Backend:    backend,
			FilePath:   filepath.Join(dir, "store.json"),
			SQLitePath: filepath.Join(dir, "store.db"),
		},
	}
}

func TestOpen_Backends(t *testing.T) {
	for _, backend := range []string{config.StorageMemory, config.StorageFile, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			res, err := Open(ctx, testConfig(t, backend), zaptest.NewLogger(t))
			require.NoError(t, err)
			t.Cleanup(func() { _ = res.Close() })

			require.NoError(t, res.KV.Set(ctx, "k", "v"))
			got, err := res.KV.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", got)
			assert.NoError(t, storage.Ping(ctx, res.KV))
			assert.Nil(t, res.Redis)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), testConfig(t, "mongo"), nil)
	assert.Error(t, err)
}

func TestNewRedisClient_ValidatesMode(t *testing.T) {
	_, err := newRedisClient(config.RedisConfig{Mode: "sentinel"})
	assert.Error(t, err)

	_, err = newRedisClient(config.RedisConfig{Mode: "cluster"})
	assert.Error(t, err)

	_, err = newRedisClient(config.RedisConfig{Mode: "bogus"})
	assert.Error(t, err)

	rdb, err := newRedisClient(config.RedisConfig{Host: "localhost", Port: 6379})
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())
}
