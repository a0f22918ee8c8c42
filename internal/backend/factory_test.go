package backend

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/config"
	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/storage"
)

func quietFactory() Factory {
	return NewFactory(applog.New(applog.Config{Output: &bytes.Buffer{}}))
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:       "postgres",
		DatabaseURL:       "postgres://localhost/saldo",
		CategoryCacheSize: 8,
		AMQPQueue:         "ledger_events",
	})
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.Equal(t, "postgres://localhost/saldo", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.CategoryCacheSize)
	assert.Equal(t, "ledger_events", cfg.AMQPQueue)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: PostgresBackend}.Validate())
	assert.Error(t, Config{Type: "nope"}.Validate())
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Publisher)
	assert.NoError(t, res.Ready(context.Background()))

	cat, err := res.Store.CreateCategory(context.Background(), "Food")
	require.NoError(t, err)
	found, ok, err := res.Store.FindCategoryByTitle(context.Background(), "Food")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cat, found)
}

func TestCreateSQLiteBackendWithCache(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{
		Type:              SQLiteBackend,
		SQLiteDBPath:      filepath.Join(t.TempDir(), "saldo.db"),
		CategoryCacheSize: 4,
	})
	require.NoError(t, err)

	_, cached := res.Store.(*storage.CachedCategories)
	assert.True(t, cached)
	assert.NoError(t, res.Ready(context.Background()))

	_, err = res.Store.CreateCategory(context.Background(), "Rent")
	require.NoError(t, err)
	_, err = res.Store.CreateCategory(context.Background(), "Rent")
	assert.ErrorIs(t, err, core.ErrCategoryExists)

	require.NoError(t, res.Cleanup())
}
