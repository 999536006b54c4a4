package storage_test

import (
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/aerodrome/internal/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := t.Context()
	server := miniredis.RunT(t)

	store, err := storage.NewRedisStore("redis://"+server.Addr()+"/0", slog.Default())
	require.NoError(t, err)
	defer store.Close()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, storage.KeyToken)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set uses the key prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, storage.KeyToken, "tok"))

		raw, err := server.Get("aerodrome:" + storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "tok", raw)

		value, err := store.Get(ctx, storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "tok", value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, storage.KeyToken))
		assert.False(t, server.Exists("aerodrome:"+storage.KeyToken))
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("server unavailable", func(t *testing.T) {
		server.SetError("ERR server unavailable")
		defer server.SetError("")

		_, err := store.Get(ctx, storage.KeyLastCity)
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := storage.NewRedisStore("://bad", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis url")
}
