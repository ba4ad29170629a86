package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

func TestRedisEntryCodec(t *testing.T) {
	t.Run("should round trip an entry", func(t *testing.T) {
		entry := schemas.CacheEntry{Result: `//button[@id='login']`, SessionID: "sess-1"}

		raw, err := encodeEntry(entry)
		require.NoError(t, err)
		decoded, err := decodeEntry(raw)
		require.NoError(t, err)
		assert.Equal(t, entry, decoded)
	})

	t.Run("should reject malformed payloads", func(t *testing.T) {
		_, err := decodeEntry("{not json")
		assert.ErrorContains(t, err, "decode cache entry")
	})
}

func TestRedisHashKeys(t *testing.T) {
	t.Run("should map namespaces to distinct hashes", func(t *testing.T) {
		obs, err := hashKeyFor(schemas.NamespaceObservations)
		require.NoError(t, err)
		acts, err := hashKeyFor(schemas.NamespaceActions)
		require.NoError(t, err)
		assert.Equal(t, "stagehand:cache:observations", obs)
		assert.Equal(t, "stagehand:cache:actions", acts)
	})

	t.Run("should reject an unknown namespace", func(t *testing.T) {
		_, err := hashKeyFor(schemas.Namespace("sessions"))
		assert.ErrorContains(t, err, "unknown cache namespace")
	})
}

func TestNewRedisStore(t *testing.T) {
	t.Run("should fail fast when the server is unreachable", func(t *testing.T) {
		cfg := config.RedisConfig{Addr: "127.0.0.1:1"}
		_, err := NewRedisStore(context.Background(), cfg, zap.NewNop())
		assert.ErrorContains(t, err, "ping redis")
	})
}
