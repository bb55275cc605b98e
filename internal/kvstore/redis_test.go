package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(RedisConfig{Addr: mr.Addr()})
	store := NewRedis(client, "crismap:")
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore(t *testing.T) {
	_, store := setupTestRedis(t)
	require.NoError(t, store.Ping(context.Background()))
	exerciseStore(t, store)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	mr, store := setupTestRedis(t)

	require.NoError(t, store.Set(context.Background(), "crisZones", "[]"))

	raw, err := mr.Get("crismap:crisZones")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
	assert.False(t, mr.Exists("crisZones"))
}
