package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Title string `json:"title"`
}

func newTestCache(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(client), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, VersionKey("c1", 3), entry{Title: "hello"}, TTLVersion))

	var got entry
	require.NoError(t, c.Get(ctx, VersionKey("c1", 3), &got))
	assert.Equal(t, "hello", got.Title)
	assert.Equal(t, TTLVersion, mr.TTL("collab:version:c1:3"))

	assert.ErrorIs(t, c.Get(ctx, VersionKey("c1", 4), &got), ErrMiss)
}

func TestCache_DeleteByPattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{VersionKey("c1", 1), VersionKey("c1", 2), VersionKey("c2", 1)} {
		require.NoError(t, c.Set(ctx, key, entry{}, time.Minute))
	}

	require.NoError(t, c.DeleteByPattern(ctx, VersionPattern("c1")))
	assert.False(t, mr.Exists(VersionKey("c1", 1)))
	assert.False(t, mr.Exists(VersionKey("c1", 2)))
	assert.True(t, mr.Exists(VersionKey("c2", 1)))
}

func TestCache_NilClient(t *testing.T) {
	c := NewService(nil)
	ctx := context.Background()

	assert.False(t, c.IsAvailable())
	assert.NoError(t, c.Set(ctx, "k", entry{}, 0))
	assert.ErrorIs(t, c.Get(ctx, "k", &entry{}), ErrMiss)
	assert.NoError(t, c.DeleteByPattern(ctx, "*"))
	assert.Error(t, c.Ping(ctx))
}
