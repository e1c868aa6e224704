package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/testutil"
	"github.com/damoang/angple-collab/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedVersionRepo(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := NewCachedVersionRepository(NewVersionRepository(db), cache.NewService(client), 0)
	ctx := context.Background()
	seedContent(t, db, "c1")
	for n := 2; n <= 4; n++ {
		appendVersion(t, repo, "c1", n, nil)
	}

	v2, err := repo.FindByNumber(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", v2.Title)
	assert.True(t, mr.Exists(cache.VersionKey("c1", 2)))
	assert.Equal(t, cache.TTLVersion, mr.TTL(cache.VersionKey("c1", 2)))

	// served from the cache without touching the table
	require.NoError(t, db.Model(&domain.ContentVersion{}).
		Where("content_id = ? AND version_number = ?", "c1", 2).
		Update("title", "changed underneath").Error)
	cached, err := repo.FindByNumber(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", cached.Title)
	assert.True(t, cached.CreatedAt.Equal(v2.CreatedAt))

	_, err = repo.FindByNumber(ctx, "c1", 9)
	assert.ErrorIs(t, err, common.ErrVersionNotFound)
	assert.False(t, mr.Exists(cache.VersionKey("c1", 9)))

	deleted, err := repo.DeleteUpTo(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.False(t, mr.Exists(cache.VersionKey("c1", 2)))

	_, err = repo.FindByNumber(ctx, "c1", 2)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCachedVersionRepo_WithoutRedis(t *testing.T) {
	inner := NewVersionRepository(testutil.NewTestDB(t))
	assert.Same(t, inner, NewCachedVersionRepository(inner, cache.NewService(nil), 0))
}
