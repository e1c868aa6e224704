package repository

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/pkg/cache"
	"github.com/damoang/angple-collab/pkg/logger"
)

// cachedVersionRepository serves FindByNumber from Redis. Versions never
// change once written, so only retention deletes invalidate entries.
type cachedVersionRepository struct {
	VersionRepository
	cache cache.Service
	ttl   time.Duration
}

// NewCachedVersionRepository wraps repo with a read-through snapshot cache
func NewCachedVersionRepository(repo VersionRepository, c cache.Service, ttl time.Duration) VersionRepository {
	if c == nil || !c.IsAvailable() {
		return repo
	}
	if ttl <= 0 {
		ttl = cache.TTLVersion
	}
	return &cachedVersionRepository{VersionRepository: repo, cache: c, ttl: ttl}
}

func (r *cachedVersionRepository) FindByNumber(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error) {
	key := cache.VersionKey(contentID, number)

	var cached domain.ContentVersion
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("version cache read failed for %s: %v", key, err)
	}

	version, err := r.VersionRepository.FindByNumber(ctx, contentID, number)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, version, r.ttl); err != nil {
		logger.Warn("version cache write failed for %s: %v", key, err)
	}
	return version, nil
}

func (r *cachedVersionRepository) DeleteUpTo(ctx context.Context, contentID string, cutoff int) (int64, error) {
	deleted, err := r.VersionRepository.DeleteUpTo(ctx, contentID, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if err := r.cache.DeleteByPattern(ctx, cache.VersionPattern(contentID)); err != nil {
			logger.Warn("version cache invalidation failed for %s: %v", contentID, err)
		}
	}
	return deleted, nil
}
