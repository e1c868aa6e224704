package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PrefixLock is the key prefix of edit lock hashes
const PrefixLock = "editlock:"

// Timestamps are unix milliseconds from the API clock. Expiry is decided by
// comparing them inside the script; the key TTL only reclaims memory.
var (
	acquireScript = redis.NewScript(`
local holder = redis.call('HGET', KEYS[1], 'holder')
if holder and holder ~= ARGV[1] then
  local exp = redis.call('HGET', KEYS[1], 'expires_at')
  if tonumber(exp) > tonumber(ARGV[2]) then
    return {'0', holder, redis.call('HGET', KEYS[1], 'acquired_at'), redis.call('HGET', KEYS[1], 'last_activity_at'), exp}
  end
end
redis.call('HSET', KEYS[1], 'holder', ARGV[1], 'acquired_at', ARGV[2], 'last_activity_at', ARGV[2], 'expires_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {'1', ARGV[1], ARGV[2], ARGV[2], ARGV[3]}
`)

	releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'holder') ~= ARGV[1] then
  return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

	extendScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'holder') ~= ARGV[1] then
  return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'last_activity_at', ARGV[2], 'expires_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

	touchScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'holder') ~= ARGV[1] then
  return 0
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'last_activity_at', ARGV[2])
return 1
`)
)

type redisLockRepository struct {
	client *redis.Client
}

// NewRedisLockRepository creates a LockRepository on Redis
func NewRedisLockRepository(client *redis.Client) LockRepository {
	return &redisLockRepository{client: client}
}

func lockKey(contentID string) string {
	return PrefixLock + contentID
}

func toMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func fromMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// ttlMillis keeps the key alive at least one millisecond
func ttlMillis(now, expiresAt time.Time) string {
	ms := expiresAt.Sub(now).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

func (r *redisLockRepository) TryAcquire(ctx context.Context, lock *domain.EditLock, now time.Time) (*domain.EditLock, bool, error) {
	res, err := acquireScript.Run(ctx, r.client,
		[]string{lockKey(lock.ContentID)},
		lock.HolderID, toMillis(now), toMillis(lock.ExpiresAt), ttlMillis(now, lock.ExpiresAt),
	).StringSlice()
	if err != nil {
		return nil, false, common.StoreError("acquire lock", err)
	}
	if len(res) != 5 {
		return nil, false, common.StoreError("acquire lock", fmt.Errorf("unexpected script reply %v", res))
	}

	current, err := parseLock(lock.ContentID, res[1], res[2], res[3], res[4])
	if err != nil {
		return nil, false, common.StoreError("acquire lock", err)
	}
	return current, res[0] == "1", nil
}

func (r *redisLockRepository) Find(ctx context.Context, contentID string) (*domain.EditLock, error) {
	fields, err := r.client.HGetAll(ctx, lockKey(contentID)).Result()
	if err != nil {
		return nil, common.StoreError("find lock", err)
	}
	if len(fields) == 0 || fields["holder"] == "" {
		return nil, common.ErrLockNotFound
	}
	lock, err := parseLock(contentID, fields["holder"], fields["acquired_at"], fields["last_activity_at"], fields["expires_at"])
	if err != nil {
		return nil, common.StoreError("find lock", err)
	}
	return lock, nil
}

func (r *redisLockRepository) Release(ctx context.Context, contentID, holderID string, now time.Time) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{lockKey(contentID)}, holderID, toMillis(now)).Int()
	if err != nil {
		return false, common.StoreError("release lock", err)
	}
	return n == 1, nil
}

func (r *redisLockRepository) Extend(ctx context.Context, contentID, holderID string, now, expiresAt time.Time) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{lockKey(contentID)},
		holderID, toMillis(now), toMillis(expiresAt), ttlMillis(now, expiresAt),
	).Int()
	if err != nil {
		return false, common.StoreError("extend lock", err)
	}
	return n == 1, nil
}

func (r *redisLockRepository) Touch(ctx context.Context, contentID, holderID string, now time.Time) (bool, error) {
	n, err := touchScript.Run(ctx, r.client, []string{lockKey(contentID)}, holderID, toMillis(now)).Int()
	if err != nil {
		return false, common.StoreError("touch lock", err)
	}
	return n == 1, nil
}

// DeleteExpired is a no-op: lapsed keys are reclaimed by their TTL
func (r *redisLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func parseLock(contentID, holder, acquired, activity, expires string) (*domain.EditLock, error) {
	acquiredAt, err := fromMillis(acquired)
	if err != nil {
		return nil, fmt.Errorf("acquired_at: %w", err)
	}
	lastActivityAt, err := fromMillis(activity)
	if err != nil {
		return nil, fmt.Errorf("last_activity_at: %w", err)
	}
	expiresAt, err := fromMillis(expires)
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	return &domain.EditLock{
		ContentID:      contentID,
		HolderID:       holder,
		AcquiredAt:     acquiredAt,
		LastActivityAt: lastActivityAt,
		ExpiresAt:      expiresAt,
	}, nil
}
