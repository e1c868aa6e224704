package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository is the store behind edit locks. Every write is a single
// conditional statement; callers never read-then-write.
type LockRepository interface {
	// TryAcquire makes lock the live lock for its content when no live lock
	// held by someone else exists. On success it returns (lock, true, nil);
	// when blocked it returns the blocking lock and false. ErrLockRace means
	// the row moved underneath the attempt and it may be retried.
	TryAcquire(ctx context.Context, lock *domain.EditLock, now time.Time) (*domain.EditLock, bool, error)
	// Find returns the lock row regardless of expiry
	Find(ctx context.Context, contentID string) (*domain.EditLock, error)
	// Release deletes the row if holderID holds a live lock. A lapsed row is
	// left for takeover or DeleteExpired.
	Release(ctx context.Context, contentID, holderID string, now time.Time) (bool, error)
	// Extend moves expires_at forward if holderID holds a live lock
	Extend(ctx context.Context, contentID, holderID string, now, expiresAt time.Time) (bool, error)
	// Touch refreshes last_activity_at if holderID holds a live lock
	Touch(ctx context.Context, contentID, holderID string, now time.Time) (bool, error)
	// DeleteExpired removes lapsed rows
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type lockRepository struct {
	db *gorm.DB
}

// NewLockRepository creates a LockRepository on the SQL store
func NewLockRepository(db *gorm.DB) LockRepository {
	return &lockRepository{db: db}
}

func (r *lockRepository) TryAcquire(ctx context.Context, lock *domain.EditLock, now time.Time) (*domain.EditLock, bool, error) {
	db := r.db.WithContext(ctx)

	// 1. take over a lapsed row, or refresh our own
	res := db.Model(&domain.EditLock{}).
		Where("content_id = ? AND (expires_at <= ? OR holder_id = ?)", lock.ContentID, now, lock.HolderID).
		Updates(map[string]interface{}{
			"holder_id":        lock.HolderID,
			"acquired_at":      lock.AcquiredAt,
			"last_activity_at": lock.LastActivityAt,
			"expires_at":       lock.ExpiresAt,
		})
	if res.Error != nil {
		return nil, false, common.StoreError("acquire lock", res.Error)
	}
	if res.RowsAffected == 1 {
		return lock, true, nil
	}

	// 2. no row yet: insert-if-absent, the primary key picks one winner
	res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(lock)
	if res.Error != nil && !isDuplicateKey(res.Error) {
		return nil, false, common.StoreError("acquire lock", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return lock, true, nil
	}

	// 3. someone else holds a row; report it
	current, err := r.Find(ctx, lock.ContentID)
	if err != nil {
		if err == common.ErrLockNotFound {
			return nil, false, ErrLockRace
		}
		return nil, false, err
	}
	if current.HolderID == lock.HolderID && !current.IsExpired(now) {
		// our own refresh matched no changed row (same timestamp)
		return current, true, nil
	}
	if current.IsExpired(now) {
		return nil, false, ErrLockRace
	}
	return current, false, nil
}

func (r *lockRepository) Find(ctx context.Context, contentID string) (*domain.EditLock, error) {
	var lock domain.EditLock
	err := r.db.WithContext(ctx).Where("content_id = ?", contentID).First(&lock).Error
	if err != nil {
		return nil, translate("find lock", err, common.ErrLockNotFound)
	}
	return &lock, nil
}

func (r *lockRepository) Release(ctx context.Context, contentID, holderID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("content_id = ? AND holder_id = ? AND expires_at > ?", contentID, holderID, now).
		Delete(&domain.EditLock{})
	if res.Error != nil {
		return false, common.StoreError("release lock", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *lockRepository) Extend(ctx context.Context, contentID, holderID string, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.EditLock{}).
		Where("content_id = ? AND holder_id = ? AND expires_at > ?", contentID, holderID, now).
		Updates(map[string]interface{}{
			"last_activity_at": now,
			"expires_at":       expiresAt,
		})
	if res.Error != nil {
		return false, common.StoreError("extend lock", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *lockRepository) Touch(ctx context.Context, contentID, holderID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.EditLock{}).
		Where("content_id = ? AND holder_id = ? AND expires_at > ?", contentID, holderID, now).
		Update("last_activity_at", now)
	if res.Error != nil {
		return false, common.StoreError("touch lock", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *lockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.EditLock{})
	if res.Error != nil {
		return 0, common.StoreError("delete expired locks", res.Error)
	}
	return res.RowsAffected, nil
}
