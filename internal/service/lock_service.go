package service

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/pkg/logger"
)

// acquireAttempts bounds retries when the lock row changes mid-acquire
const acquireAttempts = 3

// LockService manages advisory edit locks.
//
// A content item is either unlocked or locked by one holder until its
// expiry. Expiry is never swept for correctness: a lapsed lock is simply
// taken over by the next acquire.
type LockService interface {
	AcquireLock(ctx context.Context, contentID, actorID string, ttl time.Duration) (*domain.EditLock, error)
	ReleaseLock(ctx context.Context, contentID, actorID string) error
	ExtendLock(ctx context.Context, contentID, actorID string, ttl time.Duration) (*domain.EditLock, error)
	// GetLock returns the live lock, or ErrLockNotFound when unlocked
	GetLock(ctx context.Context, contentID string) (*domain.EditLock, error)
	// RequireHolder returns the live lock held by actorID or ErrLockRequired
	RequireHolder(ctx context.Context, contentID, actorID string) (*domain.EditLock, error)
	// TouchActivity refreshes last_activity_at without extending expiry
	TouchActivity(ctx context.Context, contentID, actorID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// LockOptions bounds requested lock lifetimes
type LockOptions struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// DefaultLockOptions returns the production defaults
func DefaultLockOptions() LockOptions {
	return LockOptions{DefaultTTL: 10 * time.Minute, MaxTTL: 60 * time.Minute}
}

type lockService struct {
	repo     repository.LockRepository
	contents repository.ContentRepository
	clock    common.Clock
	opts     LockOptions
	events   EventPublisher
}

// NewLockService creates a new LockService. events may be nil.
func NewLockService(repo repository.LockRepository, contents repository.ContentRepository, clock common.Clock, opts LockOptions, events EventPublisher) LockService {
	if clock == nil {
		clock = common.SystemClock{}
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultLockOptions().DefaultTTL
	}
	if opts.MaxTTL < opts.DefaultTTL {
		opts.MaxTTL = opts.DefaultTTL
	}
	return &lockService{repo: repo, contents: contents, clock: clock, opts: opts, events: publisherOrNoop(events)}
}

// clampTTL applies the default to a zero ttl and caps it at MaxTTL
func (s *lockService) clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return s.opts.DefaultTTL
	case ttl < time.Minute:
		return time.Minute
	case ttl > s.opts.MaxTTL:
		return s.opts.MaxTTL
	}
	return ttl
}

func (s *lockService) AcquireLock(ctx context.Context, contentID, actorID string, ttl time.Duration) (*domain.EditLock, error) {
	exists, err := s.contents.Exists(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.ErrContentNotFound
	}

	ttl = s.clampTTL(ttl)
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		now := s.clock.Now()
		want := &domain.EditLock{
			ContentID:      contentID,
			HolderID:       actorID,
			AcquiredAt:     now,
			LastActivityAt: now,
			ExpiresAt:      now.Add(ttl),
		}

		lock, acquired, err := s.repo.TryAcquire(ctx, want, now)
		if errors.Is(err, repository.ErrLockRace) {
			continue
		}
		if err != nil {
			lockOperationsTotal.WithLabelValues("acquire", "error").Inc()
			return nil, err
		}
		if !acquired {
			lockOperationsTotal.WithLabelValues("acquire", "conflict").Inc()
			logger.WithComponent("locks").Debug().
				Str("content_id", contentID).
				Str("actor", actorID).
				Str("holder", lock.HolderID).
				Time("expires_at", lock.ExpiresAt).
				Msg("lock held by another editor")
			return nil, &common.LockConflictError{Holder: lock.HolderID, ExpiresAt: lock.ExpiresAt}
		}

		lockOperationsTotal.WithLabelValues("acquire", "ok").Inc()
		s.publish(domain.EventLockAcquired, lock)
		return lock, nil
	}

	lockOperationsTotal.WithLabelValues("acquire", "error").Inc()
	return nil, common.ErrRaceRetryExhausted
}

func (s *lockService) ReleaseLock(ctx context.Context, contentID, actorID string) error {
	released, err := s.repo.Release(ctx, contentID, actorID, s.clock.Now())
	if err != nil {
		return err
	}
	if released {
		lockOperationsTotal.WithLabelValues("release", "ok").Inc()
		s.events.Publish(&domain.EditEvent{
			Type:       domain.EventLockReleased,
			ContentID:  contentID,
			ActorID:    actorID,
			OccurredAt: s.clock.Now(),
		})
		return nil
	}
	err = s.explainMiss(ctx, contentID)
	lockOperationsTotal.WithLabelValues("release", resultLabel(err)).Inc()
	return err
}

func (s *lockService) ExtendLock(ctx context.Context, contentID, actorID string, ttl time.Duration) (*domain.EditLock, error) {
	ttl = s.clampTTL(ttl)
	now := s.clock.Now()

	extended, err := s.repo.Extend(ctx, contentID, actorID, now, now.Add(ttl))
	if err != nil {
		return nil, err
	}

	lock, findErr := s.repo.Find(ctx, contentID)
	if findErr != nil && !errors.Is(findErr, common.ErrNotFound) {
		return nil, findErr
	}
	if lock != nil && lock.HolderID == actorID && !lock.IsExpired(now) && (extended || !lock.ExpiresAt.Before(now.Add(ttl))) {
		lockOperationsTotal.WithLabelValues("extend", "ok").Inc()
		s.publish(domain.EventLockExtended, lock)
		return lock, nil
	}

	err = missReason(lock, now)
	lockOperationsTotal.WithLabelValues("extend", resultLabel(err)).Inc()
	return nil, err
}

func (s *lockService) GetLock(ctx context.Context, contentID string) (*domain.EditLock, error) {
	lock, err := s.repo.Find(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if lock.IsExpired(s.clock.Now()) {
		return nil, common.ErrLockNotFound
	}
	return lock, nil
}

func (s *lockService) RequireHolder(ctx context.Context, contentID, actorID string) (*domain.EditLock, error) {
	lock, err := s.GetLock(ctx, contentID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrLockRequired
	}
	if err != nil {
		return nil, err
	}
	if lock.HolderID != actorID {
		return nil, common.ErrLockRequired
	}
	return lock, nil
}

func (s *lockService) TouchActivity(ctx context.Context, contentID, actorID string) error {
	touched, err := s.repo.Touch(ctx, contentID, actorID, s.clock.Now())
	if err != nil {
		return err
	}
	if !touched {
		return common.ErrLockRequired
	}
	return nil
}

func (s *lockService) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.WithComponent("locks").Info().Int64("deleted", deleted).Msg("expired locks removed")
	}
	return deleted, nil
}

func (s *lockService) publish(typ domain.EditEventType, lock *domain.EditLock) {
	expiresAt := lock.ExpiresAt
	s.events.Publish(&domain.EditEvent{
		Type:       typ,
		ContentID:  lock.ContentID,
		ActorID:    lock.HolderID,
		ExpiresAt:  &expiresAt,
		OccurredAt: s.clock.Now(),
	})
}

// explainMiss turns a conditional write that matched nothing into NotFound or Forbidden
func (s *lockService) explainMiss(ctx context.Context, contentID string) error {
	lock, err := s.repo.Find(ctx, contentID)
	if err != nil {
		return err
	}
	return missReason(lock, s.clock.Now())
}

func missReason(lock *domain.EditLock, now time.Time) error {
	if lock == nil || lock.IsExpired(now) {
		return common.ErrLockNotFound
	}
	return common.ErrForbidden
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
