package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type collabFixture struct {
	db       *gorm.DB
	clock    *testutil.FakeClock
	contents ContentService
	locks    LockService
	versions VersionService
	detector ConflictDetector
	saver    SaveCoordinator
	events   *recordingPublisher
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.EditEvent
}

func (p *recordingPublisher) Publish(event *domain.EditEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []domain.EditEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EditEventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func newCollabFixture(t *testing.T) *collabFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	clock := testutil.NewFakeClock()

	contentRepo := repository.NewContentRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	opts := DefaultVersionOptions()
	opts.RetryBackoff = 0

	f := &collabFixture{db: db, clock: clock, events: &recordingPublisher{}}
	f.contents = NewContentService(contentRepo, clock)
	f.locks = NewLockService(repository.NewLockRepository(db), contentRepo, clock, DefaultLockOptions(), f.events)
	f.versions = NewVersionService(versionRepo, clock, opts)
	f.detector = NewConflictDetector(versionRepo)
	f.saver = NewSaveCoordinator(f.locks, f.versions, f.detector, f.events)
	return f
}

// createContent creates a content item and saves it up to version n
func (f *collabFixture) createContent(t *testing.T, n int) string {
	t.Helper()
	ctx := context.Background()
	content, err := f.contents.CreateContent(ctx, &domain.CreateContentRequest{
		WebsiteID: "site-1",
		Title:     "Title 1",
		Body:      "line a\nline b",
		Excerpt:   "excerpt",
	}, "alice")
	require.NoError(t, err)

	for i := 2; i <= n; i++ {
		_, err := f.versions.RecordVersion(ctx, content.ID, domain.Snapshot{
			Title:   fmt.Sprintf("Title %d", i),
			Body:    "line a\nline b",
			Excerpt: "excerpt",
		}, "alice")
		require.NoError(t, err)
	}
	return content.ID
}

func TestAcquireLock_Success(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)

	lock, err := f.locks.AcquireLock(context.Background(), id, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", lock.HolderID)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), lock.ExpiresAt)
}

func TestAcquireLock_ClampsTTL(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)

	lock, err := f.locks.AcquireLock(context.Background(), id, "alice", 5*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(60*time.Minute), lock.ExpiresAt)
}

func TestAcquireLock_ContentNotFound(t *testing.T) {
	f := newCollabFixture(t)

	_, err := f.locks.AcquireLock(context.Background(), "missing", "alice", 0)
	assert.ErrorIs(t, err, common.ErrContentNotFound)
}

func TestAcquireLock_Conflict(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	held, err := f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	_, err = f.locks.AcquireLock(ctx, id, "bob", 10*time.Minute)
	var conflict *common.LockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, common.ErrLockConflict)
	assert.Equal(t, "alice", conflict.Holder)
	assert.True(t, conflict.ExpiresAt.Equal(held.ExpiresAt))
}

func TestAcquireLock_ExclusiveUnderConcurrency(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)

	var wins, conflicts int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		actor := fmt.Sprintf("editor-%d", i)
		g.Go(func() error {
			_, err := f.locks.AcquireLock(context.Background(), id, actor, 10*time.Minute)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, common.ErrLockConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(7), conflicts)
}

func TestAcquireLock_TakeoverAfterExpiry(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	lock, err := f.locks.AcquireLock(ctx, id, "bob", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "bob", lock.HolderID)
}

func TestReleaseLock(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	assert.ErrorIs(t, f.locks.ReleaseLock(ctx, id, "alice"), common.ErrLockNotFound)

	_, err := f.locks.AcquireLock(ctx, id, "alice", 0)
	require.NoError(t, err)

	assert.ErrorIs(t, f.locks.ReleaseLock(ctx, id, "bob"), common.ErrForbidden)
	lock, err := f.locks.GetLock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", lock.HolderID, "non-holder release must not mutate")

	require.NoError(t, f.locks.ReleaseLock(ctx, id, "alice"))
	_, err = f.locks.GetLock(ctx, id)
	assert.ErrorIs(t, err, common.ErrLockNotFound)
}

func TestReleaseLock_Expired(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "alice", time.Minute)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	assert.ErrorIs(t, f.locks.ReleaseLock(ctx, id, "alice"), common.ErrLockNotFound)
	assert.Equal(t, []domain.EditEventType{domain.EventLockAcquired}, f.events.types(), "lapsed release publishes nothing")
}

func TestExtendLock(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	held, err := f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.locks.ExtendLock(ctx, id, "bob", 10*time.Minute)
	assert.ErrorIs(t, err, common.ErrForbidden)
	lock, err := f.locks.GetLock(ctx, id)
	require.NoError(t, err)
	assert.True(t, lock.ExpiresAt.Equal(held.ExpiresAt), "non-holder extend must not mutate")

	extended, err := f.locks.ExtendLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))
	assert.True(t, extended.LastActivityAt.Equal(f.clock.Now()))

	f.clock.Advance(11 * time.Minute)
	_, err = f.locks.ExtendLock(ctx, id, "alice", 10*time.Minute)
	assert.ErrorIs(t, err, common.ErrLockNotFound)
}

func TestRequireHolder(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	_, err := f.locks.RequireHolder(ctx, id, "alice")
	assert.ErrorIs(t, err, common.ErrLockRequired)

	_, err = f.locks.AcquireLock(ctx, id, "alice", 0)
	require.NoError(t, err)

	_, err = f.locks.RequireHolder(ctx, id, "bob")
	assert.ErrorIs(t, err, common.ErrLockRequired)
	_, err = f.locks.RequireHolder(ctx, id, "alice")
	assert.NoError(t, err)
}

func TestCleanupExpiredLocks(t *testing.T) {
	f := newCollabFixture(t)
	a := f.createContent(t, 1)
	b := f.createContent(t, 1)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, a, "alice", time.Minute)
	require.NoError(t, err)
	_, err = f.locks.AcquireLock(ctx, b, "bob", 30*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	deleted, err := f.locks.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = f.locks.GetLock(ctx, b)
	assert.NoError(t, err)
}
