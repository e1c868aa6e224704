package service

import (
	"context"
	"testing"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveContent_RequiresLock(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)

	_, err := f.saver.SaveContent(context.Background(), id, "alice", domain.Snapshot{Title: "x"}, 1, false)
	assert.ErrorIs(t, err, common.ErrLockRequired)
}

// editor A locks at version 3, edits the body and saves
func TestSaveContent_HolderSavesAndRefreshesActivity(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	acquired, err := f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	entry, err := f.saver.SaveContent(ctx, id, "alice", domain.Snapshot{Title: "Title 3", Body: "edited", Excerpt: "excerpt"}, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 4, entry.VersionNumber)
	assert.Equal(t, "alice", entry.AuthorID)

	lock, err := f.locks.GetLock(ctx, id)
	require.NoError(t, err)
	assert.True(t, lock.LastActivityAt.Equal(f.clock.Now()))
	assert.True(t, lock.ExpiresAt.Equal(acquired.ExpiresAt), "saving must not extend the lock")

	content, err := f.contents.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, content.CurrentVersionNumber)
	assert.Equal(t, "edited", content.Body)
}

// B is refused while A's lock is live, then takes over once it lapses
func TestSaveContent_LockHandOver(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	held, err := f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	_, err = f.locks.AcquireLock(ctx, id, "bob", 10*time.Minute)
	var conflict *common.LockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "alice", conflict.Holder)
	assert.True(t, conflict.ExpiresAt.Equal(held.ExpiresAt))

	f.clock.Advance(10 * time.Minute)
	_, err = f.locks.AcquireLock(ctx, id, "bob", 10*time.Minute)
	require.NoError(t, err)

	_, err = f.saver.SaveContent(ctx, id, "alice", domain.Snapshot{Title: "late"}, 3, false)
	assert.ErrorIs(t, err, common.ErrLockRequired)
}

// A saves from a stale base after B changed the title
func TestSaveContent_StaleBaseConflict(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "bob", 10*time.Minute)
	require.NoError(t, err)
	_, err = f.saver.SaveContent(ctx, id, "bob", domain.Snapshot{Title: "Bob title", Body: "line a\nline b", Excerpt: "excerpt"}, 3, false)
	require.NoError(t, err)
	require.NoError(t, f.locks.ReleaseLock(ctx, id, "bob"))

	_, err = f.locks.AcquireLock(ctx, id, "alice", 10*time.Minute)
	require.NoError(t, err)

	proposed := domain.Snapshot{Title: "Alice title", Body: "line a\nline b", Excerpt: "excerpt"}
	_, err = f.saver.SaveContent(ctx, id, "alice", proposed, 3, false)
	var vc *common.VersionConflictError
	require.ErrorAs(t, err, &vc)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, []string{domain.FieldTitle}, vc.Report.ConflictingFields)
	assert.Equal(t, 4, vc.Report.LatestVersion)

	latest, err := f.versions.GetVersion(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, "Bob title", latest.Title, "rejected save must not write")

	entry, err := f.saver.SaveContent(ctx, id, "alice", proposed, 3, true)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.VersionNumber)
	assert.Equal(t, "Alice title", entry.Title)
}

func TestSaveContent_DisjointEditsSave(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 2)
	ctx := context.Background()

	// server moves on to version 3 with a title change
	_, err := f.versions.RecordVersion(ctx, id, domain.Snapshot{Title: "Server", Body: "line a\nline b", Excerpt: "excerpt"}, "bob")
	require.NoError(t, err)

	_, err = f.locks.AcquireLock(ctx, id, "alice", 0)
	require.NoError(t, err)
	entry, err := f.saver.SaveContent(ctx, id, "alice", domain.Snapshot{Title: "Title 2", Body: "alice body", Excerpt: "excerpt"}, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 4, entry.VersionNumber)
}

func TestRestoreContent(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 5)
	ctx := context.Background()

	entry, err := f.saver.RestoreContent(ctx, id, 2, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, entry.VersionNumber)
	assert.Equal(t, "Title 2", entry.Title)

	for n := 1; n <= 5; n++ {
		v, err := f.versions.GetVersion(ctx, id, n)
		require.NoError(t, err)
		if n == 1 {
			assert.Equal(t, "Title 1", v.Title)
		}
		assert.Nil(t, v.RestoredFrom)
	}
}

func TestRestoreContent_BlockedByOtherHolder(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "bob", 0)
	require.NoError(t, err)

	_, err = f.saver.RestoreContent(ctx, id, 1, "alice")
	assert.ErrorIs(t, err, common.ErrLockConflict)

	f.clock.Advance(time.Minute)
	entry, err := f.saver.RestoreContent(ctx, id, 1, "bob")
	require.NoError(t, err)
	assert.Equal(t, 4, entry.VersionNumber)

	lock, err := f.locks.GetLock(ctx, id)
	require.NoError(t, err)
	assert.True(t, lock.LastActivityAt.Equal(f.clock.Now()))
}

func TestCreateContent(t *testing.T) {
	f := newCollabFixture(t)
	ctx := context.Background()

	content, err := f.contents.CreateContent(ctx, &domain.CreateContentRequest{WebsiteID: "w", Title: "Hello"}, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, content.ID)
	assert.Equal(t, 1, content.CurrentVersionNumber)

	v1, err := f.versions.GetVersion(ctx, content.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", v1.Title)
	assert.Equal(t, "alice", v1.AuthorID)

	_, err = f.contents.CreateContent(ctx, &domain.CreateContentRequest{WebsiteID: "w", Title: "  "}, "alice")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.contents.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrContentNotFound)
}

func TestEditEventsPublished(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 2)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "alice", 0)
	require.NoError(t, err)
	_, err = f.locks.AcquireLock(ctx, id, "bob", 0)
	require.Error(t, err)
	_, err = f.saver.SaveContent(ctx, id, "alice", domain.Snapshot{Title: "new"}, 2, false)
	require.NoError(t, err)
	_, err = f.locks.ExtendLock(ctx, id, "alice", 20*time.Minute)
	require.NoError(t, err)
	_, err = f.saver.RestoreContent(ctx, id, 1, "alice")
	require.NoError(t, err)
	require.NoError(t, f.locks.ReleaseLock(ctx, id, "alice"))

	assert.Equal(t, []domain.EditEventType{
		domain.EventLockAcquired,
		domain.EventVersionSaved,
		domain.EventLockExtended,
		domain.EventVersionRestored,
		domain.EventLockReleased,
	}, f.events.types())

	saved := f.events.events[1]
	assert.Equal(t, id, saved.ContentID)
	assert.Equal(t, 3, saved.VersionNumber)
	assert.Equal(t, "alice", saved.ActorID)
	require.NotNil(t, f.events.events[2].ExpiresAt)
	assert.True(t, f.events.events[2].ExpiresAt.Equal(f.clock.Now().Add(20*time.Minute)))
}

// interleavingDetector runs between once, right after the first conflict
// check, to model another editor committing inside the save window
type interleavingDetector struct {
	ConflictDetector
	between func()
}

func (d *interleavingDetector) DetectConflicts(ctx context.Context, contentID string, proposed domain.Snapshot, baseVersion int) (*domain.ConflictReport, error) {
	report, err := d.ConflictDetector.DetectConflicts(ctx, contentID, proposed, baseVersion)
	if hook := d.between; hook != nil {
		d.between = nil
		hook()
	}
	return report, err
}

// interleavingVersions runs between once, before the first append
type interleavingVersions struct {
	VersionService
	between func()
}

func (v *interleavingVersions) AppendVersion(ctx context.Context, entry *domain.ContentVersion) error {
	if hook := v.between; hook != nil {
		v.between = nil
		hook()
	}
	return v.VersionService.AppendVersion(ctx, entry)
}

// A's lock lapses after her conflict check; B takes over and saves first
func TestSaveContent_LockLapsesDuringSave(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	_, err := f.locks.AcquireLock(ctx, id, "alice", time.Minute)
	require.NoError(t, err)

	detector := &interleavingDetector{ConflictDetector: f.detector, between: func() {
		f.clock.Advance(2 * time.Minute)
		_, err := f.locks.AcquireLock(ctx, id, "bob", 0)
		require.NoError(t, err)
		entry, err := f.saver.SaveContent(ctx, id, "bob", domain.Snapshot{Title: "Bob title", Body: "line a\nline b", Excerpt: "excerpt"}, 3, false)
		require.NoError(t, err)
		require.Equal(t, 4, entry.VersionNumber)
	}}
	alice := NewSaveCoordinator(f.locks, f.versions, detector, f.events)

	_, err = alice.SaveContent(ctx, id, "alice", domain.Snapshot{Title: "Alice title", Body: "line a\nline b", Excerpt: "excerpt"}, 3, false)
	assert.ErrorIs(t, err, common.ErrLockRequired)

	content, err := f.contents.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, content.CurrentVersionNumber)
	assert.Equal(t, "Bob title", content.Title)
	_, err = f.versions.GetVersion(ctx, id, 5)
	assert.ErrorIs(t, err, common.ErrVersionNotFound)
}

// a version committed after A's check is compared again, not written over
func TestSaveContent_RechecksAfterLostRace(t *testing.T) {
	tests := []struct {
		name     string
		server   domain.Snapshot
		proposed domain.Snapshot
		conflict bool
	}{
		{
			name:     "same field becomes a conflict",
			server:   domain.Snapshot{Title: "Server title", Body: "line a\nline b", Excerpt: "excerpt"},
			proposed: domain.Snapshot{Title: "Alice title", Body: "line a\nline b", Excerpt: "excerpt"},
			conflict: true,
		},
		{
			name:     "disjoint field saves on top",
			server:   domain.Snapshot{Title: "Title 3", Body: "server body", Excerpt: "excerpt"},
			proposed: domain.Snapshot{Title: "Alice title", Body: "line a\nline b", Excerpt: "excerpt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCollabFixture(t)
			id := f.createContent(t, 3)
			ctx := context.Background()

			_, err := f.locks.AcquireLock(ctx, id, "alice", 0)
			require.NoError(t, err)

			detector := &interleavingDetector{ConflictDetector: f.detector, between: func() {
				_, err := f.versions.RecordVersion(ctx, id, tt.server, "bob")
				require.NoError(t, err)
			}}
			alice := NewSaveCoordinator(f.locks, f.versions, detector, f.events)

			entry, err := alice.SaveContent(ctx, id, "alice", tt.proposed, 3, false)
			if tt.conflict {
				var vc *common.VersionConflictError
				require.ErrorAs(t, err, &vc)
				assert.Equal(t, 4, vc.Report.LatestVersion)
				assert.Equal(t, []string{domain.FieldTitle}, vc.Report.ConflictingFields)

				latest, err := f.versions.GetVersion(ctx, id, 4)
				require.NoError(t, err)
				assert.Equal(t, "Server title", latest.Title)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 5, entry.VersionNumber)
			assert.Equal(t, "Alice title", entry.Title)
		})
	}
}

// B locks and saves between A's lock check and her restore write
func TestRestoreContent_LockTakenDuringRestore(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)
	ctx := context.Background()

	versions := &interleavingVersions{VersionService: f.versions, between: func() {
		_, err := f.locks.AcquireLock(ctx, id, "bob", 0)
		require.NoError(t, err)
		_, err = f.saver.SaveContent(ctx, id, "bob", domain.Snapshot{Title: "Bob title"}, 3, false)
		require.NoError(t, err)
	}}
	alice := NewSaveCoordinator(f.locks, versions, f.detector, f.events)

	_, err := alice.RestoreContent(ctx, id, 1, "alice")
	var conflict *common.LockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "bob", conflict.Holder)

	content, err := f.contents.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, content.CurrentVersionNumber)
	assert.Equal(t, "Bob title", content.Title)
}
