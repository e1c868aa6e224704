package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock VersionRepository ---

type mockVersionRepo struct {
	mock.Mock
}

func (m *mockVersionRepo) LatestNumber(ctx context.Context, contentID string) (int, error) {
	args := m.Called(ctx, contentID)
	return args.Int(0), args.Error(1)
}

func (m *mockVersionRepo) FindByNumber(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error) {
	args := m.Called(ctx, contentID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContentVersion), args.Error(1)
}

func (m *mockVersionRepo) Append(ctx context.Context, entry *domain.ContentVersion) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockVersionRepo) List(ctx context.Context, contentID string, limit, offset int) ([]*domain.ContentVersion, int64, error) {
	args := m.Called(ctx, contentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.ContentVersion), args.Get(1).(int64), args.Error(2)
}

func (m *mockVersionRepo) DeleteUpTo(ctx context.Context, contentID string, cutoff int) (int64, error) {
	args := m.Called(ctx, contentID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockVersionRepo) ContentIDsOver(ctx context.Context, keep, limit int) ([]string, error) {
	args := m.Called(ctx, keep, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Tests ---

func TestRecordVersion_RetryExhausted(t *testing.T) {
	repo := new(mockVersionRepo)
	svc := NewVersionService(repo, nil, VersionOptions{RetryAttempts: 3})

	repo.On("LatestNumber", mock.Anything, "c1").Return(4, nil)
	repo.On("Append", mock.Anything, mock.Anything).Return(repository.ErrVersionTaken)

	_, err := svc.RecordVersion(context.Background(), "c1", domain.Snapshot{Title: "x"}, "alice")
	assert.ErrorIs(t, err, common.ErrRaceRetryExhausted)
	repo.AssertNumberOfCalls(t, "Append", 3)
}

func TestRecordVersion_RetriesAtNextNumber(t *testing.T) {
	repo := new(mockVersionRepo)
	svc := NewVersionService(repo, nil, VersionOptions{RetryAttempts: 3})

	repo.On("LatestNumber", mock.Anything, "c1").Return(4, nil).Once()
	repo.On("LatestNumber", mock.Anything, "c1").Return(5, nil).Once()
	repo.On("Append", mock.Anything, mock.MatchedBy(func(v *domain.ContentVersion) bool {
		return v.VersionNumber == 5
	})).Return(repository.ErrVersionTaken).Once()
	repo.On("Append", mock.Anything, mock.MatchedBy(func(v *domain.ContentVersion) bool {
		return v.VersionNumber == 6
	})).Return(nil).Once()

	entry, err := svc.RecordVersion(context.Background(), "c1", domain.Snapshot{Title: "x"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, entry.VersionNumber)
	repo.AssertExpectations(t)
}

func TestRecordVersion_StoreErrorNotRetried(t *testing.T) {
	repo := new(mockVersionRepo)
	svc := NewVersionService(repo, nil, DefaultVersionOptions())

	storeErr := common.StoreError("append version", fmt.Errorf("connection refused"))
	repo.On("LatestNumber", mock.Anything, "c1").Return(1, nil)
	repo.On("Append", mock.Anything, mock.Anything).Return(storeErr)

	_, err := svc.RecordVersion(context.Background(), "c1", domain.Snapshot{}, "alice")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	repo.AssertNumberOfCalls(t, "Append", 1)
}

func TestRecordVersion_MonotonicUnderConcurrency(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// losers may exhaust their budget; the numbers that land must stay dense
			_, _ = f.versions.RecordVersion(ctx, id, domain.Snapshot{Title: fmt.Sprintf("t%d", i)}, "alice")
		}()
	}
	wg.Wait()

	versions, meta, err := f.versions.ListVersions(ctx, id, 100, 0)
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, meta.Total, int64(len(versions)))
	for i, v := range versions {
		assert.Equal(t, len(versions)-i, v.VersionNumber)
	}

	content, err := f.contents.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, versions[0].VersionNumber, content.CurrentVersionNumber)
	assert.Equal(t, versions[0].Title, content.Title)
}

func TestListVersions_ClampsPaging(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 3)

	versions, meta, err := f.versions.ListVersions(context.Background(), id, 1000, -5)
	require.NoError(t, err)
	assert.Equal(t, 100, meta.Limit, "over max is capped, not reset")
	assert.Equal(t, 0, meta.Offset)
	assert.Equal(t, int64(3), meta.Total)
	assert.Len(t, versions, 3)

	_, meta, err = f.versions.ListVersions(context.Background(), id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, meta.Limit)

	_, _, err = f.versions.ListVersions(context.Background(), "missing", 10, 0)
	assert.ErrorIs(t, err, common.ErrContentNotFound)
}

func TestGetVersion_InvalidNumber(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)

	_, err := f.versions.GetVersion(context.Background(), id, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = f.versions.GetVersion(context.Background(), id, 7)
	assert.ErrorIs(t, err, common.ErrVersionNotFound)
}

func TestRestoreVersion_AppendsExactCopy(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 5)
	ctx := context.Background()

	before, _, err := f.versions.ListVersions(ctx, id, 100, 0)
	require.NoError(t, err)

	restored, err := f.versions.RestoreVersion(ctx, id, 2, "bob")
	require.NoError(t, err)
	assert.Equal(t, 6, restored.VersionNumber)
	require.NotNil(t, restored.RestoredFrom)
	assert.Equal(t, 2, *restored.RestoredFrom)

	v2, err := f.versions.GetVersion(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, v2.Snapshot, restored.Snapshot)

	after, _, err := f.versions.ListVersions(ctx, id, 100, 0)
	require.NoError(t, err)
	require.Len(t, after, 6)
	assert.Equal(t, before, after[1:], "earlier versions must be untouched")

	content, err := f.contents.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, content.CurrentVersionNumber)
	assert.Equal(t, v2.Title, content.Title)
}

func TestCompareVersions(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 1)
	ctx := context.Background()

	_, err := f.versions.RecordVersion(ctx, id, domain.Snapshot{
		Title:   "Title 1",
		Body:    "line a\nline c\nline d",
		Excerpt: "new excerpt",
	}, "bob")
	require.NoError(t, err)

	cmp, err := f.versions.CompareVersions(ctx, id, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.FieldBody, domain.FieldExcerpt}, cmp.ChangedFields)
	require.Len(t, cmp.Fields, 3)

	body := cmp.Fields[1]
	assert.Equal(t, domain.FieldBody, body.Field)
	assert.Equal(t, 2, body.Added)
	assert.Equal(t, 1, body.Removed)

	excerpt := cmp.Fields[2]
	assert.Equal(t, "excerpt", excerpt.From)
	assert.Equal(t, "new excerpt", excerpt.To)

	_, err = f.versions.CompareVersions(ctx, id, 1, 9)
	assert.ErrorIs(t, err, common.ErrVersionNotFound)
}

func TestCleanupOldVersions_Retention(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 6)
	ctx := context.Background()

	deleted, err := f.versions.CleanupOldVersions(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	versions, _, err := f.versions.ListVersions(ctx, id, 100, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 6, versions[0].VersionNumber)
	assert.Equal(t, 5, versions[1].VersionNumber)

	// numbering continues after pruning
	next, err := f.versions.RecordVersion(ctx, id, domain.Snapshot{Title: "next"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, next.VersionNumber)
}

func TestCleanupOldVersions_KeepsRestoreSourcesAndCurrent(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 4)
	ctx := context.Background()

	_, err := f.versions.RestoreVersion(ctx, id, 1, "alice")
	require.NoError(t, err)

	deleted, err := f.versions.CleanupOldVersions(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = f.versions.GetVersion(ctx, id, 1)
	assert.NoError(t, err, "restore source survives")
	_, err = f.versions.GetVersion(ctx, id, 5)
	assert.NoError(t, err, "current survives")
}

func TestCleanupOldVersions_FewerThanKeep(t *testing.T) {
	f := newCollabFixture(t)
	id := f.createContent(t, 2)

	deleted, err := f.versions.CleanupOldVersions(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupAll(t *testing.T) {
	f := newCollabFixture(t)
	a := f.createContent(t, 5)
	b := f.createContent(t, 2)
	ctx := context.Background()

	deleted, err := f.versions.CleanupAll(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, meta, err := f.versions.ListVersions(ctx, a, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Total)
	_, meta, err = f.versions.ListVersions(ctx, b, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Total)
}
