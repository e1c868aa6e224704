package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/pkg/logger"
)

// VersionService is the append-only version store of content items
type VersionService interface {
	// RecordVersion appends snapshot as the next version and makes it the
	// content's current state
	RecordVersion(ctx context.Context, contentID string, snapshot domain.Snapshot, authorID string) (*domain.ContentVersion, error)
	// AppendVersion writes entry at exactly entry.VersionNumber. It returns
	// repository.ErrVersionTaken when another writer committed that number first.
	AppendVersion(ctx context.Context, entry *domain.ContentVersion) error
	LatestNumber(ctx context.Context, contentID string) (int, error)
	GetVersion(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error)
	ListVersions(ctx context.Context, contentID string, limit, offset int) ([]*domain.ContentVersion, *common.Meta, error)
	CompareVersions(ctx context.Context, contentID string, v1, v2 int) (*domain.VersionComparison, error)
	// RestoreVersion appends a copy of version number; history is never rewritten
	RestoreVersion(ctx context.Context, contentID string, number int, actorID string) (*domain.ContentVersion, error)
	CleanupOldVersions(ctx context.Context, contentID string, keep int) (int64, error)
	// CleanupAll prunes every content item holding more than keep versions
	CleanupAll(ctx context.Context, keep, batchSize int) (int64, error)
}

// VersionOptions tunes the version store
type VersionOptions struct {
	RetryAttempts int
	DefaultLimit  int
	MaxLimit      int
	// RetryBackoff is the pause before each retry, multiplied by the attempt
	RetryBackoff time.Duration
}

// DefaultVersionOptions returns the production defaults
func DefaultVersionOptions() VersionOptions {
	return VersionOptions{
		RetryAttempts: 3,
		DefaultLimit:  20,
		MaxLimit:      100,
		RetryBackoff:  5 * time.Millisecond,
	}
}

type versionService struct {
	repo  repository.VersionRepository
	clock common.Clock
	opts  VersionOptions
}

// NewVersionService creates a new VersionService
func NewVersionService(repo repository.VersionRepository, clock common.Clock, opts VersionOptions) VersionService {
	if clock == nil {
		clock = common.SystemClock{}
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &versionService{repo: repo, clock: clock, opts: opts}
}

func (s *versionService) RecordVersion(ctx context.Context, contentID string, snapshot domain.Snapshot, authorID string) (*domain.ContentVersion, error) {
	return s.record(ctx, contentID, snapshot, authorID, nil)
}

// record reads the latest number and claims latest+1. A lost race re-reads
// and tries the next number, up to RetryAttempts times.
func (s *versionService) record(ctx context.Context, contentID string, snapshot domain.Snapshot, authorID string, restoredFrom *int) (*domain.ContentVersion, error) {
	log := logger.WithComponent("versions")

	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		latest, err := s.repo.LatestNumber(ctx, contentID)
		if err != nil {
			return nil, err
		}

		entry := &domain.ContentVersion{
			ContentID:     contentID,
			VersionNumber: latest + 1,
			Snapshot:      snapshot,
			AuthorID:      authorID,
			RestoredFrom:  restoredFrom,
		}

		err = s.AppendVersion(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, repository.ErrVersionTaken) {
			return nil, err
		}

		versionRaceRetriesTotal.Inc()
		log.Debug().
			Str("content_id", contentID).
			Int("version", entry.VersionNumber).
			Int("attempt", attempt).
			Msg("version number taken, retrying")

		if attempt < s.opts.RetryAttempts && s.opts.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
			}
		}
	}

	log.Warn().Str("content_id", contentID).Int("attempts", s.opts.RetryAttempts).Msg("version retry budget exhausted")
	return nil, common.ErrRaceRetryExhausted
}

func (s *versionService) AppendVersion(ctx context.Context, entry *domain.ContentVersion) error {
	if entry.VersionNumber < 2 {
		return fmt.Errorf("%w: version %d cannot be appended", common.ErrInvalidInput, entry.VersionNumber)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	return s.repo.Append(ctx, entry)
}

func (s *versionService) LatestNumber(ctx context.Context, contentID string) (int, error) {
	return s.repo.LatestNumber(ctx, contentID)
}

func (s *versionService) GetVersion(ctx context.Context, contentID string, number int) (*domain.ContentVersion, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: version number must be >= 1", common.ErrInvalidInput)
	}
	return s.repo.FindByNumber(ctx, contentID, number)
}

func (s *versionService) ListVersions(ctx context.Context, contentID string, limit, offset int) ([]*domain.ContentVersion, *common.Meta, error) {
	switch {
	case limit < 1:
		limit = s.opts.DefaultLimit
	case limit > s.opts.MaxLimit:
		limit = s.opts.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.repo.LatestNumber(ctx, contentID); err != nil {
		return nil, nil, err
	}

	versions, total, err := s.repo.List(ctx, contentID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	return versions, &common.Meta{Limit: limit, Offset: offset, Total: total}, nil
}

func (s *versionService) CompareVersions(ctx context.Context, contentID string, v1, v2 int) (*domain.VersionComparison, error) {
	from, err := s.GetVersion(ctx, contentID, v1)
	if err != nil {
		return nil, err
	}
	to, err := s.GetVersion(ctx, contentID, v2)
	if err != nil {
		return nil, err
	}

	cmp := &domain.VersionComparison{
		ContentID:     contentID,
		FromVersion:   v1,
		ToVersion:     v2,
		Fields:        make([]domain.FieldComparison, 0, len(domain.Fields)),
		ChangedFields: []string{},
	}
	for _, field := range domain.Fields {
		fc := compareField(field, from.Snapshot, to.Snapshot)
		if fc.Changed {
			cmp.ChangedFields = append(cmp.ChangedFields, field)
		}
		cmp.Fields = append(cmp.Fields, fc)
	}
	return cmp, nil
}

func (s *versionService) RestoreVersion(ctx context.Context, contentID string, number int, actorID string) (*domain.ContentVersion, error) {
	source, err := s.GetVersion(ctx, contentID, number)
	if err != nil {
		return nil, err
	}

	restoredFrom := source.VersionNumber
	entry, err := s.record(ctx, contentID, source.Snapshot, actorID, &restoredFrom)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("versions").Info().
		Str("content_id", contentID).
		Int("restored_from", restoredFrom).
		Int("version", entry.VersionNumber).
		Str("actor", actorID).
		Msg("version restored")
	return entry, nil
}

// CleanupOldVersions deletes versions at or below current-keep. The current
// version and every restore source always survive. keep below 1 is treated as 1.
func (s *versionService) CleanupOldVersions(ctx context.Context, contentID string, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	current, err := s.repo.LatestNumber(ctx, contentID)
	if err != nil {
		return 0, err
	}

	cutoff := current - keep
	if cutoff < 1 {
		return 0, nil
	}

	deleted, err := s.repo.DeleteUpTo(ctx, contentID, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		versionsPrunedTotal.Add(float64(deleted))
		logger.WithComponent("versions").Info().
			Str("content_id", contentID).
			Int("cutoff", cutoff).
			Int64("deleted", deleted).
			Msg("old versions pruned")
	}
	return deleted, nil
}

func (s *versionService) CleanupAll(ctx context.Context, keep, batchSize int) (int64, error) {
	if keep < 1 {
		return 0, nil
	}
	if batchSize < 1 {
		batchSize = 100
	}

	ids, err := s.repo.ContentIDsOver(ctx, keep, batchSize)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := s.CleanupOldVersions(ctx, id, keep)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return total, err
		}
		total += deleted
	}
	return total, nil
}
