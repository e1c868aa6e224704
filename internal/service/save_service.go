package service

import (
	"context"
	"errors"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/pkg/logger"
)

// SaveCoordinator is the write path editors call. It checks the lock, then
// conflicts, then appends the version.
type SaveCoordinator interface {
	SaveContent(ctx context.Context, contentID, actorID string, proposed domain.Snapshot, baseVersion int, force bool) (*domain.ContentVersion, error)
	// RestoreContent appends a copy of version number, refused while another
	// editor holds a live lock
	RestoreContent(ctx context.Context, contentID string, number int, actorID string) (*domain.ContentVersion, error)
}

// saveAttempts bounds how often a save is re-checked after another writer
// commits between its conflict check and its write
const saveAttempts = 3

type saveCoordinator struct {
	locks     LockService
	versions  VersionService
	conflicts ConflictDetector
	events    EventPublisher
}

// NewSaveCoordinator creates a new SaveCoordinator. events may be nil.
func NewSaveCoordinator(locks LockService, versions VersionService, conflicts ConflictDetector, events EventPublisher) SaveCoordinator {
	return &saveCoordinator{locks: locks, versions: versions, conflicts: conflicts, events: publisherOrNoop(events)}
}

// SaveContent writes only at the version number its conflict check saw. When
// that number is taken the lock and conflicts are checked again from baseVersion.
func (s *saveCoordinator) SaveContent(ctx context.Context, contentID, actorID string, proposed domain.Snapshot, baseVersion int, force bool) (*domain.ContentVersion, error) {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if _, err := s.locks.RequireHolder(ctx, contentID, actorID); err != nil {
			saveResultsTotal.WithLabelValues("lock_required").Inc()
			return nil, err
		}

		report, err := s.conflicts.DetectConflicts(ctx, contentID, proposed, baseVersion)
		if err != nil {
			saveResultsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if report.HasConflict && !force {
			saveResultsTotal.WithLabelValues("conflict").Inc()
			return nil, &common.VersionConflictError{Report: report}
		}

		entry := &domain.ContentVersion{
			ContentID:     contentID,
			VersionNumber: report.LatestVersion + 1,
			Snapshot:      proposed,
			AuthorID:      actorID,
		}
		err = s.versions.AppendVersion(ctx, entry)
		if errors.Is(err, repository.ErrVersionTaken) {
			s.lostRace(contentID, entry.VersionNumber, attempt)
			continue
		}
		if err != nil {
			saveResultsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		result := "ok"
		if report.HasConflict {
			result = "forced"
			logger.WithComponent("save").Warn().
				Str("content_id", contentID).
				Str("actor", actorID).
				Strs("fields", report.ConflictingFields).
				Int("version", entry.VersionNumber).
				Msg("conflicting save forced")
		}
		saveResultsTotal.WithLabelValues(result).Inc()

		s.touch(ctx, contentID, actorID)
		s.publish(domain.EventVersionSaved, entry)
		return entry, nil
	}

	saveResultsTotal.WithLabelValues("contention").Inc()
	return nil, common.ErrRaceRetryExhausted
}

func (s *saveCoordinator) RestoreContent(ctx context.Context, contentID string, number int, actorID string) (*domain.ContentVersion, error) {
	source, err := s.versions.GetVersion(ctx, contentID, number)
	if err != nil {
		return nil, err
	}
	restoredFrom := source.VersionNumber

	for attempt := 1; attempt <= saveAttempts; attempt++ {
		lock, err := s.locks.GetLock(ctx, contentID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if lock != nil && lock.HolderID != actorID {
			return nil, &common.LockConflictError{Holder: lock.HolderID, ExpiresAt: lock.ExpiresAt}
		}

		latest, err := s.versions.LatestNumber(ctx, contentID)
		if err != nil {
			return nil, err
		}
		entry := &domain.ContentVersion{
			ContentID:     contentID,
			VersionNumber: latest + 1,
			Snapshot:      source.Snapshot,
			AuthorID:      actorID,
			RestoredFrom:  &restoredFrom,
		}
		err = s.versions.AppendVersion(ctx, entry)
		if errors.Is(err, repository.ErrVersionTaken) {
			s.lostRace(contentID, entry.VersionNumber, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.WithComponent("save").Info().
			Str("content_id", contentID).
			Int("restored_from", restoredFrom).
			Int("version", entry.VersionNumber).
			Str("actor", actorID).
			Msg("version restored")
		if lock != nil {
			s.touch(ctx, contentID, actorID)
		}
		s.publish(domain.EventVersionRestored, entry)
		return entry, nil
	}

	return nil, common.ErrRaceRetryExhausted
}

func (s *saveCoordinator) lostRace(contentID string, number, attempt int) {
	versionRaceRetriesTotal.Inc()
	logger.WithComponent("save").Debug().
		Str("content_id", contentID).
		Int("version", number).
		Int("attempt", attempt).
		Msg("version number taken, re-checking")
}

func (s *saveCoordinator) publish(typ domain.EditEventType, entry *domain.ContentVersion) {
	s.events.Publish(&domain.EditEvent{
		Type:          typ,
		ContentID:     entry.ContentID,
		ActorID:       entry.AuthorID,
		VersionNumber: entry.VersionNumber,
		OccurredAt:    entry.CreatedAt,
	})
}

// touch refreshes lock activity; the write already committed, so a failure
// here is only logged
func (s *saveCoordinator) touch(ctx context.Context, contentID, actorID string) {
	if err := s.locks.TouchActivity(ctx, contentID, actorID); err != nil {
		logger.WithComponent("save").Warn().
			Err(err).
			Str("content_id", contentID).
			Str("actor", actorID).
			Msg("lock activity refresh failed")
	}
}
