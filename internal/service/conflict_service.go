package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/domain"
	"github.com/damoang/angple-collab/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ConflictDetector compares a proposed edit with the history since its base version
type ConflictDetector interface {
	DetectConflicts(ctx context.Context, contentID string, proposed domain.Snapshot, baseVersion int) (*domain.ConflictReport, error)
}

type conflictDetector struct {
	versions repository.VersionReader
}

// NewConflictDetector creates a read-only ConflictDetector
func NewConflictDetector(versions repository.VersionReader) ConflictDetector {
	return &conflictDetector{versions: versions}
}

func (d *conflictDetector) DetectConflicts(ctx context.Context, contentID string, proposed domain.Snapshot, baseVersion int) (*domain.ConflictReport, error) {
	latest, err := d.versions.LatestNumber(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if baseVersion < 1 || baseVersion > latest {
		return nil, fmt.Errorf("%w: base_version %d outside 1..%d", common.ErrInvalidInput, baseVersion, latest)
	}

	report := &domain.ConflictReport{
		ContentID:         contentID,
		BaseVersion:       baseVersion,
		LatestVersion:     latest,
		ConflictingFields: []string{},
		ServerChanges:     []domain.FieldChange{},
		LocalChanges:      []domain.FieldChange{},
	}
	if baseVersion == latest {
		return report, nil
	}

	var base, head *domain.ContentVersion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := d.versions.FindByNumber(gctx, contentID, baseVersion)
		if errors.Is(err, common.ErrNotFound) {
			// pruned by retention
			return nil
		}
		base = v
		return err
	})
	g.Go(func() error {
		v, err := d.versions.FindByNumber(gctx, contentID, latest)
		head = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if base == nil {
		compareWithoutBase(report, head.Snapshot, proposed)
	} else {
		compareThreeWay(report, base.Snapshot, head.Snapshot, proposed)
	}

	report.HasConflict = len(report.ConflictingFields) > 0
	if report.HasConflict {
		conflictsDetectedTotal.Inc()
	}
	return report, nil
}

// compareThreeWay classifies each field as server-only, local-only or
// conflicting. Both sides converging on the same value is not reported.
func compareThreeWay(report *domain.ConflictReport, base, server, local domain.Snapshot) {
	for _, field := range domain.Fields {
		b, s, l := base.Field(field), server.Field(field), local.Field(field)
		serverChanged := s != b
		localChanged := l != b

		switch {
		case serverChanged && localChanged && s != l:
			report.ConflictingFields = append(report.ConflictingFields, field)
			report.Conflicts = append(report.Conflicts, domain.FieldConflict{Field: field, Base: b, Server: s, Local: l})
		case serverChanged && !localChanged:
			report.ServerChanges = append(report.ServerChanges, domain.FieldChange{Field: field, From: b, To: s})
		case localChanged && !serverChanged:
			report.LocalChanges = append(report.LocalChanges, domain.FieldChange{Field: field, From: b, To: l})
		}
	}
}

// compareWithoutBase treats every field that differs from the latest
// snapshot as conflicting, since one-sided changes cannot be told apart.
func compareWithoutBase(report *domain.ConflictReport, server, local domain.Snapshot) {
	report.BaseMissing = true
	for _, field := range domain.Fields {
		s, l := server.Field(field), local.Field(field)
		if s != l {
			report.ConflictingFields = append(report.ConflictingFields, field)
			report.Conflicts = append(report.Conflicts, domain.FieldConflict{Field: field, Server: s, Local: l})
		}
	}
}
