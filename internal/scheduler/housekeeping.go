package scheduler

import (
	"context"
	"time"

	"github.com/damoang/angple-collab/internal/service"
	"github.com/damoang/angple-collab/pkg/logger"
)

// HousekeepingConfig controls the storage hygiene tasks
type HousekeepingConfig struct {
	Interval time.Duration
	// RetainVersions is the per-content version retention; 0 disables pruning
	RetainVersions int
	BatchSize      int
}

// RegisterHousekeeping adds expired-lock removal and version retention to s
func RegisterHousekeeping(s *Scheduler, locks service.LockService, versions service.VersionService, cfg HousekeepingConfig) {
	s.Register("expired-locks", cfg.Interval, func(ctx context.Context) error {
		_, err := locks.CleanupExpired(ctx)
		return err
	})

	if cfg.RetainVersions < 1 {
		return
	}
	s.Register("version-retention", cfg.Interval, func(ctx context.Context) error {
		deleted, err := versions.CleanupAll(ctx, cfg.RetainVersions, cfg.BatchSize)
		if deleted > 0 {
			logger.WithComponent("housekeeping").Info().
				Int64("deleted", deleted).
				Int("keep", cfg.RetainVersions).
				Msg("version retention pass")
		}
		return err
	})
}
