package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/storage"
)

// OrphanGracePeriod protects uploads whose Media row is not committed yet
const OrphanGracePeriod = time.Hour

// SweepOrphans purges stored files that no Media row references. Only
// keys minted by storage.NewKey and older than grace are considered.
func SweepOrphans(ctx context.Context, db *gorm.DB, store storage.Storage, purger Purger, grace time.Duration, logger zerolog.Logger) (int, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	referenced, err := models.ReferencedFileKeys(db)
	if err != nil {
		return 0, fmt.Errorf("failed to load referenced files: %w", err)
	}

	cutoff := time.Now().Add(-grace)
	purged := 0
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		created, ok := storage.KeyTime(key)
		if !ok || created.After(cutoff) {
			continue
		}
		if err := purger.Purge(ctx, key); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		logger.Info().Int("purged", purged).Msg("Orphaned media files purged")
	} else {
		logger.Debug().Int("files", len(keys)).Msg("No orphaned media files")
	}
	return purged, nil
}

// StartOrphanSweeper runs SweepOrphans on schedule until the returned
// cron is stopped
func StartOrphanSweeper(schedule string, db *gorm.DB, store storage.Storage, purger Purger, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := SweepOrphans(ctx, db, store, purger, OrphanGracePeriod, logger); err != nil {
			logger.Error().Err(err).Msg("Orphan sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid orphan sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Orphan sweeper started")
	return c, nil
}
