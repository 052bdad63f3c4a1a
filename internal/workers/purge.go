package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/bodhini-dev/mediadmin/internal/storage"
	"github.com/bodhini-dev/mediadmin/internal/tasks"
)

// Purger removes the stored files of deleted media
type Purger interface {
	Purge(ctx context.Context, fileKey string) error
}

// NewPurger enqueues purges when a task queue is available and deletes
// files inline otherwise
func NewPurger(client *asynq.Client, store storage.Storage, logger zerolog.Logger) Purger {
	if client == nil {
		return &InlinePurger{store: store, logger: logger}
	}
	return &QueuePurger{client: client, logger: logger}
}

// QueuePurger hands purges to the worker through asynq
type QueuePurger struct {
	client *asynq.Client
	logger zerolog.Logger
}

func (p *QueuePurger) Purge(ctx context.Context, fileKey string) error {
	task, err := tasks.NewPurgeFileTask(fileKey)
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue purge of %s: %w", fileKey, err)
	}
	p.logger.Debug().
		Str("task_id", info.ID).
		Str("file_key", fileKey).
		Msg("Purge task enqueued")
	return nil
}

// InlinePurger deletes files immediately
type InlinePurger struct {
	store  storage.Storage
	logger zerolog.Logger
}

func (p *InlinePurger) Purge(ctx context.Context, fileKey string) error {
	return purgeFile(ctx, p.store, fileKey, p.logger)
}

// HandlePurgeFile processes a media:purge_file task
func HandlePurgeFile(ctx context.Context, t *asynq.Task, store storage.Storage, logger zerolog.Logger) error {
	payload, err := tasks.ParsePurgeFilePayload(t)
	if err != nil {
		// A malformed payload will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return purgeFile(ctx, store, payload.FileKey, logger)
}

func purgeFile(ctx context.Context, store storage.Storage, fileKey string, logger zerolog.Logger) error {
	if err := store.Delete(ctx, fileKey); err != nil {
		logger.Error().Err(err).Str("file_key", fileKey).Msg("Failed to purge media file")
		return err
	}
	logger.Info().Str("file_key", fileKey).Msg("Media file purged")
	return nil
}
