package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/mailer"
	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/tasks"
)

// ContactDelivery mails stored contact messages
type ContactDelivery interface {
	Deliver(ctx context.Context, contactID string) error
}

// NewContactDelivery enqueues deliveries when a task queue is available and
// mails inline otherwise
func NewContactDelivery(client *asynq.Client, db *gorm.DB, m mailer.Mailer, logger zerolog.Logger) ContactDelivery {
	if client == nil {
		return &InlineContactDelivery{db: db, mailer: m, logger: logger}
	}
	return &QueueContactDelivery{client: client, logger: logger}
}

// QueueContactDelivery hands deliveries to the worker through asynq
type QueueContactDelivery struct {
	client *asynq.Client
	logger zerolog.Logger
}

func (d *QueueContactDelivery) Deliver(ctx context.Context, contactID string) error {
	task, err := tasks.NewSendContactTask(contactID)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue contact %s: %w", contactID, err)
	}
	d.logger.Debug().
		Str("task_id", info.ID).
		Str("contact_id", contactID).
		Msg("Contact task enqueued")
	return nil
}

// InlineContactDelivery mails during the request
type InlineContactDelivery struct {
	db     *gorm.DB
	mailer mailer.Mailer
	logger zerolog.Logger
}

func (d *InlineContactDelivery) Deliver(ctx context.Context, contactID string) error {
	return sendContact(ctx, d.db, d.mailer, contactID, d.logger)
}

// HandleSendContact processes a contact:send task
func HandleSendContact(ctx context.Context, t *asynq.Task, db *gorm.DB, m mailer.Mailer, logger zerolog.Logger) error {
	payload, err := tasks.ParseSendContactPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	err = sendContact(ctx, db, m, payload.ContactID, logger)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("contact %s not found: %w", payload.ContactID, asynq.SkipRetry)
	}
	return err
}

// sendContact mails a message once; delivered messages are skipped so a
// retried task does not mail twice
func sendContact(ctx context.Context, db *gorm.DB, m mailer.Mailer, contactID string, logger zerolog.Logger) error {
	var msg models.ContactMessage
	if err := models.FindByID(db.WithContext(ctx), contactID, &msg); err != nil {
		return err
	}
	if msg.SentAt != nil {
		logger.Debug().Str("contact_id", contactID).Msg("Contact message already sent")
		return nil
	}

	err := m.SendContact(ctx, mailer.Contact{
		Name:    msg.Name,
		Email:   msg.Email,
		Subject: msg.Subject,
		Message: msg.Message,
	})
	if err != nil {
		logger.Error().Err(err).Str("contact_id", contactID).Msg("Failed to send contact message")
		return err
	}

	if err := models.MarkContactSent(db.WithContext(ctx), contactID, time.Now()); err != nil {
		logger.Warn().Err(err).Str("contact_id", contactID).Msg("Failed to mark contact message sent")
	}
	return nil
}
