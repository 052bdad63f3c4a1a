// Package mailer delivers contact form messages to the library's editors.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/bodhini-dev/mediadmin/internal/config"
)

// Contact is one contact form submission
type Contact struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Mailer sends contact messages
type Mailer interface {
	SendContact(ctx context.Context, msg Contact) error
}

// New returns an SMTP mailer when SMTP_HOST is set, and one that only logs
// messages otherwise
func New(cfg config.MailConfig, logger zerolog.Logger) Mailer {
	if !cfg.Enabled() {
		return &LogMailer{logger: logger}
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// SMTPMailer sends each message over its own SMTP connection
type SMTPMailer struct {
	cfg    config.MailConfig
	logger zerolog.Logger
}

func (m *SMTPMailer) SendContact(ctx context.Context, msg Contact) error {
	message, err := buildMessage(m.cfg.From, m.cfg.ContactTo, msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("failed to send contact message: %w", err)
	}

	m.logger.Info().
		Str("to", m.cfg.ContactTo).
		Str("reply_to", msg.Email).
		Msg("Contact message sent")
	return nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSPolicy(tlsPolicy(m.cfg.SMTPTLS)),
	}
	if m.cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUsername),
			mail.WithPassword(m.cfg.SMTPPassword),
		)
	}
	return opts
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// buildMessage addresses the message to the editors with the sender as Reply-To
func buildMessage(from, to string, msg Contact) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := m.ReplyTo(msg.Email); err != nil {
		return nil, fmt.Errorf("invalid reply address %q: %w", msg.Email, err)
	}
	m.Subject(Subject(msg))
	m.SetBodyString(mail.TypeTextPlain, Body(msg))
	return m, nil
}

// Subject is the mail subject line for msg
func Subject(msg Contact) string {
	return fmt.Sprintf("Contact form: %s from %s", msg.Subject, msg.Name)
}

// Body is the plain text mail body for msg
func Body(msg Contact) string {
	return fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s", msg.Name, msg.Email, msg.Message)
}

// LogMailer writes messages to the log, for deployments without SMTP
type LogMailer struct {
	logger zerolog.Logger
}

func (m *LogMailer) SendContact(_ context.Context, msg Contact) error {
	m.logger.Warn().
		Str("subject", Subject(msg)).
		Str("reply_to", msg.Email).
		Str("body", Body(msg)).
		Msg("SMTP_HOST not set - contact message logged only")
	return nil
}
