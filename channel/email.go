package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// EmailConfig configures the e-mail channel.
type EmailConfig struct {
	APIKey  string
	From    string
	Subject string
}

// Email delivers reminders as plain-text e-mails through Resend. There is no
// pairing step: the session is ready as soon as an API key and sender exist.
type Email struct {
	client  *resend.Client
	from    string
	subject string
	session *Session
	logger  *slog.Logger
}

// NewEmail creates the e-mail channel.
func NewEmail(cfg EmailConfig, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Email{
		from:    cfg.From,
		subject: cfg.Subject,
		session: NewSession(logger),
		logger:  logger,
	}
	if e.subject == "" {
		e.subject = "Recordatorio"
	}
	if cfg.APIKey != "" && cfg.From != "" {
		e.client = resend.NewClient(cfg.APIKey)
		e.session.Ready()
	}
	return e
}

// Session returns the (always ready or always disconnected) session.
func (e *Email) Session() *Session {
	return e.session
}

// IsReady reports whether an API key and sender are configured.
func (e *Email) IsReady() bool {
	return e.client != nil && e.session.IsReady()
}

// Send mails message to address.
func (e *Email) Send(ctx context.Context, address, message string) error {
	if !e.IsReady() {
		return fmt.Errorf("email channel not configured")
	}
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "@") {
		return fmt.Errorf("invalid e-mail address %q", address)
	}

	sent, err := e.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{address},
		Subject: e.subject,
		Text:    message,
	})
	if err != nil {
		e.logger.Error("resend_send_failed", "error", err, "to", address)
		return fmt.Errorf("resend send failed: %w", err)
	}

	e.logger.Info("resend_sent", "message_id", sent.Id, "to", address)
	return nil
}
