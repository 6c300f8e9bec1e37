// Package notify sends transactional email for domain events.
//
// TicketNotifier subscribes to ticket.purchased and mails the buyer a
// confirmation. Delivery goes through a Mailer: MailerSend when an API key is
// configured, otherwise LogMailer, which only writes the message to the log.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailersend/mailersend-go"
)

// Email is one outbound message
type Email struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers an Email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// MailerSend delivers email through the MailerSend API
type MailerSend struct {
	client    *mailersend.Mailersend
	fromEmail string
	fromName  string
	timeout   time.Duration
}

// NewMailerSend creates a MailerSend mailer
func NewMailerSend(apiKey, fromEmail, fromName string) *MailerSend {
	return &MailerSend{
		client:    mailersend.NewMailersend(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		timeout:   10 * time.Second,
	}
}

// Send implements Mailer
func (m *MailerSend) Send(ctx context.Context, email Email) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.fromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: email.ToName, Email: email.To}})
	message.SetSubject(email.Subject)
	message.SetText(email.Text)
	if email.HTML != "" {
		message.SetHTML(email.HTML)
	}

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	slog.Info("email sent",
		slog.String("to", email.To),
		slog.String("message_id", res.Header.Get("X-Message-Id")),
	)
	return nil
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer
func (m *LogMailer) Send(ctx context.Context, email Email) error {
	m.logger.InfoContext(ctx, "email not sent (mail disabled)",
		slog.String("to", email.To),
		slog.String("subject", email.Subject),
	)
	return nil
}
