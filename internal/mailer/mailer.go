// Package mailer sends job notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jobproc/jobproc/internal/jobs"
)

// Config holds SMTP transport coordinates.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends email via a plain-auth SMTP relay.
type Mailer struct {
	config *Config
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer.
func New(config *Config, logger *slog.Logger) *Mailer {
	return &Mailer{
		config: config,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// Send delivers an email. The context bounds the call: a cancelled
// context aborts before dialing.
func (m *Mailer) Send(ctx context.Context, msg jobs.EmailPayload) error {
	if msg.To == "" {
		return fmt.Errorf("email recipient is required")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := append([]string{msg.To}, msg.Cc...)
	recipients = append(recipients, msg.Bcc...)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	m.logger.Info("Sending email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)

	if err := m.send(addr, auth, m.config.From, recipients, m.encode(msg)); err != nil {
		m.logger.Error("Failed to send email",
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	m.logger.Info("Email sent",
		slog.String("to", msg.To),
	)

	return nil
}

// encode assembles the RFC 5322 message. Bcc recipients are passed to
// the transport but never written into headers.
func (m *Mailer) encode(msg jobs.EmailPayload) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.IsHTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return []byte(b.String())
}
