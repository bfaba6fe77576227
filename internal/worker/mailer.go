package worker

import (
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/arena-sports/backend/config"
)

// ErrMailerNotConfigured is returned when SMTP settings are absent. Jobs hit
// retries and land in the DLQ rather than being silently dropped.
var ErrMailerNotConfigured = errors.New("smtp is not configured")

// Mailer sends a single email.
type Mailer interface {
	Send(to, subject, bodyText, bodyHTML string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.EmailConfig
}

// NewSMTPMailer creates a mailer from SMTP settings.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message. When bodyHTML is non-empty the message is sent
// as multipart/alternative with the text part first.
func (m *SMTPMailer) Send(to, subject, bodyText, bodyHTML string) error {
	if m.cfg.SMTPHost == "" {
		return ErrMailerNotConfigured
	}

	from := m.cfg.FromAddress
	msg := buildMessage(from, m.cfg.FromName, to, subject, bodyText, bodyHTML)

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, fromName, to, subject, bodyText, bodyHTML string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if bodyHTML == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(bodyText)
		return []byte(b.String())
	}

	const boundary = "arena-mail-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, bodyText)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, bodyHTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
