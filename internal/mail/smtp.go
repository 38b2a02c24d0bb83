package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPMailer delivers mail through a plain SMTP relay (Mailpit locally).
type SMTPMailer struct {
	host    string
	port    int
	from    string
	timeout time.Duration
}

// NewSMTPMailer constructs the mailer.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, timeout: 10 * time.Second}
}

// Send delivers one message. The dial is bounded by the configured timeout;
// context cancellation aborts before dialing.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, nil, m.from, []string{to}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send to %s: %w", to, err)
		}
		return nil
	case <-time.After(m.timeout):
		return fmt.Errorf("mail: send to %s: timed out after %s", to, m.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
