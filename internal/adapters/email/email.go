// Package email sends Alert notifications over SMTP, built directly on
// net/smtp.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers alert notifications as plain-text email via SMTP.
type Sender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

// New constructs a Sender from SMTP connection details.
func New(host string, port int, username, password, from string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{host: host, port: port, username: username, password: password, from: from, timeout: timeout}
}

// Send delivers one message to recipient. ctx's deadline is not honored by
// net/smtp directly; callers enforce the per-channel 10s timeout by calling
// Send from a goroutine bounded by ctx.
func (s *Sender) Send(ctx context.Context, recipient, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	msg := buildMessage(s.from, recipient, subject, body)

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, s.from, []string{recipient}, msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("email: send to %s failed: %w", recipient, err)
		}
		return nil
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
