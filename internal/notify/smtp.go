package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

var errSMTPNotConfigured = errors.New("smtp relay not configured")

// SMTPAdapter delivers email through a plain SMTP relay.
type SMTPAdapter struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (a *SMTPAdapter) Name() string { return "smtp" }

func (a *SMTPAdapter) Send(ctx context.Context, recipient, subject, body string) (bool, error) {
	if a.Host == "" || a.From == "" {
		return false, errSMTPNotConfigured
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", a.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if a.Username != "" {
		auth = smtp.PlainAuth("", a.Username, a.Password, a.Host)
	}

	addr := a.Host + ":" + a.Port
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, a.From, []string{recipient}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
