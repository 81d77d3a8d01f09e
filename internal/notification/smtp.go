package notification

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPProvider delivers mail through a plain SMTP relay
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPProvider creates an SMTP-backed email provider
func NewSMTPProvider(host string, port int, username, password string) *SMTPProvider {
	return &SMTPProvider{host: host, port: port, username: username, password: password}
}

// Send delivers a single message. Context cancellation is checked up
// front; net/smtp does not support mid-send cancellation.
func (p *SMTPProvider) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		email.From, email.To, email.Subject, email.Body)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}
	if err := smtp.SendMail(addr, auth, email.From, []string{email.To}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.To, err)
	}
	return nil
}
