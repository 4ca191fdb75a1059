// Package mailer delivers transactional email over SMTP.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"
)

// Mailer sends a plain-text message to a single recipient.
// Delivery failures are returned to the caller, never swallowed.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTP sends mail through a single SMTP relay.
type SMTP struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (m *SMTP) Send(to, subject, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.From, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Log writes messages to the process log instead of delivering them.
// Used in development when no SMTP host is configured.
type Log struct{}

func (Log) Send(to, subject, body string) error {
	log.Printf("mail (not sent) to=%s subject=%q\n%s", to, subject, body)
	return nil
}
