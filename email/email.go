// Package email sends account emails over SMTP. It is deliberately
// minimal: two templates, one transport.
package email

import (
	"fmt"
	"net/smtp"
)

type Links struct {
	ActivationURL string
	RecoveryURL   string
}

type Mailer struct {
	from  string
	addr  string
	auth  smtp.Auth
	links Links
}

func New(from, password, host, port string, links Links) *Mailer {
	return &Mailer{
		from:  from,
		addr:  host + ":" + port,
		auth:  smtp.PlainAuth("", from, password, host),
		links: links,
	}
}

func (m *Mailer) SendActivation(to, plaintext string) error {
	subject := "Activate your account"
	body := fmt.Sprintf("Welcome! Activate your account by visiting:\r\n\r\n%s?token=%s\r\n", m.links.ActivationURL, plaintext)
	return m.send(to, subject, body)
}

func (m *Mailer) SendRecovery(to, plaintext string) error {
	subject := "Reset your password"
	body := fmt.Sprintf("A password reset was requested for this address. Reset it by visiting:\r\n\r\n%s?token=%s\r\n\r\nIf this wasn't you, ignore this email.\r\n", m.links.RecoveryURL, plaintext)
	return m.send(to, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}
