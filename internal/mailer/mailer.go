// Package mailer delivers verification codes by email over SMTP (implicit
// TLS, port 465 style).
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Sender delivers a verification code to an address. The API surface stays
// an interface so tests and the dev environment can swap in a recorder.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// SMTP sends mail through an SMTPS server.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

const verificationSubject = "Lost & Found verification code"

// SendVerificationCode sends the code with a plain-text body.
func (m *SMTP) SendVerificationCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Your Lost & Found verification code is %s.\r\n"+
			"It is valid for 5 minutes. If you did not request it, ignore this mail.\r\n",
		code)

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + verificationSubject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	dialer := &net.Dialer{}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.Host})
	if err != nil {
		return fmt.Errorf("connecting to smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("starting smtp session: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("writing mail body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing mail body: %w", err)
	}

	return client.Quit()
}
