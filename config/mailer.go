package config

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"
)

// Mailer delivers one HTML message to a list of recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// NewMailer picks the delivery backend named by MAIL_PROVIDER.
func NewMailer(s *Settings) Mailer {
	switch s.MailProvider {
	case "sendgrid":
		return NewSendGridMailer(s.SendGridAPIKey, s.AppName, s.MailFrom)
	case "console":
		return ConsoleMailer{}
	default:
		return NewSMTPMailer(s)
	}
}

type SMTPMailer struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
}

func NewSMTPMailer(s *Settings) *SMTPMailer {
	port := s.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		host:          s.SMTPHost,
		port:          port,
		user:          s.SMTPUser,
		pass:          s.SMTPPass,
		from:          s.MailFrom, // e.g. "Peer Review <no-reply@your.org>"
		skipTLSVerify: s.SMTPSkipTLSVerify,
	}
}

func (m *SMTPMailer) Send(_ context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if m.host == "" || m.from == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := mail.NewDialer(m.host, m.port, m.user, m.pass)

	// STARTTLS is mandatory on 587 (Gmail, Office365)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.host,
		InsecureSkipVerify: m.skipTLSVerify, // dev only
	}

	return d.DialAndSend(msg)
}

// ConsoleMailer logs messages instead of sending them.
type ConsoleMailer struct{}

func (ConsoleMailer) Send(_ context.Context, to []string, subject, html string) error {
	logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"bytes":   len(html),
	}).Info("console mailer: message not delivered")
	return nil
}
