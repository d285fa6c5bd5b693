package config

import (
	"context"
	"strings"
	"testing"
)

func TestNewMailerSelectsProvider(t *testing.T) {
	if _, ok := NewMailer(&Settings{MailProvider: "console"}).(ConsoleMailer); !ok {
		t.Fatalf("expected console mailer")
	}
	if _, ok := NewMailer(&Settings{MailProvider: "sendgrid", AppName: "PR"}).(*SendGridMailer); !ok {
		t.Fatalf("expected sendgrid mailer")
	}
	if _, ok := NewMailer(&Settings{}).(*SMTPMailer); !ok {
		t.Fatalf("expected smtp mailer by default")
	}
}

func TestSMTPMailerRequiresHost(t *testing.T) {
	m := NewSMTPMailer(&Settings{MailFrom: "x@example.org"})
	err := m.Send(context.Background(), []string{"a@example.org"}, "s", "<p>b</p>")
	if err == nil || !strings.Contains(err.Error(), "smtp not configured") {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := m.Send(context.Background(), nil, "s", "b"); err != nil {
		t.Fatalf("empty recipient list must be a no-op, got %v", err)
	}
}

func TestSendGridPrepareAddsPrefix(t *testing.T) {
	m := NewSendGridMailer("key", "Peer Review", "no-reply@example.org")
	msg := m.prepare([]string{"a@example.org", "b@example.org"}, "Hello", "<p>hi</p>")
	if len(msg.Personalizations) != 1 || len(msg.Personalizations[0].To) != 2 {
		t.Fatalf("unexpected personalizations %+v", msg.Personalizations)
	}
	if msg.Personalizations[0].Subject != "[Peer Review] Hello" {
		t.Fatalf("unexpected subject %q", msg.Personalizations[0].Subject)
	}
}
