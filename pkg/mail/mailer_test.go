package mail

import (
	"context"
	"strings"
	"testing"
)

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
	})
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("expected host validation error, got %v", err)
	}

	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("expected disabled configuration to succeed: %v", err)
	}

	if mailer == nil {
		t.Fatal("expected mailer to be returned")
	}
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"test@example.com"},
		Subject: "Test",
		Body:    "Hello",
	})
	if err != ErrSMTPDisabled {
		t.Fatalf("expected ErrSMTPDisabled, got %v", err)
	}
}

func TestFormatMessage(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, "Invitation", "Body")
	if !strings.Contains(content, "From: from@example.com") {
		t.Fatalf("expected from header, got %q", content)
	}
	if !strings.Contains(content, "To: to@example.com") {
		t.Fatalf("expected to header, got %q", content)
	}
	if !strings.Contains(content, "Subject: Invitation") {
		t.Fatalf("expected subject header, got %q", content)
	}
	if !strings.Contains(content, "\r\n\r\nBody") {
		t.Fatalf("expected body after blank line, got %q", content)
	}
}

func TestUniqueAddresses(t *testing.T) {
	out := uniqueAddresses([]string{"A@example.com", "a@example.com", " ", "b@example.com"})
	if len(out) != 2 {
		t.Fatalf("expected 2 unique addresses, got %d", len(out))
	}
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
		UseTLS:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	sm, ok := mailer.(*smtpMailer)
	if !ok {
		t.Fatal("expected smtpMailer type")
	}

	if sm.cfg.Timeout <= 0 {
		t.Fatal("expected timeout to be assigned")
	}
}
