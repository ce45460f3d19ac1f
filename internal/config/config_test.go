package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("WhisperModel = %q", cfg.WhisperModel)
	}
	if cfg.SheetName != "MeetingRecords" {
		t.Errorf("SheetName = %q", cfg.SheetName)
	}
	if cfg.Notify.EmailEnabled || cfg.Notify.ChatEnabled {
		t.Error("notification channels should default to disabled")
	}
	if !cfg.Notify.NotifyByDefault {
		t.Error("NotifyByDefault should default to true")
	}
	if cfg.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v", cfg.SendTimeout)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENABLE_EMAIL_NOTIFICATIONS", "true")
	t.Setenv("RECIPIENT_EMAILS", "a@example.com, b@example.com")
	t.Setenv("NOTIFY_SEND_TIMEOUT", "10s")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.Notify.EmailEnabled {
		t.Error("EmailEnabled should be true")
	}
	if len(cfg.RecipientEmails) != 2 || cfg.RecipientEmails[1] != "b@example.com" {
		t.Errorf("RecipientEmails = %v", cfg.RecipientEmails)
	}
	if cfg.SendTimeout != 10*time.Second {
		t.Errorf("SendTimeout = %v", cfg.SendTimeout)
	}
}

func TestEmailConfigured(t *testing.T) {
	cfg := Config{SMTPHost: "smtp.example.com", SenderEmail: "x@example.com", SenderPassword: "secret"}
	if !cfg.EmailConfigured() {
		t.Error("expected configured")
	}
	cfg.SenderPassword = ""
	if cfg.EmailConfigured() {
		t.Error("expected not configured without password")
	}
}
