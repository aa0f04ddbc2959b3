package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Telegram: TelegramConfig{
			Token:    "123:abc",
			AdminIDs: []int64{100, 200},
			RunMode:  "longpoll",
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = ""

	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll default", cfg.Telegram.RunMode)
	}
	if cfg.Session.TTLMinutes != 30 {
		t.Fatalf("session ttl = %d, want default 30", cfg.Session.TTLMinutes)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	if err := Normalize(&cfg); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeRejectsInvalidAdminID(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.AdminIDs = []int64{100, -5}
	if err := Normalize(&cfg); err == nil {
		t.Fatal("expected error for negative admin id")
	}
}

func TestNormalizeWebhookRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(&cfg); err == nil {
		t.Fatal("expected error when webhook mode has no url")
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
}

func TestNormalizeBackupValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Backup = BackupConfig{Enabled: true, Token: "ghp_x", Repo: "owner-only"}
	if err := Normalize(&cfg); err == nil || !strings.Contains(err.Error(), "owner/name") {
		t.Fatalf("err = %v, want owner/name complaint", err)
	}

	cfg.Backup.Repo = "mihaja/abobot-data"
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Backup.Branch != "main" {
		t.Fatalf("branch = %q, want main default", cfg.Backup.Branch)
	}
}

func TestIsAdmin(t *testing.T) {
	tg := TelegramConfig{AdminIDs: []int64{100, 200}}
	if !tg.IsAdmin(100) || !tg.IsAdmin(200) {
		t.Fatal("allow-listed ids rejected")
	}
	if tg.IsAdmin(300) {
		t.Fatal("unlisted id accepted")
	}
	var empty TelegramConfig
	if empty.IsAdmin(100) {
		t.Fatal("empty allow-list must deny everyone")
	}
}
