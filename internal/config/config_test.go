package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  chat_id: 42
logging:
  console: true
storage:
  path: ./habitd.db
backend:
  timezone: UTC
notifier:
  enabled: true
  retry_base: 500ms
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("chat_id = %d, want 42", cfg.Telegram.ChatID)
	}
	if cfg.Backend.Timezone != "UTC" {
		t.Fatalf("timezone = %q", cfg.Backend.Timezone)
	}
	if cfg.Notifier == nil || !cfg.Notifier.Enabled {
		t.Fatal("notifier section not decoded")
	}
	if m.Get() != cfg {
		t.Fatal("Get() should return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"123:abc","chat_id":7},"logging":{"console":true},"storage":{"path":"./x.db"}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChatID != 7 {
		t.Fatalf("chat_id = %d, want 7", cfg.Telegram.ChatID)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing token", cfg: Config{Telegram: TelegramConfig{ChatID: 1}, Storage: StorageConfig{Path: "x"}}},
		{name: "missing chat id", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Storage: StorageConfig{Path: "x"}}},
		{name: "missing storage path", cfg: Config{Telegram: TelegramConfig{Token: "t", ChatID: 1}}},
		{name: "bad duration", cfg: Config{
			Telegram: TelegramConfig{Token: "t", ChatID: 1, PollTimeout: "fast"},
			Storage:  StorageConfig{Path: "x"},
		}},
		{name: "bad timezone", cfg: Config{
			Telegram: TelegramConfig{Token: "t", ChatID: 1},
			Storage:  StorageConfig{Path: "x"},
			Backend:  BackendConfig{Timezone: "Mars/Olympus"},
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", "2h30m")
	if err != nil {
		t.Fatalf("ParseDurationField: %v", err)
	}
	if d != 2*time.Hour+30*time.Minute {
		t.Fatalf("d = %v", d)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if d, err := ParseDurationField("x", " "); err != nil || d != 0 {
		t.Fatalf("blank should be zero, got %v %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default not applied: %v %v", d, err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"t","chat_id":1},"logging":{"console":true},"storage":{"path":"x"}} {"extra":1}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
