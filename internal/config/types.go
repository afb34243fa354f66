package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is habitd's on-disk configuration. Durations are Go duration
// strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig  `json:"telegram"`
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Backend  BackendConfig   `json:"backend,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID is the chat reminders are delivered to and commands are
	// accepted from.
	ChatID int64 `json:"chat_id"`
	// OwnerUserIDs restricts who may issue commands. Empty allows anyone
	// in the configured chat.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// BackendConfig controls the local notification backend.
type BackendConfig struct {
	// Timezone is an IANA TZ name, e.g. "Asia/Jakarta". Empty means Local.
	Timezone string `json:"timezone,omitempty"`
}

// NotifierConfig controls the async delivery pipeline. If the whole
// section is omitted, the notifier defaults to enabled.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	HistorySize     int    `json:"history_size,omitempty"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	// Surface duration typos at load time rather than on first use.
	durations := map[string]string{
		"telegram.poll_timeout": c.Telegram.PollTimeout,
		"storage.busy_timeout":  c.Storage.BusyTimeout,
	}
	if n := c.Notifier; n != nil {
		durations["notifier.retry_base"] = n.RetryBase
		durations["notifier.retry_max_delay"] = n.RetryMaxDelay
		durations["notifier.dedup_window"] = n.DedupWindow
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if tz := strings.TrimSpace(c.Backend.Timezone); tz != "" {
		if err := checkTimezone(tz); err != nil {
			return fmt.Errorf("backend.timezone: %w", err)
		}
	}
	return nil
}
