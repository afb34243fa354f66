package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// NotificationEntry is one scheduled entry owned by the notification
// backend. Keep it compact and schema-stable: entries are rebuilt into
// live cron entries/timers on every start.
type NotificationEntry struct {
	ID        int64
	Title     string
	Body      string
	FireAt    time.Time
	Repeat    int // reminder.Repeat numeric value
	Payload   []byte
	CreatedAt time.Time
}

// DeliveryEntry records one delivery attempt.
type DeliveryEntry struct {
	AttemptID      string // uuid
	NotificationID int64
	At             time.Time
	OK             bool
	Error          string
}
