package notifier

import (
	"errors"
	"time"
)

// Config controls the async delivery pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	HistorySize     int
}

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type HistoryItem struct {
	At   time.Time
	Text string
	OK   bool
}

// DeliveryEvent is emitted on the event bus for delivery lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type DeliveryEvent struct {
	NotificationID int64     `json:"notification_id"`
	ChatID         int64     `json:"chat_id"`
	At             time.Time `json:"at"`
	Attempts       int       `json:"attempts,omitempty"`
	Error          string    `json:"error,omitempty"`
}
