package transport

import (
	"context"
	"errors"
)

// Message is one inbound chat message.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type Update struct {
	Message *Message
}

type ChatTarget struct {
	ChatID int64
}

// Notification is one outbound message to deliver.
type Notification struct {
	// NotificationID links the delivery back to a scheduled reminder.
	// Zero for ad-hoc messages (command replies go through SendText directly).
	NotificationID int64
	Target         ChatTarget
	Text           string
}

var ErrNotRunning = errors.New("transport not running")

// Adapter is a chat transport. Start pushes inbound updates to out until
// Stop is called; SendText is safe for concurrent use.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
	SendText(ctx context.Context, to ChatTarget, text string) error
}
