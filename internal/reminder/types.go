package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Repeat selects how the backend re-fires a request after the first fire.
type Repeat int

const (
	// RepeatNone fires once at FireAt.
	RepeatNone Repeat = iota
	// RepeatDaily re-fires every day at FireAt's time-of-day.
	RepeatDaily
	// RepeatWeekly re-fires every week on FireAt's weekday and time-of-day.
	RepeatWeekly
)

func (r Repeat) String() string {
	switch r {
	case RepeatNone:
		return "none"
	case RepeatDaily:
		return "daily"
	case RepeatWeekly:
		return "weekly"
	default:
		return "unknown"
	}
}

// Request is an ephemeral, derived value: one concrete ask against the
// notification backend. It is never stored by this package.
type Request struct {
	ID      int64
	Title   string
	Body    string
	FireAt  time.Time
	Repeat  Repeat
	Payload []byte
}

// Backend is the notification delivery service this package schedules
// against. Implementations must treat Cancel of an unknown id as a no-op
// and guarantee at most one delivery attempt per fire.
type Backend interface {
	Schedule(ctx context.Context, req Request) error
	Cancel(ctx context.Context, id int64) error
	CancelAll(ctx context.Context) error
	RequestPermission(ctx context.Context) (bool, error)
}

var (
	// ErrBackendUnavailable means the backend could not be reached or
	// initialized. The scheduler never retries; the caller decides.
	ErrBackendUnavailable = errors.New("notification backend unavailable")
	// ErrScheduleRejected means the backend refused one specific request.
	ErrScheduleRejected = errors.New("schedule rejected by backend")
	// ErrPermissionDenied means notification permission was not granted.
	// Not fatal: scheduling still works, delivery may be suppressed.
	ErrPermissionDenied = errors.New("notification permission denied")
)

// payloadType is echoed back unchanged when the user interacts with a
// delivered notification; consumers dispatch on it.
const payloadType = "habit_reminder"

// Payload is the opaque record attached to every reminder request.
type Payload struct {
	Type    string `json:"type"`
	HabitID int64  `json:"habitId"`
}

func encodePayload(habitID int64) []byte {
	b, _ := json.Marshal(Payload{Type: payloadType, HabitID: habitID})
	return b
}

// DecodePayload parses a payload previously attached by this package.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, err
	}
	if p.Type != payloadType {
		return Payload{}, errors.New("not a habit reminder payload")
	}
	return p, nil
}

// Event is published on the bus for scheduler lifecycle changes.
type Event struct {
	HabitID        int64     `json:"habit_id"`
	NotificationID int64     `json:"notification_id,omitempty"`
	FireAt         time.Time `json:"fire_at,omitempty"`
	Repeat         string    `json:"repeat,omitempty"`
}
