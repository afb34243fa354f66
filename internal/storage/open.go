package storage

import (
	"context"

	"habitd/internal/habit"
	"habitd/pkg/logx"
)

// Store is the persistence API used by the bot, the notification backend
// and the notifier.
type Store interface {
	PutHabit(ctx context.Context, h habit.Habit) (int64, error)
	GetHabit(ctx context.Context, id int64) (habit.Habit, bool, error)
	ListHabits(ctx context.Context) ([]habit.Habit, error)
	DeleteHabit(ctx context.Context, id int64) error
	DeleteAllHabits(ctx context.Context) error

	UpsertNotification(ctx context.Context, e NotificationEntry) error
	DeleteNotification(ctx context.Context, id int64) error
	DeleteAllNotifications(ctx context.Context) error
	ListNotifications(ctx context.Context) ([]NotificationEntry, error)

	AppendDelivery(ctx context.Context, d DeliveryEntry) error

	Close() error
}

// Open initializes the sqlite store at cfg.Path.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
