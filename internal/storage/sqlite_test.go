package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"habitd/internal/habit"
	"habitd/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "habitd.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestHabitRoundtrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	h := habit.Habit{
		Name: "Read",
		Rule: habit.Rule{Kind: habit.RuleWeekly, Weekdays: []int{1, 3, 5}, Hour: 8, Minute: 30},
	}
	id, err := st.PutHabit(ctx, h)
	if err != nil {
		t.Fatalf("PutHabit: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}

	got, ok, err := st.GetHabit(ctx, id)
	if err != nil || !ok {
		t.Fatalf("GetHabit: ok=%v err=%v", ok, err)
	}
	if got.Name != "Read" || got.Rule.Kind != habit.RuleWeekly {
		t.Fatalf("got %+v", got)
	}
	if len(got.Rule.Weekdays) != 3 || got.Rule.Weekdays[1] != 3 {
		t.Fatalf("weekdays = %v", got.Rule.Weekdays)
	}
	if got.Rule.Hour != 8 || got.Rule.Minute != 30 {
		t.Fatalf("time = %02d:%02d", got.Rule.Hour, got.Rule.Minute)
	}
}

func TestHabitIDsAreSequential(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 3; i++ {
		id, err := st.PutHabit(ctx, habit.Habit{
			Name: "h",
			Rule: habit.Rule{Kind: habit.RuleWeekly, Weekdays: []int{1}, Hour: 1},
		})
		if err != nil {
			t.Fatalf("PutHabit: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not increasing past %d", id, prev)
		}
		prev = id
	}
}

func TestGetHabitMissing(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	_, ok, err := st.GetHabit(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetHabit: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing habit")
	}
}

func TestSingleRuleRoundtrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	id, err := st.PutHabit(ctx, habit.Habit{Name: "Dentist", Rule: habit.Rule{Kind: habit.RuleSingle, At: at}})
	if err != nil {
		t.Fatalf("PutHabit: %v", err)
	}
	got, ok, err := st.GetHabit(ctx, id)
	if err != nil || !ok {
		t.Fatalf("GetHabit: ok=%v err=%v", ok, err)
	}
	if !got.Rule.At.Equal(at) {
		t.Fatalf("at = %v, want %v", got.Rule.At, at)
	}
}

func TestNotificationUpsertAndList(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	e := NotificationEntry{
		ID:     53,
		Title:  "Habit Reminder",
		Body:   "It's time for your habit: Read",
		FireAt: time.Date(2025, 1, 8, 8, 30, 0, 0, time.UTC),
		Repeat: 2,
	}
	if err := st.UpsertNotification(ctx, e); err != nil {
		t.Fatalf("UpsertNotification: %v", err)
	}
	// Same id again: replace, not duplicate.
	e.Body = "updated"
	if err := st.UpsertNotification(ctx, e); err != nil {
		t.Fatalf("UpsertNotification (replace): %v", err)
	}

	list, err := st.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].Body != "updated" {
		t.Fatalf("body = %q, want replaced value", list[0].Body)
	}
	if !list[0].FireAt.Equal(e.FireAt) {
		t.Fatalf("fire at = %v, want %v", list[0].FireAt, e.FireAt)
	}

	if err := st.DeleteNotification(ctx, 53); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}
	list, err = st.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("len after delete = %d, want 0", len(list))
	}
}

func TestDeleteAllNotifications(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{51, 52, 53} {
		if err := st.UpsertNotification(ctx, NotificationEntry{ID: id, Title: "t", Body: "b", FireAt: time.Now(), Repeat: 2}); err != nil {
			t.Fatalf("UpsertNotification(%d): %v", id, err)
		}
	}
	if err := st.DeleteAllNotifications(ctx); err != nil {
		t.Fatalf("DeleteAllNotifications: %v", err)
	}
	list, err := st.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("len = %d, want 0", len(list))
	}
}

func TestAppendDelivery(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	d := DeliveryEntry{
		AttemptID:      uuid.NewString(),
		NotificationID: 51,
		OK:             false,
		Error:          "chat unreachable",
	}
	if err := st.AppendDelivery(context.Background(), d); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}
}
