package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"habitd/internal/habit"
	"habitd/internal/reminder"
	"habitd/pkg/logx"
)

const defaultPomodoroMinutes = 25

var pomodoroSeq atomic.Int64

// cmdAdd creates a weekly habit: /add <name...> <days> <HH:MM>
func (r *Router) cmdAdd(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return "Usage: /add <name> <days> <HH:MM>\nExample: /add Read mon,wed,fri 08:30"
	}
	name := strings.Join(args[:len(args)-2], " ")
	days, err := habit.ParseWeekdays(args[len(args)-2])
	if err != nil {
		return "Invalid days: " + err.Error()
	}
	hour, minute, err := habit.ParseHHMM(args[len(args)-1])
	if err != nil {
		return "Invalid time: " + err.Error()
	}

	h := habit.Habit{
		Name: name,
		Rule: habit.Rule{Kind: habit.RuleWeekly, Weekdays: days, Hour: hour, Minute: minute},
	}
	if err := h.Validate(); err != nil {
		return "Invalid habit: " + err.Error()
	}
	id, err := r.store.PutHabit(ctx, h)
	if err != nil {
		r.log.Error("habit insert failed", logx.Err(err))
		return "Could not save the habit."
	}
	if err := r.sched.ScheduleRepeating(ctx, id, h.Name, days, hour, minute); err != nil {
		r.log.Error("habit schedule failed", logx.Int64("habit_id", id), logx.Err(err))
		_ = r.store.DeleteHabit(ctx, id)
		return "Could not schedule reminders: " + schedulerErrText(err)
	}
	return fmt.Sprintf("Habit #%d %q scheduled: %s.", id, h.Name, h.Rule.Describe())
}

// cmdAt creates a fixed-time habit: /at <name...> <YYYY-MM-DD> <HH:MM>
func (r *Router) cmdAt(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return "Usage: /at <name> <YYYY-MM-DD> <HH:MM>\nExample: /at Dentist 2025-06-01 09:00"
	}
	name := strings.Join(args[:len(args)-2], " ")
	at, err := time.ParseInLocation("2006-01-02 15:04",
		args[len(args)-2]+" "+args[len(args)-1], time.Local)
	if err != nil {
		return "Invalid date/time: " + err.Error()
	}

	h := habit.Habit{Name: name, Rule: habit.Rule{Kind: habit.RuleSingle, At: at}}
	if err := h.Validate(); err != nil {
		return "Invalid habit: " + err.Error()
	}
	id, err := r.store.PutHabit(ctx, h)
	if err != nil {
		r.log.Error("habit insert failed", logx.Err(err))
		return "Could not save the habit."
	}
	if err := r.sched.ScheduleSingle(ctx, id, h.Name, at); err != nil {
		r.log.Error("habit schedule failed", logx.Int64("habit_id", id), logx.Err(err))
		_ = r.store.DeleteHabit(ctx, id)
		return "Could not schedule the reminder: " + schedulerErrText(err)
	}
	// The reminder repeats daily at this time-of-day; that matches the
	// mobile releases this daemon replaces.
	return fmt.Sprintf("Habit #%d %q scheduled for %s (repeats daily at that time).",
		id, h.Name, at.Format("2006-01-02 15:04"))
}

func (r *Router) cmdList(ctx context.Context) string {
	habits, err := r.store.ListHabits(ctx)
	if err != nil {
		r.log.Error("habit list failed", logx.Err(err))
		return "Could not load habits."
	}
	return formatHabitList(habits)
}

func (r *Router) cmdRemove(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /remove <id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return "Invalid habit id."
	}
	h, ok, err := r.store.GetHabit(ctx, id)
	if err != nil {
		r.log.Error("habit lookup failed", logx.Int64("habit_id", id), logx.Err(err))
		return "Could not look up the habit."
	}
	if !ok {
		return fmt.Sprintf("No habit #%d.", id)
	}
	if err := r.sched.Cancel(ctx, id); err != nil {
		r.log.Error("habit cancel failed", logx.Int64("habit_id", id), logx.Err(err))
		return "Could not cancel reminders: " + schedulerErrText(err)
	}
	if err := r.store.DeleteHabit(ctx, id); err != nil {
		r.log.Error("habit delete failed", logx.Int64("habit_id", id), logx.Err(err))
		return "Reminders cancelled, but the habit could not be deleted."
	}
	return fmt.Sprintf("Habit #%d %q removed.", id, h.Name)
}

func (r *Router) cmdClear(ctx context.Context) string {
	if err := r.sched.CancelAll(ctx); err != nil {
		r.log.Error("cancel all failed", logx.Err(err))
		return "Could not cancel reminders: " + schedulerErrText(err)
	}
	if err := r.store.DeleteAllHabits(ctx); err != nil {
		r.log.Error("habit wipe failed", logx.Err(err))
		return "Reminders cancelled, but habits could not be deleted."
	}
	return "All habits and reminders removed."
}

// cmdPomodoro arms a one-shot session timer: /pomodoro [minutes]
func (r *Router) cmdPomodoro(ctx context.Context, args []string) string {
	minutes := defaultPomodoroMinutes
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 24*60 {
			return "Usage: /pomodoro [minutes]  (1..1440)"
		}
		minutes = n
	}
	fireAt := time.Now().Add(time.Duration(minutes) * time.Minute)
	req := reminder.Request{
		// Negative ids keep session timers outside the habit id space; the
		// sequence keeps timers armed within the same second distinct.
		ID:     -(fireAt.Unix()*1000 + pomodoroSeq.Add(1)%1000),
		Title:  "Pomodoro",
		Body:   fmt.Sprintf("Session finished (%d min). Take a break!", minutes),
		FireAt: fireAt,
		Repeat: reminder.RepeatNone,
	}
	if err := r.backend.Schedule(ctx, req); err != nil {
		r.log.Error("pomodoro schedule failed", logx.Err(err))
		return "Could not start the timer: " + schedulerErrText(err)
	}
	return fmt.Sprintf("Pomodoro started: %d minutes. I'll ping you at %s.",
		minutes, fireAt.Format("15:04"))
}

func (r *Router) cmdStatus(ctx context.Context) string {
	habits, err := r.store.ListHabits(ctx)
	if err != nil {
		r.log.Error("habit list failed", logx.Err(err))
		return "Could not load status."
	}
	permErr := r.sched.RequestPermission(ctx)
	return formatStatus(statusInfo{
		Habits:     len(habits),
		Entries:    r.backend.EntryCount(),
		QueueLen:   r.notif.QueueLen(),
		NextFires:  r.backend.NextFires(3),
		Deliveries: r.notif.Snapshot(),
		PermErr:    permErr,
	})
}

func schedulerErrText(err error) string {
	switch {
	case errors.Is(err, reminder.ErrBackendUnavailable):
		return "notification backend unavailable."
	case errors.Is(err, reminder.ErrScheduleRejected):
		return "the backend rejected the request."
	case errors.Is(err, reminder.ErrPermissionDenied):
		return "notifications are not permitted."
	default:
		return "internal error."
	}
}
