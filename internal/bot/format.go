package bot

import (
	"fmt"
	"strings"
	"time"

	"habitd/internal/habit"
	"habitd/internal/notifier"
)

const helpHint = "Try /help."

const helpText = `habitd — habit reminders in your pocket

/add <name> <days> <HH:MM> — weekly habit, e.g. /add Read mon,wed,fri 08:30
/at <name> <date> <HH:MM> — fixed-time habit, e.g. /at Dentist 2025-06-01 09:00
/list — show habits
/remove <id> — remove one habit and its reminders
/clear — remove everything
/pomodoro [minutes] — one-shot session timer (default 25)
/status — scheduler and delivery state`

func formatHabitList(habits []habit.Habit) string {
	if len(habits) == 0 {
		return "No habits yet. " + helpHint
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Habits (%d):\n", len(habits)))
	for _, h := range habits {
		b.WriteString(fmt.Sprintf("#%d %s — %s\n", h.ID, h.Name, h.Rule.Describe()))
	}
	return strings.TrimRight(b.String(), "\n")
}

type statusInfo struct {
	Habits     int
	Entries    int
	QueueLen   int
	NextFires  []time.Time
	Deliveries []notifier.HistoryItem
	PermErr    error
}

func formatStatus(s statusInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "habits: %d\nscheduled entries: %d\ndelivery queue: %d\n", s.Habits, s.Entries, s.QueueLen)
	if s.PermErr != nil {
		fmt.Fprintf(&b, "delivery: %v\n", s.PermErr)
	} else {
		b.WriteString("delivery: ok\n")
	}
	if len(s.NextFires) > 0 {
		b.WriteString("next fires:")
		for _, t := range s.NextFires {
			b.WriteString(" " + t.Format("Mon 15:04"))
		}
		b.WriteString("\n")
	}
	ok, fail := 0, 0
	for _, d := range s.Deliveries {
		if d.OK {
			ok++
		} else {
			fail++
		}
	}
	fmt.Fprintf(&b, "recent deliveries: %d ok, %d failed", ok, fail)
	return b.String()
}
