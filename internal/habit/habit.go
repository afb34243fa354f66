// Package habit holds the user-facing habit model and its recurrence rule.
// Validation lives here, at the input boundary; the reminder scheduler
// deliberately accepts whatever it is given.
package habit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type RuleKind string

const (
	// RuleSingle is a fixed date+time reminder.
	RuleSingle RuleKind = "single"
	// RuleWeekly repeats on a set of weekdays at a fixed time-of-day.
	RuleWeekly RuleKind = "weekly"
)

// Rule is a habit's recurrence rule. Exactly one of the two shapes is
// populated, selected by Kind.
type Rule struct {
	Kind RuleKind

	// Single
	At time.Time

	// Weekly: ISO weekdays (Monday=1..Sunday=7), hour 0-23, minute 0-59.
	Weekdays []int
	Hour     int
	Minute   int
}

type Habit struct {
	ID        int64
	Name      string
	Rule      Rule
	CreatedAt time.Time
}

func (r Rule) Validate() error {
	switch r.Kind {
	case RuleSingle:
		if r.At.IsZero() {
			return errors.New("single rule: time required")
		}
		return nil
	case RuleWeekly:
		if len(r.Weekdays) == 0 {
			return errors.New("weekly rule: at least one weekday required")
		}
		seen := map[int]bool{}
		for _, w := range r.Weekdays {
			if w < 1 || w > 7 {
				return fmt.Errorf("weekly rule: weekday %d out of range 1..7", w)
			}
			if seen[w] {
				return fmt.Errorf("weekly rule: duplicate weekday %d", w)
			}
			seen[w] = true
		}
		if r.Hour < 0 || r.Hour > 23 {
			return fmt.Errorf("weekly rule: hour %d out of range 0..23", r.Hour)
		}
		if r.Minute < 0 || r.Minute > 59 {
			return fmt.Errorf("weekly rule: minute %d out of range 0..59", r.Minute)
		}
		return nil
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

func (h Habit) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return errors.New("habit name required")
	}
	return h.Rule.Validate()
}

var weekdayNames = map[string]int{
	"mon": 1, "monday": 1,
	"tue": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
	"sun": 7, "sunday": 7,
}

var weekdayShort = [8]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ParseWeekdays parses user input like "mon,wed,fri", "1,3,5" or "daily"
// into a sorted, deduplicated ISO weekday list.
func ParseWeekdays(s string) ([]int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, errors.New("weekdays required")
	}
	if s == "daily" || s == "everyday" {
		return []int{1, 2, 3, 4, 5, 6, 7}, nil
	}

	seen := map[int]bool{}
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, ok := weekdayNames[part]
		if !ok {
			n, err := strconv.Atoi(part)
			if err != nil || n < 1 || n > 7 {
				return nil, fmt.Errorf("unknown weekday %q", part)
			}
			w = n
		}
		if !seen[w] {
			seen[w] = true
			days = append(days, w)
		}
	}
	if len(days) == 0 {
		return nil, errors.New("weekdays required")
	}
	sort.Ints(days)
	return days, nil
}

// ParseHHMM parses "HH:MM" into hour and minute.
func ParseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// Describe renders the rule for list output, e.g. "Mon,Wed,Fri at 08:30".
func (r Rule) Describe() string {
	switch r.Kind {
	case RuleSingle:
		return r.At.Format("2006-01-02 15:04")
	case RuleWeekly:
		if len(r.Weekdays) == 7 {
			return fmt.Sprintf("daily at %02d:%02d", r.Hour, r.Minute)
		}
		names := make([]string, 0, len(r.Weekdays))
		for _, w := range r.Weekdays {
			if w >= 1 && w <= 7 {
				names = append(names, weekdayShort[w])
			}
		}
		return fmt.Sprintf("%s at %02d:%02d", strings.Join(names, ","), r.Hour, r.Minute)
	default:
		return string(r.Kind)
	}
}
