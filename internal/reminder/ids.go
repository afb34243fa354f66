package reminder

// Notification id scheme, kept bit-compatible with the mobile releases that
// introduced it:
//
//   single-fire reminder:  id = habitID
//   weekday reminder:      id = habitID*10 + weekday   (Monday=1..Sunday=7)
//
// The factor 10 bounds the weekday to a single digit, so one habit owns at
// most eight ids. The scheme assumes the id owner allocates habit ids from
// one sequence and never reuses a numeric range across the two flavors:
// habit N's weekday ids (10N+1..10N+7) must not collide with another
// habit's single-fire id. That disjointness is the caller's obligation;
// this package does not validate it.

// weekdaySlots is the number of weekday-derived ids reserved per habit.
const weekdaySlots = 7

// SingleID returns the notification id of a habit's single-fire reminder.
func SingleID(habitID int64) int64 { return habitID }

// WeekdayID returns the notification id of a habit's reminder on the given
// ISO weekday (Monday=1..Sunday=7).
func WeekdayID(habitID int64, weekday int) int64 {
	return habitID*10 + int64(weekday)
}

// AllIDs returns every notification id a habit can own: the single-fire id
// followed by all seven weekday ids. Cancellation always sweeps the full
// range regardless of which ids are actually scheduled.
func AllIDs(habitID int64) []int64 {
	ids := make([]int64, 0, 1+weekdaySlots)
	ids = append(ids, SingleID(habitID))
	for w := 1; w <= weekdaySlots; w++ {
		ids = append(ids, WeekdayID(habitID, w))
	}
	return ids
}

// DecodeWeekdayID splits a weekday-derived id back into habit id and ISO
// weekday. ok is false when id cannot be a weekday id (last digit 0, 8, 9
// or negative).
func DecodeWeekdayID(id int64) (habitID int64, weekday int, ok bool) {
	if id <= 0 {
		return 0, 0, false
	}
	w := int(id % 10)
	if w < 1 || w > weekdaySlots {
		return 0, 0, false
	}
	return id / 10, w, true
}
