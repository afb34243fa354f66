package reminder

import "time"

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1..Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// nextWeekdayFire computes the first date-time at hour:minute that falls on
// the ISO weekday w, starting from now's calendar day. If today already
// matches w and the time is still ahead, today is used; a matching day
// whose time has already passed rolls over by exactly seven days.
func nextWeekdayFire(now time.Time, w, hour, minute int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	for i := 0; i < weekdaySlots && isoWeekday(t) != w; i++ {
		t = t.AddDate(0, 0, 1)
	}
	if !t.After(now) {
		t = t.AddDate(0, 0, 7)
	}
	return t
}
