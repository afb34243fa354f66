package reminder

import (
	"testing"
	"time"
)

func TestNextWeekdayFire(t *testing.T) {
	t.Parallel()
	// 2025-01-01 10:00 is a Wednesday (ISO weekday 3).
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		weekday int
		hour    int
		minute  int
		want    time.Time
	}{
		{name: "today, time ahead", weekday: 3, hour: 11, minute: 0, want: time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)},
		{name: "today, time passed", weekday: 3, hour: 9, minute: 0, want: time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)},
		{name: "today, exact now rolls over", weekday: 3, hour: 10, minute: 0, want: time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)},
		{name: "tomorrow", weekday: 4, hour: 9, minute: 30, want: time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)},
		{name: "weekend ahead", weekday: 7, hour: 8, minute: 0, want: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)},
		{name: "weekday already gone this week", weekday: 1, hour: 9, minute: 0, want: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)},
		{name: "month boundary", weekday: 2, hour: 0, minute: 1, want: time.Date(2025, 1, 7, 0, 1, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := nextWeekdayFire(now, tt.weekday, tt.hour, tt.minute)
			if !got.Equal(tt.want) {
				t.Fatalf("nextWeekdayFire(%d, %02d:%02d) = %v, want %v", tt.weekday, tt.hour, tt.minute, got, tt.want)
			}
			if isoWeekday(got) != tt.weekday {
				t.Fatalf("result weekday = %d, want %d", isoWeekday(got), tt.weekday)
			}
		})
	}
}

func TestIsoWeekday(t *testing.T) {
	t.Parallel()
	// 2025-01-06 is a Monday.
	for i := 0; i < 7; i++ {
		d := time.Date(2025, 1, 6+i, 12, 0, 0, 0, time.UTC)
		if got := isoWeekday(d); got != i+1 {
			t.Fatalf("isoWeekday(%v) = %d, want %d", d.Weekday(), got, i+1)
		}
	}
}
