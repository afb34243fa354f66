package reminder

import "testing"

func TestAllIDsCoversFullRange(t *testing.T) {
	t.Parallel()
	got := AllIDs(5)
	want := []int64{5, 51, 52, 53, 54, 55, 56, 57}
	if len(got) != len(want) {
		t.Fatalf("AllIDs(5) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllIDs(5) = %v, want %v", got, want)
		}
	}
}

func TestDecodeWeekdayID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		id      int64
		habitID int64
		weekday int
		ok      bool
	}{
		{name: "monday", id: 51, habitID: 5, weekday: 1, ok: true},
		{name: "sunday", id: 57, habitID: 5, weekday: 7, ok: true},
		{name: "large habit", id: 12807, habitID: 1280, weekday: 7, ok: true},
		{name: "last digit zero", id: 50, ok: false},
		{name: "last digit eight", id: 58, ok: false},
		{name: "zero", id: 0, ok: false},
		{name: "negative", id: -13, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			habitID, weekday, ok := DecodeWeekdayID(tt.id)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if habitID != tt.habitID || weekday != tt.weekday {
				t.Fatalf("decoded (%d, %d), want (%d, %d)", habitID, weekday, tt.habitID, tt.weekday)
			}
		})
	}
}
