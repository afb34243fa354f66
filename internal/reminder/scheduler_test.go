package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"habitd/pkg/logx"
)

type fakeBackend struct {
	mu     sync.Mutex
	active map[int64]Request
	order  []int64

	scheduleErr   error
	permission    bool
	permissionErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{active: map[int64]Request{}, permission: true}
}

func (f *fakeBackend) Schedule(_ context.Context, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.active[req.ID] = req
	f.order = append(f.order, req.ID)
	return nil
}

func (f *fakeBackend) Cancel(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, id)
	return nil
}

func (f *fakeBackend) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = map[int64]Request{}
	return nil
}

func (f *fakeBackend) RequestPermission(context.Context) (bool, error) {
	return f.permission, f.permissionErr
}

func (f *fakeBackend) activeIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.active))
	for id := range f.active {
		ids = append(ids, id)
	}
	return ids
}

// wednesday ten o'clock, a fixed reference point for the next-fire cases.
func fixedNow(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if now.Weekday() != time.Wednesday {
		t.Fatalf("reference date is %v, want Wednesday", now.Weekday())
	}
	return now
}

func newTestScheduler(t *testing.T, b Backend) *Scheduler {
	t.Helper()
	s := New(b, logx.Nop(), nil)
	now := fixedNow(t)
	s.now = func() time.Time { return now }
	return s
}

func TestScheduleRepeatingDerivesWeekdayIDs(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)

	if err := s.ScheduleRepeating(context.Background(), 5, "Read", []int{1, 3, 5}, 8, 30); err != nil {
		t.Fatalf("ScheduleRepeating: %v", err)
	}

	want := map[int64]bool{51: true, 53: true, 55: true}
	got := b.activeIDs()
	if len(got) != len(want) {
		t.Fatalf("active ids = %v, want exactly %d", got, len(want))
	}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected active id %d", id)
		}
	}
	for _, id := range []int64{51, 53, 55} {
		req := b.active[id]
		if req.Repeat != RepeatWeekly {
			t.Errorf("id %d repeat = %v, want weekly", id, req.Repeat)
		}
		if req.Title == "" || req.Body == "" {
			t.Errorf("id %d missing title/body", id)
		}
	}
}

func TestScheduleRepeatingKeepsInputOrder(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)

	if err := s.ScheduleRepeating(context.Background(), 9, "Run", []int{7, 2, 4}, 6, 0); err != nil {
		t.Fatalf("ScheduleRepeating: %v", err)
	}
	want := []int64{97, 92, 94}
	if len(b.order) != len(want) {
		t.Fatalf("schedule order = %v, want %v", b.order, want)
	}
	for i, id := range want {
		if b.order[i] != id {
			t.Fatalf("schedule order = %v, want %v", b.order, want)
		}
	}
}

func TestScheduleRepeatingReplacesPrevious(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)
	ctx := context.Background()

	if err := s.ScheduleRepeating(ctx, 7, "Stretch", []int{1, 2, 3}, 7, 0); err != nil {
		t.Fatalf("first ScheduleRepeating: %v", err)
	}
	if err := s.ScheduleRepeating(ctx, 7, "Stretch", []int{6}, 7, 0); err != nil {
		t.Fatalf("second ScheduleRepeating: %v", err)
	}

	got := b.activeIDs()
	if len(got) != 1 || got[0] != 76 {
		t.Fatalf("active ids after replace = %v, want [76]", got)
	}
}

func TestCancelClearsFullIDRange(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)
	ctx := context.Background()

	if err := s.ScheduleRepeating(ctx, 12, "Meditate", []int{1, 2, 3, 4, 5, 6, 7}, 21, 15); err != nil {
		t.Fatalf("ScheduleRepeating: %v", err)
	}
	if err := s.ScheduleSingle(ctx, 12, "Meditate", fixedNow(t).Add(time.Hour)); err != nil {
		t.Fatalf("ScheduleSingle: %v", err)
	}
	if err := s.Cancel(ctx, 12); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if ids := b.activeIDs(); len(ids) != 0 {
		t.Fatalf("active ids after cancel = %v, want none", ids)
	}
}

func TestCancelWithoutScheduleIsNoop(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)
	if err := s.Cancel(context.Background(), 404); err != nil {
		t.Fatalf("Cancel of never-scheduled habit: %v", err)
	}
}

func TestScheduleRepeatingSameDayTimePassed(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)

	// Wednesday 10:00, asking for Wednesday 09:00: next week.
	if err := s.ScheduleRepeating(context.Background(), 3, "Journal", []int{3}, 9, 0); err != nil {
		t.Fatalf("ScheduleRepeating: %v", err)
	}
	req := b.active[33]
	want := fixedNow(t).AddDate(0, 0, 7)
	want = time.Date(want.Year(), want.Month(), want.Day(), 9, 0, 0, 0, want.Location())
	if !req.FireAt.Equal(want) {
		t.Fatalf("fire at = %v, want %v", req.FireAt, want)
	}
}

func TestScheduleRepeatingSameDayTimeAhead(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)

	// Wednesday 10:00, asking for Wednesday 11:00: today.
	if err := s.ScheduleRepeating(context.Background(), 3, "Journal", []int{3}, 11, 0); err != nil {
		t.Fatalf("ScheduleRepeating: %v", err)
	}
	req := b.active[33]
	now := fixedNow(t)
	want := time.Date(now.Year(), now.Month(), now.Day(), 11, 0, 0, 0, now.Location())
	if !req.FireAt.Equal(want) {
		t.Fatalf("fire at = %v, want %v", req.FireAt, want)
	}
}

func TestScheduleSingleKeepsDailyRepeatQuirk(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)

	at := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	if err := s.ScheduleSingle(context.Background(), 42, "Piano", at); err != nil {
		t.Fatalf("ScheduleSingle: %v", err)
	}
	req, ok := b.active[42]
	if !ok {
		t.Fatalf("no request with id 42, active = %v", b.activeIDs())
	}
	if req.Repeat != RepeatDaily {
		t.Fatalf("repeat = %v, want daily (compatibility quirk)", req.Repeat)
	}
	p, err := DecodePayload(req.Payload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.HabitID != 42 {
		t.Fatalf("payload habit id = %d, want 42", p.HabitID)
	}
}

func TestScheduleRepeatingPropagatesBackendError(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	rejected := ErrScheduleRejected
	b.scheduleErr = rejected
	s := newTestScheduler(t, b)

	err := s.ScheduleRepeating(context.Background(), 5, "Read", []int{1}, 8, 0)
	if !errors.Is(err, rejected) {
		t.Fatalf("error = %v, want wrapped %v", err, rejected)
	}
}

func TestRequestPermissionDenied(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	b.permission = false
	s := newTestScheduler(t, b)

	if err := s.RequestPermission(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestConcurrentReschedulesSameHabitSerialize(t *testing.T) {
	t.Parallel()
	b := newFakeBackend()
	s := newTestScheduler(t, b)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		days := []int{1, 3}
		if i%2 == 1 {
			days = []int{2, 4, 6}
		}
		go func(days []int) {
			defer wg.Done()
			_ = s.ScheduleRepeating(ctx, 8, "Gym", days, 12, 0)
		}(days)
	}
	wg.Wait()

	// Whichever call won, the final state must be one complete batch.
	got := b.activeIDs()
	if len(got) != 2 && len(got) != 3 {
		t.Fatalf("active ids = %v, want one intact batch", got)
	}
}
