package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"habitd/internal/eventbus"
	"habitd/pkg/logx"
)

const reminderTitle = "Habit Reminder"

func reminderBody(habitName string) string {
	return fmt.Sprintf("It's time for your habit: %s", habitName)
}

// Scheduler derives notification requests from habit recurrence rules and
// issues them against a Backend.
//
// The cancel-then-reschedule sequence is not atomic at the backend, so the
// scheduler serializes operations per habit id with a keyed mutex; calls
// for distinct habits proceed concurrently without coordination.
type Scheduler struct {
	backend Backend
	log     logx.Logger
	bus     eventbus.Bus

	now func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a Scheduler. bus may be nil; a zero log is replaced with a no-op.
func New(backend Backend, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		backend: backend,
		log:     log,
		bus:     bus,
		now:     time.Now,
		locks:   map[int64]*sync.Mutex{},
	}
}

// lockHabit acquires the per-habit mutex and returns its unlock func.
// Mutexes are never evicted; the map is bounded by the number of habits.
func (s *Scheduler) lockHabit(habitID int64) func() {
	s.mu.Lock()
	m, ok := s.locks[habitID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[habitID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ScheduleSingle emits one request for the habit with id = habitID firing
// at the given time, converted to the local timezone. at is passed through
// unvalidated; past times are accepted.
//
// Quirk, preserved for compatibility with the mobile releases this scheme
// comes from: the emitted request asks for daily time-of-day repetition,
// not a true one-shot. Callers that need exactly-once delivery must
// schedule a RepeatNone request against the backend directly.
func (s *Scheduler) ScheduleSingle(ctx context.Context, habitID int64, habitName string, at time.Time) error {
	unlock := s.lockHabit(habitID)
	defer unlock()

	req := Request{
		ID:      SingleID(habitID),
		Title:   reminderTitle,
		Body:    reminderBody(habitName),
		FireAt:  at.Local(),
		Repeat:  RepeatDaily,
		Payload: encodePayload(habitID),
	}
	if err := s.backend.Schedule(ctx, req); err != nil {
		return fmt.Errorf("schedule habit %d: %w", habitID, err)
	}
	s.log.Debug("single reminder scheduled",
		logx.Int64("habit_id", habitID), logx.Int64("notification_id", req.ID), logx.Time("fire_at", req.FireAt))
	s.publish(eventbus.TypeReminderScheduled, Event{HabitID: habitID, NotificationID: req.ID, FireAt: req.FireAt, Repeat: req.Repeat.String()})
	return nil
}

// ScheduleRepeating replaces the habit's reminders with one weekly request
// per entry in weekdays (ISO Monday=1..Sunday=7, iterated in input order).
//
// All previously scheduled ids for the habit are cancelled first, weekday
// range included, so repeated calls never leave stale entries behind. Any
// backend failure propagates immediately; already-issued requests from the
// same batch stay scheduled and the caller owns retry policy.
//
// weekdays, hour and minute are caller-supplied and not validated here;
// validation happens at the input boundary.
func (s *Scheduler) ScheduleRepeating(ctx context.Context, habitID int64, habitName string, weekdays []int, hour, minute int) error {
	unlock := s.lockHabit(habitID)
	defer unlock()

	if err := s.cancelLocked(ctx, habitID); err != nil {
		return err
	}

	now := s.now()
	body := reminderBody(habitName)
	payload := encodePayload(habitID)
	for _, w := range weekdays {
		req := Request{
			ID:      WeekdayID(habitID, w),
			Title:   reminderTitle,
			Body:    body,
			FireAt:  nextWeekdayFire(now, w, hour, minute),
			Repeat:  RepeatWeekly,
			Payload: payload,
		}
		if err := s.backend.Schedule(ctx, req); err != nil {
			return fmt.Errorf("schedule habit %d weekday %d: %w", habitID, w, err)
		}
		s.log.Debug("weekly reminder scheduled",
			logx.Int64("habit_id", habitID), logx.Int64("notification_id", req.ID),
			logx.Int("weekday", w), logx.Time("fire_at", req.FireAt))
		s.publish(eventbus.TypeReminderScheduled, Event{HabitID: habitID, NotificationID: req.ID, FireAt: req.FireAt, Repeat: req.Repeat.String()})
	}
	return nil
}

// Cancel removes the habit's single-fire id and all seven weekday ids.
// Safe to call for habits that never had anything scheduled.
func (s *Scheduler) Cancel(ctx context.Context, habitID int64) error {
	unlock := s.lockHabit(habitID)
	defer unlock()
	if err := s.cancelLocked(ctx, habitID); err != nil {
		return err
	}
	s.log.Debug("reminders cancelled", logx.Int64("habit_id", habitID))
	s.publish(eventbus.TypeReminderCancelled, Event{HabitID: habitID})
	return nil
}

func (s *Scheduler) cancelLocked(ctx context.Context, habitID int64) error {
	for _, id := range AllIDs(habitID) {
		if err := s.backend.Cancel(ctx, id); err != nil {
			return fmt.Errorf("cancel notification %d: %w", id, err)
		}
	}
	return nil
}

// CancelAll clears every scheduled reminder for every habit. Irreversible.
func (s *Scheduler) CancelAll(ctx context.Context) error {
	if err := s.backend.CancelAll(ctx); err != nil {
		return err
	}
	s.log.Info("all reminders cancelled")
	s.publish(eventbus.TypeReminderCancelled, Event{})
	return nil
}

// RequestPermission asks the backend for delivery permission. A false
// result is reported as ErrPermissionDenied so callers can distinguish it
// from transport failures; it is not fatal.
func (s *Scheduler) RequestPermission(ctx context.Context) error {
	granted, err := s.backend.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !granted {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Scheduler) publish(typ string, ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
