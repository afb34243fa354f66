package localbackend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"habitd/internal/reminder"
	"habitd/internal/storage"
	kit "habitd/internal/transport"
	"habitd/pkg/logx"
)

type Config struct {
	// Timezone is an IANA TZ name (e.g. "Asia/Jakarta"); empty means Local.
	Timezone string
	// ChatID is the chat reminders are delivered to. Zero means delivery
	// permission is not granted yet.
	ChatID int64
}

// Sink receives fired notifications. Implemented by the notifier pipeline.
type Sink interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// entry is one registered cron schedule. One-shots live in the timers map
// instead.
type entry struct {
	req     reminder.Request
	entryID cron.EntryID
}

// Backend implements reminder.Backend on an in-process cron engine with
// sqlite-persisted entries.
type Backend struct {
	log   logx.Logger
	store storage.Store
	sink  Sink

	mu      sync.Mutex
	cfg     Config
	loc     *time.Location
	c       *cron.Cron
	entries map[int64]*entry
	started bool

	// one-shot timers, version-guarded so a replaced entry's stale
	// callback is ignored
	tmu    sync.Mutex
	timers map[int64]*time.Timer
	vers   map[int64]uint64
}

func New(cfg Config, store storage.Store, sink Sink, log logx.Logger) *Backend {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Backend{
		log:     log,
		store:   store,
		sink:    sink,
		cfg:     cfg,
		entries: map[int64]*entry{},
		timers:  map[int64]*time.Timer{},
		vers:    map[int64]uint64{},
	}
}

// Start loads persisted entries and begins firing. Idempotent.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	b.loc = b.loadLocationLocked()
	b.c = cron.New(cron.WithLocation(b.loc))

	rows, err := b.store.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("load notification entries: %w", err)
	}
	b.started = true
	registered := 0
	for _, row := range rows {
		req := reminder.Request{
			ID:      row.ID,
			Title:   row.Title,
			Body:    row.Body,
			FireAt:  row.FireAt,
			Repeat:  reminder.Repeat(row.Repeat),
			Payload: row.Payload,
		}
		if err := b.registerLocked(req); err != nil {
			b.log.Warn("dropping unregisterable entry", logx.Int64("id", row.ID), logx.Err(err))
			_ = b.store.DeleteNotification(ctx, row.ID)
			continue
		}
		registered++
	}
	b.c.Start()
	b.log.Info("notification backend started",
		logx.String("tz", b.loc.String()), logx.Int("entries", registered))
	return nil
}

// Stop halts firing. Persisted entries remain and resume on next Start.
func (b *Backend) Stop(ctx context.Context) {
	b.mu.Lock()
	c := b.c
	b.c = nil
	b.started = false
	b.entries = map[int64]*entry{}
	b.mu.Unlock()

	b.tmu.Lock()
	for _, t := range b.timers {
		_ = t.Stop()
	}
	b.timers = map[int64]*time.Timer{}
	b.vers = map[int64]uint64{}
	b.tmu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	b.log.Info("notification backend stopped")
}

// Schedule upserts one entry: any existing entry with the same id is
// replaced. The entry is persisted first, then registered for firing.
func (b *Backend) Schedule(ctx context.Context, req reminder.Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return reminder.ErrBackendUnavailable
	}

	if err := b.store.UpsertNotification(ctx, storage.NotificationEntry{
		ID:      req.ID,
		Title:   req.Title,
		Body:    req.Body,
		FireAt:  req.FireAt,
		Repeat:  int(req.Repeat),
		Payload: req.Payload,
	}); err != nil {
		return fmt.Errorf("%w: persist: %v", reminder.ErrScheduleRejected, err)
	}

	if !b.started {
		// Registered from the store on Start().
		return nil
	}
	b.unregisterLocked(req.ID)
	if err := b.registerLocked(req); err != nil {
		return fmt.Errorf("%w: %v", reminder.ErrScheduleRejected, err)
	}
	return nil
}

// Cancel removes an entry. Unknown ids are a no-op.
func (b *Backend) Cancel(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return reminder.ErrBackendUnavailable
	}
	b.unregisterLocked(id)
	return b.store.DeleteNotification(ctx, id)
}

// CancelAll removes every entry for every habit.
func (b *Backend) CancelAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.store == nil {
		return reminder.ErrBackendUnavailable
	}
	for id := range b.entries {
		b.unregisterLocked(id)
	}
	b.tmu.Lock()
	for id, t := range b.timers {
		_ = t.Stop()
		delete(b.timers, id)
		delete(b.vers, id)
	}
	b.tmu.Unlock()
	return b.store.DeleteAllNotifications(ctx)
}

// RequestPermission reports whether delivery can reach the user: a target
// chat must be configured. A false result is not an error.
func (b *Backend) RequestPermission(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.ChatID != 0 && b.sink != nil, nil
}

// EntryCount reports the number of live registered entries (for /status).
func (b *Backend) EntryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.tmu.Lock()
	n += len(b.timers)
	b.tmu.Unlock()
	return n
}

// NextFires returns upcoming fire times of registered cron entries, for
// operator visibility.
func (b *Backend) NextFires(limit int) []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c == nil {
		return nil
	}
	var out []time.Time
	for _, e := range b.c.Entries() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e.Next)
	}
	return out
}

func (b *Backend) Apply(cfg Config) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

// registerLocked wires a request into the live cron/timer set. Call with
// b.mu held and b.started true.
func (b *Backend) registerLocked(req reminder.Request) error {
	if req.Repeat == reminder.RepeatNone {
		// The timers map owns one-shots; keeping them out of entries keeps
		// EntryCount single-source.
		b.registerTimer(req)
		return nil
	}
	spec, err := cronSpec(req, b.loc)
	if err != nil {
		return err
	}
	id := req.ID
	r := req
	eid, err := b.c.AddFunc(spec, func() { b.fire(r) })
	if err != nil {
		return fmt.Errorf("register %q: %w", spec, err)
	}
	b.entries[id] = &entry{req: req, entryID: eid}
	return nil
}

func (b *Backend) unregisterLocked(id int64) {
	if e, ok := b.entries[id]; ok {
		if e.entryID != 0 && b.c != nil {
			b.c.Remove(e.entryID)
		}
		delete(b.entries, id)
	}
	b.tmu.Lock()
	if t, ok := b.timers[id]; ok {
		_ = t.Stop()
		delete(b.timers, id)
	}
	b.vers[id]++
	b.tmu.Unlock()
}

// registerTimer arms a one-shot timer. A fire time already in the past
// fires immediately (missed while the daemon was down).
func (b *Backend) registerTimer(req reminder.Request) {
	b.tmu.Lock()
	defer b.tmu.Unlock()
	if t, ok := b.timers[req.ID]; ok {
		_ = t.Stop()
	}
	ver := b.vers[req.ID] + 1
	b.vers[req.ID] = ver

	delay := time.Until(req.FireAt)
	if delay < 0 {
		delay = 0
	}
	id := req.ID
	r := req
	b.timers[id] = time.AfterFunc(delay, func() {
		// If the entry was cancelled or replaced, ignore this callback.
		b.tmu.Lock()
		if b.vers[id] != ver {
			b.tmu.Unlock()
			return
		}
		delete(b.timers, id)
		delete(b.vers, id)
		b.tmu.Unlock()

		// One-shots are consumed: drop persisted state before delivering
		// so a restart cannot fire them twice.
		b.mu.Lock()
		st := b.store
		b.mu.Unlock()
		if st != nil {
			cctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = st.DeleteNotification(cctx, id)
			cancel()
		}
		b.fire(r)
	})
}

// fire hands one notification to the sink. At most one attempt per fire;
// the sink owns retry policy.
func (b *Backend) fire(req reminder.Request) {
	b.mu.Lock()
	chatID := b.cfg.ChatID
	sink := b.sink
	b.mu.Unlock()

	if sink == nil || chatID == 0 {
		b.log.Warn("notification fired with no delivery target", logx.Int64("id", req.ID))
		return
	}
	n := kit.Notification{
		NotificationID: req.ID,
		Target:         kit.ChatTarget{ChatID: chatID},
		Text:           req.Title + "\n" + req.Body,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Notify(ctx, n); err != nil {
		b.log.Warn("notification handoff failed", logx.Int64("id", req.ID), logx.Err(err))
	}
}

// cronSpec maps a repeating request onto a 5-field cron expression. The
// cron engine evaluates fields in loc, so FireAt is converted there before
// its wall-clock numbers are read. The weekly day-of-week comes from
// FireAt, which the scheduler already placed on the requested weekday.
func cronSpec(req reminder.Request, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	at := req.FireAt.In(loc)
	h, m := at.Hour(), at.Minute()
	switch req.Repeat {
	case reminder.RepeatDaily:
		return fmt.Sprintf("%d %d * * *", m, h), nil
	case reminder.RepeatWeekly:
		// cron uses Sunday=0.
		return fmt.Sprintf("%d %d * * %d", m, h, int(at.Weekday())), nil
	default:
		return "", fmt.Errorf("repeat %v has no cron form", req.Repeat)
	}
}

func (b *Backend) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(b.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		b.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
