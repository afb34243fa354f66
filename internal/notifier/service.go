package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"habitd/internal/eventbus"
	"habitd/internal/storage"
	kit "habitd/internal/transport"
	"habitd/pkg/logx"
)

type job struct {
	n kit.Notification
	// dedupKey is computed at enqueue time for cheap per-worker processing.
	dedupKey string
}

// Service implements an async delivery pipeline:
// queue + worker pool + rate limit + retry + dedup.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus
	store   storage.Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup
	workerWG  sync.WaitGroup

	queue    chan job
	stopDone chan struct{} // non-nil while stopping

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	// In-memory history (for /status)
	hmu     sync.Mutex
	history []HistoryItem
}

// New creates the service. store and bus may be nil (audit/events skipped).
func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		log:     log,
		bus:     bus,
		store:   store,
		dedup:   map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 300
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	workers := s.cfg.Workers
	q := make(chan job, s.cfg.QueueSize)
	s.queue = q
	s.accepting = true
	s.mu.Unlock()

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.workerWG.Done()
			s.workerLoop(ctx, q)
		}()
	}
	s.log.Info("delivery pipeline started", logx.Int("workers", workers), logx.Int("queue", cap(q)))
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	// Shutdown asynchronously so callers can time out without leaking state.
	go func() {
		defer close(done)
		// Wait for in-flight enqueues to finish, then close the queue so
		// workers can drain.
		s.sendWG.Wait()
		close(q)
		s.workerWG.Wait()

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("delivery pipeline stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Notify enqueues one notification for delivery. Non-blocking: a full queue
// returns ErrQueueFull instead of waiting.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	dedupWindow := s.cfg.DedupWindow
	dedupMax := s.cfg.DedupMaxEntries
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	key := dedupKey(n)
	if dedupWindow > 0 && !s.dedupAllow(key, dedupWindow, dedupMax) {
		s.log.Debug("notification deduped", logx.Int64("notification_id", n.NotificationID))
		return nil
	}

	select {
	case q <- job{n: n, dedupKey: key}:
		return nil
	default:
		s.publish(eventbus.TypeNotifyDropped, DeliveryEvent{NotificationID: n.NotificationID, ChatID: n.Target.ChatID, Error: ErrQueueFull.Error()})
		return ErrQueueFull
	}
}

// QueueLen reports the current queue depth (0 when not running).
func (s *Service) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return len(s.queue)
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(item HistoryItem) {
	s.mu.Lock()
	max := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

// dedupAllow reports whether a notification with this key may be sent now,
// and if so reserves the key for the window.
func (s *Service) dedupAllow(key string, window time.Duration, maxEntries int) bool {
	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()

	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	// Opportunistic prune when the cache grows past its cap.
	if len(s.dedup) >= maxEntries {
		for k, until := range s.dedup {
			if now.After(until) {
				delete(s.dedup, k)
			}
		}
	}
	s.dedup[key] = now.Add(window)
	return true
}

func dedupKey(n kit.Notification) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%d|%s", n.Target.ChatID, n.NotificationID, n.Text)
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) publish(typ string, ev DeliveryEvent) {
	if s.bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
