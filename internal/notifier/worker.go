package notifier

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"habitd/internal/eventbus"
	"habitd/internal/storage"
	"habitd/pkg/logx"
)

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			// Drain remaining jobs without sending so Stop() can finish.
			for range q {
			}
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(ctx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	limiter := s.limiter
	s.mu.Unlock()

	attemptID := uuid.NewString()
	var err error
	attempts := 0
	maxAttempts := 1 + cfg.RetryMax
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		if werr := limiter.Wait(ctx); werr != nil {
			err = werr
			break
		}
		err = s.adapter.SendText(ctx, j.n.Target, j.n.Text)
		if err == nil || attempt >= maxAttempts {
			break
		}
		delay := backoffDelay(cfg, attempt)
		s.log.Debug("delivery retry scheduled",
			logx.Int64("notification_id", j.n.NotificationID), logx.Int("attempt", attempt+1),
			logx.Duration("delay", delay), logx.Err(err))
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}

	now := time.Now()
	item := HistoryItem{At: now, Text: j.n.Text, OK: err == nil}
	ev := DeliveryEvent{NotificationID: j.n.NotificationID, ChatID: j.n.Target.ChatID, At: now, Attempts: attempts}
	if err != nil {
		ev.Error = err.Error()
		s.log.Warn("delivery failed",
			logx.Int64("notification_id", j.n.NotificationID), logx.Int("attempts", attempts), logx.Err(err))
		s.publish(eventbus.TypeNotifyFailed, ev)
	} else {
		s.log.Debug("delivered",
			logx.Int64("notification_id", j.n.NotificationID), logx.Int("attempts", attempts))
		s.publish(eventbus.TypeNotifySent, ev)
	}
	s.appendHistory(item)
	s.audit(ctx, attemptID, j, err)
}

func (s *Service) audit(ctx context.Context, attemptID string, j job, sendErr error) {
	if s.store == nil {
		return
	}
	d := storage.DeliveryEntry{
		AttemptID:      attemptID,
		NotificationID: j.n.NotificationID,
		OK:             sendErr == nil,
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	}
	cctx, cancel := context.WithTimeout(withoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.store.AppendDelivery(cctx, d); err != nil {
		s.log.Warn("delivery audit write failed", logx.Err(err))
	}
}

// withoutCancel keeps audit writes working during shutdown drain.
func withoutCancel(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func backoffDelay(cfg Config, retry int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d > cfg.RetryMaxDelay {
			break
		}
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	// jitter [0.8, 1.2]
	d = time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
