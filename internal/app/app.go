// Package app wires habitd's components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"habitd/internal/bot"
	"habitd/internal/config"
	"habitd/internal/eventbus"
	"habitd/internal/notifier"
	"habitd/internal/notify/localbackend"
	"habitd/internal/reminder"
	"habitd/internal/storage"
	kit "habitd/internal/transport"
	"habitd/internal/transport/telegram"
	"habitd/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	adapter kit.Adapter
	notif   *notifier.Service
	backend *localbackend.Backend
	sched   *reminder.Scheduler
	router  *bot.Router

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, adapter, log.With(logx.String("comp", "notifier")), bus, store)

	backend := localbackend.New(localbackend.Config{
		Timezone: cfg.Backend.Timezone,
		ChatID:   cfg.Telegram.ChatID,
	}, store, notif, log.With(logx.String("comp", "backend")))

	sched := reminder.New(backend, log.With(logx.String("comp", "scheduler")), bus)

	router := bot.NewRouter(bot.Config{
		ChatID:       cfg.Telegram.ChatID,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	}, adapter, store, sched, backend, notif, log.With(logx.String("comp", "bot")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: adapter,
		notif:   notif,
		backend: backend,
		sched:   sched,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.notif.Enabled() {
		a.notif.Start(runCtx)
	}
	// Start the backend before the adapter so persisted reminders are armed
	// before commands can mutate them.
	if err := a.backend.Start(runCtx); err != nil {
		return err
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}

	a.goLoop(func() { a.router.Run(runCtx, a.updates) })
	a.goLoop(func() { a.eventLogLoop(runCtx) })
	a.goLoop(func() { a.reloadLoop(runCtx) })
	a.goLoop(func() {
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})

	a.log.Info("app started", logx.String("config", a.cfgm.Describe()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	a.cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("backend", 2*time.Second, func(c context.Context) error { a.backend.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("loops", 2*time.Second, func(c context.Context) error {
		done := make(chan struct{})
		go func() { a.wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) goLoop(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// eventLogLoop surfaces bus events at debug level for troubleshooting.
func (a *App) eventLogLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// reloadLoop applies validated config updates to the live components.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.apply(ctx, cfg)
		}
	}
}

func (a *App) apply(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.router.Apply(bot.Config{
		ChatID:       cfg.Telegram.ChatID,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
	})
	a.backend.Apply(localbackend.Config{
		Timezone: cfg.Backend.Timezone,
		ChatID:   cfg.Telegram.ChatID,
	})

	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		prev := a.notif.Enabled()
		a.notif.Apply(ncfg)
		if prev && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prev && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	a.log.Info("config reloaded")
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	// A missing notifier section means "enabled with defaults".
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: true}, nil
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", n.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: n.DedupMaxEntries,
		HistorySize:     n.HistorySize,
	}, nil
}
