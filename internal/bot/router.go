// Package bot translates chat commands into habit and reminder operations.
package bot

import (
	"context"
	"runtime/debug"
	"strings"

	"habitd/internal/notifier"
	"habitd/internal/notify/localbackend"
	"habitd/internal/reminder"
	"habitd/internal/storage"
	kit "habitd/internal/transport"
	"habitd/pkg/logx"
)

type Config struct {
	// ChatID is the only chat commands are accepted from.
	ChatID int64
	// OwnerUserIDs restricts command senders. Empty allows anyone in the chat.
	OwnerUserIDs []int64
}

type Router struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	store   storage.Store
	sched   *reminder.Scheduler
	backend *localbackend.Backend
	notif   *notifier.Service
}

func NewRouter(cfg Config, adapter kit.Adapter, store storage.Store, sched *reminder.Scheduler, backend *localbackend.Backend, notif *notifier.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cfg:     cfg,
		log:     log,
		adapter: adapter,
		store:   store,
		sched:   sched,
		backend: backend,
		notif:   notif,
	}
}

func (r *Router) Apply(cfg Config) { r.cfg = cfg }

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			r.dispatch(ctx, up.Message)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, m *kit.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in command handler",
				logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()

	if !r.allowed(m) {
		r.log.Debug("message ignored",
			logx.Int64("chat_id", m.ChatID), logx.Int64("from_id", m.FromID))
		return
	}
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	reply := r.handle(ctx, text)
	if reply == "" {
		return
	}
	if err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, reply); err != nil {
		r.log.Warn("reply failed", logx.Err(err))
	}
}

func (r *Router) allowed(m *kit.Message) bool {
	if m.ChatID != r.cfg.ChatID {
		return false
	}
	if len(r.cfg.OwnerUserIDs) == 0 {
		return true
	}
	for _, id := range r.cfg.OwnerUserIDs {
		if m.FromID == id {
			return true
		}
	}
	return false
}

// handle routes one command line to its handler and returns the reply text.
func (r *Router) handle(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	// Strip "@botname" suffixes Telegram adds in groups.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		return helpText
	case "/add":
		return r.cmdAdd(ctx, args)
	case "/at":
		return r.cmdAt(ctx, args)
	case "/list":
		return r.cmdList(ctx)
	case "/remove":
		return r.cmdRemove(ctx, args)
	case "/clear":
		return r.cmdClear(ctx)
	case "/pomodoro":
		return r.cmdPomodoro(ctx, args)
	case "/status":
		return r.cmdStatus(ctx)
	default:
		return "Unknown command. " + helpHint
	}
}
