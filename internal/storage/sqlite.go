package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"habitd/internal/habit"
	"habitd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- habits ----

func (s *sqliteStore) PutHabit(ctx context.Context, h habit.Habit) (int64, error) {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	var at any
	if !h.Rule.At.IsZero() {
		at = h.Rule.At.Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO habits(name, rule_kind, at, weekdays, hour, minute, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		h.Name, string(h.Rule.Kind), at, encodeWeekdays(h.Rule.Weekdays),
		h.Rule.Hour, h.Rule.Minute, h.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetHabit(ctx context.Context, id int64) (habit.Habit, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, rule_kind, at, weekdays, hour, minute, created_at FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Habit{}, false, nil
	}
	if err != nil {
		return habit.Habit{}, false, err
	}
	return h, true, nil
}

func (s *sqliteStore) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rule_kind, at, weekdays, hour, minute, created_at FROM habits ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteHabit(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) DeleteAllHabits(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM habits`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(r rowScanner) (habit.Habit, error) {
	var (
		h         habit.Habit
		kind      string
		at        sql.NullString
		weekdays  sql.NullString
		createdAt string
	)
	if err := r.Scan(&h.ID, &h.Name, &kind, &at, &weekdays, &h.Rule.Hour, &h.Rule.Minute, &createdAt); err != nil {
		return habit.Habit{}, err
	}
	h.Rule.Kind = habit.RuleKind(kind)
	if at.Valid && at.String != "" {
		t, err := time.Parse(time.RFC3339, at.String)
		if err != nil {
			return habit.Habit{}, fmt.Errorf("habit %d: bad at %q: %w", h.ID, at.String, err)
		}
		h.Rule.At = t
	}
	if weekdays.Valid {
		h.Rule.Weekdays = decodeWeekdays(weekdays.String)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		h.CreatedAt = t
	}
	return h, nil
}

func encodeWeekdays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ---- notification entries ----

func (s *sqliteStore) UpsertNotification(ctx context.Context, e NotificationEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, title, body, fire_at, repeat, payload, created_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, body=excluded.body, fire_at=excluded.fire_at,
		   repeat=excluded.repeat, payload=excluded.payload, created_at=excluded.created_at`,
		e.ID, e.Title, e.Body, e.FireAt.Format(time.RFC3339), e.Repeat, e.Payload,
		e.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *sqliteStore) DeleteNotification(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) DeleteAllNotifications(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications`)
	return err
}

func (s *sqliteStore) ListNotifications(ctx context.Context) ([]NotificationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, fire_at, repeat, payload, created_at FROM notifications ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationEntry
	for rows.Next() {
		var (
			e         NotificationEntry
			fireAt    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Body, &fireAt, &e.Repeat, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, fireAt); err == nil {
			e.FireAt = t
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- delivery audit ----

func (s *sqliteStore) AppendDelivery(ctx context.Context, d DeliveryEntry) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	ok := 0
	if d.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(attempt_id, notification_id, at, ok, err) VALUES(?,?,?,?,?)`,
		d.AttemptID, d.NotificationID, d.At.Format(time.RFC3339Nano), ok, nullStr(d.Error),
	)
	return err
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
