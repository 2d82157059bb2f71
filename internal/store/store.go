// Package store is the task source collaborator: pending tasks live in
// a single SQLite file and are handed to the planner read-only.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"autoplan/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var ErrEmptyID = errors.New("task id is required")

// Store wraps the tasks database. SQLite prefers a single writer, so
// the connection pool is pinned to one connection.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts or replaces a task.
func (s *Store) Add(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	var due any
	if t.DueDate != nil {
		due = t.DueDate.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, title, duration_min, priority, energy, due, source, done, created_at)
		 VALUES(?,?,?,?,?,?,?,0,?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, duration_min=excluded.duration_min,
		   priority=excluded.priority, energy=excluded.energy,
		   due=excluded.due, source=excluded.source`,
		t.ID, t.Title, t.DurationMinutes, string(t.Priority), nullStr(t.Energy),
		due, nullStr(t.Source), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListPending returns all not-done tasks in insertion order.
func (s *Store) ListPending(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, duration_min, priority, energy, due, source
		 FROM tasks WHERE done = 0 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var (
			t        model.Task
			priority string
			energy   sql.NullString
			due      sql.NullString
			source   sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.DurationMinutes, &priority, &energy, &due, &source); err != nil {
			return nil, err
		}
		t.Priority = model.Priority(priority)
		t.Energy = energy.String
		t.Source = source.String
		if due.Valid {
			if ts, err := time.Parse(time.RFC3339, due.String); err == nil {
				t.DueDate = &ts
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkDone flips a task to done so later runs stop planning it.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET done = 1 WHERE id = ?`, id)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
