package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"worklenz/finance/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when input fails validation.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict is returned when a change clashes with existing state.
	ErrConflict = errors.New("conflict")
)

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := s.seedPriorities(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            currency TEXT NOT NULL DEFAULT 'USD',
            budget REAL NOT NULL DEFAULT 0,
            calculation_method TEXT NOT NULL DEFAULT 'hourly' CHECK (calculation_method IN ('hourly', 'man_days')),
            hours_per_day REAL NOT NULL DEFAULT 8,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS job_titles (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS team_members (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            job_title_id TEXT REFERENCES job_titles(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS rate_card_roles (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            job_title_id TEXT NOT NULL,
            rate REAL NOT NULL DEFAULT 0,
            man_day_rate REAL NOT NULL DEFAULT 0,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (project_id, job_title_id),
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
            FOREIGN KEY(job_title_id) REFERENCES job_titles(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS finance_rate_cards (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            currency TEXT NOT NULL DEFAULT 'USD',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS finance_rate_card_roles (
            rate_card_id TEXT NOT NULL,
            job_title_id TEXT NOT NULL,
            rate REAL NOT NULL DEFAULT 0,
            man_day_rate REAL NOT NULL DEFAULT 0,
            PRIMARY KEY (rate_card_id, job_title_id),
            FOREIGN KEY(rate_card_id) REFERENCES finance_rate_cards(id) ON DELETE CASCADE,
            FOREIGN KEY(job_title_id) REFERENCES job_titles(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS project_members (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            team_member_id TEXT NOT NULL,
            rate_card_role_id TEXT,
            UNIQUE (project_id, team_member_id),
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
            FOREIGN KEY(team_member_id) REFERENCES team_members(id) ON DELETE CASCADE,
            FOREIGN KEY(rate_card_role_id) REFERENCES rate_card_roles(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS task_statuses (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            name TEXT NOT NULL,
            sort_order INTEGER NOT NULL DEFAULT 0,
            color_code TEXT NOT NULL DEFAULT '',
            color_code_dark TEXT NOT NULL DEFAULT '',
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS task_priorities (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            value INTEGER NOT NULL,
            color_code TEXT NOT NULL DEFAULT '',
            color_code_dark TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS project_phases (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            name TEXT NOT NULL,
            sort_index INTEGER NOT NULL DEFAULT 0,
            color_code TEXT NOT NULL DEFAULT '',
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL,
            parent_task_id TEXT,
            name TEXT NOT NULL,
            status_id TEXT NOT NULL,
            priority_id TEXT NOT NULL,
            phase_id TEXT,
            billable INTEGER NOT NULL DEFAULT 1,
            fixed_cost REAL NOT NULL DEFAULT 0 CHECK (fixed_cost >= 0),
            total_minutes INTEGER NOT NULL DEFAULT 0,
            archived INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
            FOREIGN KEY(parent_task_id) REFERENCES tasks(id) ON DELETE CASCADE,
            FOREIGN KEY(status_id) REFERENCES task_statuses(id),
            FOREIGN KEY(priority_id) REFERENCES task_priorities(id),
            FOREIGN KEY(phase_id) REFERENCES project_phases(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
            task_id TEXT NOT NULL,
            team_member_id TEXT NOT NULL,
            PRIMARY KEY (task_id, team_member_id),
            FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
            FOREIGN KEY(team_member_id) REFERENCES team_members(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS work_logs (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL,
            team_member_id TEXT NOT NULL,
            time_spent INTEGER NOT NULL CHECK (time_spent > 0),
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
            FOREIGN KEY(team_member_id) REFERENCES team_members(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_work_logs_task ON work_logs(task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_project_members_project ON project_members(project_id);`,
		`CREATE TRIGGER IF NOT EXISTS trg_projects_updated
            AFTER UPDATE ON projects
            FOR EACH ROW BEGIN
                UPDATE projects SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_tasks_updated
            AFTER UPDATE ON tasks
            FOR EACH ROW BEGIN
                UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) seedPriorities() error {
	for _, p := range models.DefaultPriorities {
		_, err := s.db.Exec(`INSERT INTO task_priorities(id, name, value, color_code, color_code_dark) VALUES(?, ?, ?, ?, ?)
            ON CONFLICT(name) DO NOTHING`, newID(), p.Name, p.Value, p.ColorCode, p.ColorCodeDark)
		if err != nil {
			return fmt.Errorf("seed priorities: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// exists reports whether a row matching the query is present.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
