// Package history persists command run outcomes to a local SQLite database
// so past runs survive restarts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded command execution against a project.
type Run struct {
	ID         int64
	Project    string
	Command    string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store wraps the history database.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the history database path under the state directory.
func DefaultPath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "depdeck-history.db"
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "depdeck", "history.db")
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// Non-fatal, the database still works without them.
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project     TEXT NOT NULL,
			command     TEXT NOT NULL,
			exit_code   INTEGER NOT NULL,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, finished_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a completed run and returns its assigned ID.
func (s *Store) Record(r Run) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (project, command, exit_code, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		r.Project, r.Command, r.ExitCode, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cannot record run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	return s.query(
		`SELECT id, project, command, exit_code, started_at, finished_at
		 FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
}

// RecentForProject returns the most recent runs for one project, newest first.
func (s *Store) RecentForProject(project string, limit int) ([]Run, error) {
	return s.query(
		`SELECT id, project, command, exit_code, started_at, finished_at
		 FROM runs WHERE project = ? ORDER BY finished_at DESC, id DESC LIMIT ?`, project, limit)
}

// LastRun returns the most recent run for a project, or false when none
// has been recorded.
func (s *Store) LastRun(project string) (Run, bool, error) {
	runs, err := s.RecentForProject(project, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

// Prune deletes runs older than the cutoff and returns the number removed.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM runs WHERE finished_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("cannot prune runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(q string, args ...any) ([]Run, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Project, &r.Command, &r.ExitCode, &started, &finished); err != nil {
			continue
		}
		if started.Valid {
			r.StartedAt = started.Time
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
