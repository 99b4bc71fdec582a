package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/taskrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.RunStore = (*Store)(nil)

// Store is a SQLite-based run history store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.taskrag/data/runs.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".taskrag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "runs.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_runs.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Run Store ====================

// SaveRun creates or updates a run.
func (s *Store) SaveRun(ctx context.Context, report *domain.ExecutionReport) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("%w: run ID is required", domain.ErrInvalidInput)
	}

	outcomes, err := json.Marshal(nonNil(report.Outcomes))
	if err != nil {
		return fmt.Errorf("marshalling outcomes: %w", err)
	}
	notices, err := json.Marshal(nonNil(report.Notices))
	if err != nil {
		return fmt.Errorf("marshalling notices: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_id, state, iterations, outcomes, notices, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			state = excluded.state,
			iterations = excluded.iterations,
			outcomes = excluded.outcomes,
			notices = excluded.notices,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
		report.RunID,
		report.ProjectID,
		string(report.State),
		report.Iterations,
		string(outcomes),
		string(notices),
		toUnix(report.StartedAt),
		toUnix(report.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// AppendEvent records a progress event for a run.
func (s *Store) AppendEvent(ctx context.Context, runID string, event domain.ProgressEvent) error {
	at := event.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (run_id, kind, state, task_id, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, string(event.Kind), string(event.State), event.TaskID, event.Message, toUnix(at))
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.ExecutionReport, error) {
	query := `
		SELECT id, project_id, state, iterations, outcomes, notices, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.ExecutionReport
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.ExecutionReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, state, iterations, outcomes, notices, started_at, finished_at
		FROM runs WHERE id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}
	return scanRun(rows)
}

// GetEvents returns the events of a run in the order they were recorded.
func (s *Store) GetEvents(ctx context.Context, runID string) ([]domain.ProgressEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, state, task_id, message, created_at
		FROM run_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	defer rows.Close()

	var events []domain.ProgressEvent
	for rows.Next() {
		var (
			kind, state string
			createdAt   int64
			ev          domain.ProgressEvent
		)
		if err := rows.Scan(&kind, &state, &ev.TaskID, &ev.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Kind = domain.ProgressKind(kind)
		ev.State = domain.ExecutionState(state)
		ev.Time = fromUnix(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanRun(rows *sql.Rows) (*domain.ExecutionReport, error) {
	var (
		run                   domain.ExecutionReport
		state                 string
		outcomes, notices     string
		startedAt, finishedAt int64
	)
	if err := rows.Scan(&run.RunID, &run.ProjectID, &state, &run.Iterations,
		&outcomes, &notices, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.State = domain.ExecutionState(state)
	run.StartedAt = fromUnix(startedAt)
	run.FinishedAt = fromUnix(finishedAt)

	if err := json.Unmarshal([]byte(outcomes), &run.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshalling outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(notices), &run.Notices); err != nil {
		return nil, fmt.Errorf("unmarshalling notices: %w", err)
	}
	return &run, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Times are stored as Unix nanoseconds; zero means unset.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
