package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Transition is one audit record of a lifecycle phase change.
type Transition struct {
	// ID is the record's database identifier.
	ID int64 `json:"id"`

	// Environment is the environment name.
	Environment string `json:"environment"`

	// FromPhase is the phase the environment left.
	FromPhase string `json:"from_phase"`

	// ToPhase is the phase the environment entered.
	ToPhase string `json:"to_phase"`

	// TraceID is the failure trace id when the transition entered a
	// failure phase, nil otherwise.
	TraceID *string `json:"trace_id,omitempty"`

	// OccurredAt is when the transition happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// HistoryStore keeps the transition audit log in SQLite.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// HistoryConfig holds HistoryStore configuration.
type HistoryConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewHistoryStore creates a new history store instance.
func NewHistoryStore(cfg HistoryConfig) (*HistoryStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &HistoryStore{path: cfg.Path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *HistoryStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *HistoryStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Append records one phase transition.
func (s *HistoryStore) Append(ctx context.Context, t *Transition) error {
	query := `
		INSERT INTO transitions (environment, from_phase, to_phase, trace_id, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		t.Environment,
		t.FromPhase,
		t.ToPhase,
		t.TraceID,
		t.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transition id: %w", err)
	}
	t.ID = id
	return nil
}

// List returns the transitions recorded for an environment, most recent
// first, up to limit.
func (s *HistoryStore) List(ctx context.Context, environment string, limit int) ([]*Transition, error) {
	query := `
		SELECT id, environment, from_phase, to_phase, trace_id, occurred_at
		FROM transitions
		WHERE environment = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, environment, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []*Transition{}
	for rows.Next() {
		t := &Transition{}
		err := rows.Scan(
			&t.ID,
			&t.Environment,
			&t.FromPhase,
			&t.ToPhase,
			&t.TraceID,
			&t.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return transitions, nil
}

// ListAll returns the most recent transitions across every environment,
// up to limit.
func (s *HistoryStore) ListAll(ctx context.Context, limit int) ([]*Transition, error) {
	query := `
		SELECT id, environment, from_phase, to_phase, trace_id, occurred_at
		FROM transitions
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := []*Transition{}
	for rows.Next() {
		t := &Transition{}
		err := rows.Scan(
			&t.ID,
			&t.Environment,
			&t.FromPhase,
			&t.ToPhase,
			&t.TraceID,
			&t.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return transitions, nil
}

// DeleteEnvironment removes every transition recorded for an
// environment. Used when an environment is destroyed and purged.
func (s *HistoryStore) DeleteEnvironment(ctx context.Context, environment string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transitions WHERE environment = ?`, environment)
	if err != nil {
		return fmt.Errorf("failed to delete transitions: %w", err)
	}
	return nil
}
