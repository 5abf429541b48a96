package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// migrate executes schema migrations in order, recording each in the
// schema_migrations table.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading migration version: %w", err)
	}

	migrations := []migration{
		{version: 1, name: "executions_and_policy", up: s.migration001ExecutionsAndPolicy},
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		s.log.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
	}

	return nil
}

// migration001ExecutionsAndPolicy creates the initial schema: the
// executions audit trail and the policy table.
func (s *SQLiteStore) migration001ExecutionsAndPolicy() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			context_signature TEXT NOT NULL,
			success INTEGER NOT NULL,
			execution_time_ms INTEGER NOT NULL,
			user_rating INTEGER,
			user_feedback TEXT,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating executions table: %w", err)
	}

	// tool_name index backs the statistics aggregates used in scoring.
	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_executions_tool
		ON executions(tool_name)
	`); err != nil {
		return fmt.Errorf("creating executions tool index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_executions_created
		ON executions(created_at DESC)
	`); err != nil {
		return fmt.Errorf("creating executions created index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS policy (
			context_signature TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			value REAL NOT NULL,
			visit_count INTEGER NOT NULL,
			last_updated TEXT NOT NULL,
			PRIMARY KEY (context_signature, tool_name)
		)
	`); err != nil {
		return fmt.Errorf("creating policy table: %w", err)
	}

	return nil
}
