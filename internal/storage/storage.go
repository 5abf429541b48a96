/*
Package storage implements the durable stores backing the learning core.

Two tables live in a single SQLite database: executions (one row per tool
invocation, the audit trail and statistics source) and policy (one row per
(context_signature, tool_name) learned value estimate). The database uses
modernc.org/sqlite (a pure Go, CGo-free implementation) with WAL mode so
concurrent readers never block the single writer.

Unlike a cache, nothing here degrades silently: every operation either
completes fully or returns an error the caller can act on. Transient write
conflicts are retried a bounded number of times and then surfaced as
ErrConflict; an unreachable database surfaces as ErrUnavailable.
*/
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store operations. Callers match with errors.Is.
var (
	// ErrNotFound indicates the requested execution does not exist.
	ErrNotFound = errors.New("storage: record not found")

	// ErrAlreadyRated indicates a rating was already attached to the execution.
	ErrAlreadyRated = errors.New("storage: execution already rated")

	// ErrConflict indicates a write conflict that persisted across retries.
	ErrConflict = errors.New("storage: write conflict")

	// ErrUnavailable indicates the database could not be reached.
	ErrUnavailable = errors.New("storage: database unavailable")
)

// timeLayout is fixed-width UTC so stored timestamps sort lexicographically
// the same way they sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	// busyRetries bounds the retry loop on SQLITE_BUSY before giving up.
	busyRetries = 5

	// busyBackoff is the delay between retries on a busy database.
	busyBackoff = 10 * time.Millisecond
)

// Store defines the persistence operations the learning core depends on.
type Store interface {
	// InsertExecution persists a new execution record.
	InsertExecution(ctx context.Context, rec *ExecutionRecord) error

	// GetExecution retrieves an execution record by id.
	GetExecution(ctx context.Context, id string) (*ExecutionRecord, error)

	// ListExecutions returns recent executions, newest first. An empty
	// toolName matches all tools.
	ListExecutions(ctx context.Context, toolName string, limit int) ([]ExecutionRecord, error)

	// SetRating attaches a user rating (and optional free-text feedback)
	// to an execution. The first write wins: a second call returns
	// ErrAlreadyRated regardless of the value.
	SetRating(ctx context.Context, id string, rating int, feedback string) error

	// ClearRating returns an execution to the unrated state. It exists so
	// a caller can roll back a rating whose follow-on work failed; it is
	// not part of the public rating lifecycle.
	ClearRating(ctx context.Context, id string) error

	// GetPolicy returns the policy entry for a (context, tool) pair.
	// Unknown pairs return a zero entry with VisitCount 0, not an error.
	GetPolicy(ctx context.Context, contextSig, toolName string) (PolicyEntry, error)

	// UpsertPolicy writes a new value estimate for a (context, tool) pair,
	// incrementing the visit count.
	UpsertPolicy(ctx context.Context, contextSig, toolName string, value float64) error

	// PolicyByContext returns all known policy entries for a context.
	// Order is unspecified; callers sort.
	PolicyByContext(ctx context.Context, contextSig string) ([]PolicyEntry, error)

	// ToolStats returns aggregate execution statistics for a tool.
	ToolStats(ctx context.Context, toolName string) (ToolStats, error)

	// AllToolStats returns aggregate statistics for every tool with at
	// least one recorded execution.
	AllToolStats(ctx context.Context) ([]ToolStats, error)

	// AvgExecutionTime returns the historical mean latency for a tool in
	// milliseconds, or 0 if the tool has never run.
	AvgExecutionTime(ctx context.Context, toolName string) (float64, error)

	// Cleanup removes executions older than the retention window.
	// Policy rows are never pruned.
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)

	// Close closes the database connection.
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *zap.Logger

	// mu serializes writes. SQLite allows one writer at a time; taking the
	// lock in-process avoids burning busy retries under contention.
	mu sync.Mutex
}

// Open opens (creating if necessary) the database at dbPath and runs
// migrations. The parent directory is created if missing.
func Open(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log.Debug("storage opened", zap.String("path", dbPath))
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// reader returns the database handle for read paths with the same guard as
// execWrite, so a read after Close surfaces ErrUnavailable instead of
// dereferencing a nil handle.
func (s *SQLiteStore) reader() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrUnavailable
	}
	return s.db, nil
}

// execWrite runs a write statement under the writer lock with bounded
// retries on SQLITE_BUSY. Exhausted retries surface as ErrConflict.
func (s *SQLiteStore) execWrite(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrUnavailable
	}

	var lastErr error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(busyBackoff):
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

// isBusy reports whether err is a transient SQLITE_BUSY/locked condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
