package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertExecution persists a new execution record.
func (s *SQLiteStore) InsertExecution(ctx context.Context, rec *ExecutionRecord) error {
	_, err := s.execWrite(ctx, `
		INSERT INTO executions (id, tool_name, context_signature, success, execution_time_ms, user_rating, user_feedback, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)
	`,
		rec.ID,
		rec.ToolName,
		rec.ContextSignature,
		boolToInt(rec.Success),
		rec.ExecutionTimeMs,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution record by id.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*ExecutionRecord, error) {
	db, err := s.reader()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, tool_name, context_signature, success, execution_time_ms, user_rating, user_feedback, created_at
		FROM executions
		WHERE id = ?
	`, id)

	rec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading execution %s: %w", id, err)
	}
	return rec, nil
}

// ListExecutions returns recent executions, newest first. An empty toolName
// matches all tools.
func (s *SQLiteStore) ListExecutions(ctx context.Context, toolName string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tool_name, context_signature, success, execution_time_ms, user_rating, user_feedback, created_at
		FROM executions
	`
	args := []any{}
	if toolName != "" {
		query += " WHERE tool_name = ?"
		args = append(args, toolName)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	db, err := s.reader()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning execution row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// SetRating attaches a rating to an execution. The UPDATE is conditional on
// user_rating IS NULL, so the first write wins and a concurrent duplicate
// cannot sneak past the check.
func (s *SQLiteStore) SetRating(ctx context.Context, id string, rating int, feedback string) error {
	res, err := s.execWrite(ctx, `
		UPDATE executions
		SET user_rating = ?, user_feedback = NULLIF(?, '')
		WHERE id = ? AND user_rating IS NULL
	`, rating, feedback, id)
	if err != nil {
		return fmt.Errorf("setting rating: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting rating: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: either the id is unknown or already rated.
	if _, err := s.GetExecution(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyRated
}

// ClearRating returns an execution to the unrated state so a rating whose
// follow-on work failed can be retried.
func (s *SQLiteStore) ClearRating(ctx context.Context, id string) error {
	res, err := s.execWrite(ctx, `
		UPDATE executions
		SET user_rating = NULL, user_feedback = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("clearing rating: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clearing rating: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup removes executions older than the retention window. Policy rows
// are never pruned.
func (s *SQLiteStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	res, err := s.execWrite(ctx, "DELETE FROM executions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up executions: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*ExecutionRecord, error) {
	var (
		rec       ExecutionRecord
		success   int
		rating    sql.NullInt64
		feedback  sql.NullString
		createdAt string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.ToolName,
		&rec.ContextSignature,
		&success,
		&rec.ExecutionTimeMs,
		&rating,
		&feedback,
		&createdAt,
	); err != nil {
		return nil, err
	}

	rec.Success = success == 1
	if rating.Valid {
		r := int(rating.Int64)
		rec.UserRating = &r
	}
	if feedback.Valid {
		rec.UserFeedback = feedback.String
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = ts

	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
