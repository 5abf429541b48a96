package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPolicy returns the policy entry for a (context, tool) pair. Unknown
// pairs return a zero entry with VisitCount 0, not an error.
func (s *SQLiteStore) GetPolicy(ctx context.Context, contextSig, toolName string) (PolicyEntry, error) {
	entry := PolicyEntry{ContextSignature: contextSig, ToolName: toolName}

	db, err := s.reader()
	if err != nil {
		return entry, err
	}

	var lastUpdated string
	err = db.QueryRowContext(ctx, `
		SELECT value, visit_count, last_updated
		FROM policy
		WHERE context_signature = ? AND tool_name = ?
	`, contextSig, toolName).Scan(&entry.Value, &entry.VisitCount, &lastUpdated)

	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return entry, fmt.Errorf("loading policy entry: %w", err)
	}

	ts, err := time.Parse(timeLayout, lastUpdated)
	if err != nil {
		return entry, fmt.Errorf("parsing last_updated: %w", err)
	}
	entry.LastUpdated = ts

	return entry, nil
}

// UpsertPolicy writes a new value estimate for a (context, tool) pair,
// incrementing the visit count. The statement is a single atomic
// INSERT ... ON CONFLICT, so a concurrent upsert to the same key cannot
// lose the visit increment.
func (s *SQLiteStore) UpsertPolicy(ctx context.Context, contextSig, toolName string, value float64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.execWrite(ctx, `
		INSERT INTO policy (context_signature, tool_name, value, visit_count, last_updated)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (context_signature, tool_name)
		DO UPDATE SET value = excluded.value,
		              visit_count = policy.visit_count + 1,
		              last_updated = excluded.last_updated
	`, contextSig, toolName, value, now)
	if err != nil {
		return fmt.Errorf("upserting policy entry: %w", err)
	}
	return nil
}

// PolicyByContext returns all known policy entries for a context. Order is
// unspecified; callers sort.
func (s *SQLiteStore) PolicyByContext(ctx context.Context, contextSig string) ([]PolicyEntry, error) {
	db, err := s.reader()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tool_name, value, visit_count, last_updated
		FROM policy
		WHERE context_signature = ?
	`, contextSig)
	if err != nil {
		return nil, fmt.Errorf("querying policy by context: %w", err)
	}
	defer rows.Close()

	var out []PolicyEntry
	for rows.Next() {
		entry := PolicyEntry{ContextSignature: contextSig}
		var lastUpdated string
		if err := rows.Scan(&entry.ToolName, &entry.Value, &entry.VisitCount, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		ts, err := time.Parse(timeLayout, lastUpdated)
		if err != nil {
			return nil, fmt.Errorf("parsing last_updated: %w", err)
		}
		entry.LastUpdated = ts
		out = append(out, entry)
	}
	return out, rows.Err()
}
