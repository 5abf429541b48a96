package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// statsQuery computes all per-tool aggregates in one pass over executions.
const statsQuery = `
	SELECT tool_name,
	       COUNT(*) AS total_calls,
	       AVG(success) AS success_rate,
	       COALESCE(AVG(user_rating), 0) AS avg_rating,
	       COUNT(user_rating) AS rated_calls,
	       AVG(execution_time_ms) AS avg_time_ms
	FROM executions
`

// ToolStats returns aggregate execution statistics for a tool. A tool with
// no recorded executions returns zero-valued stats.
func (s *SQLiteStore) ToolStats(ctx context.Context, toolName string) (ToolStats, error) {
	stats := ToolStats{ToolName: toolName}

	db, err := s.reader()
	if err != nil {
		return stats, err
	}

	row := db.QueryRowContext(ctx, statsQuery+" WHERE tool_name = ? GROUP BY tool_name", toolName)
	err = row.Scan(
		&stats.ToolName,
		&stats.TotalCalls,
		&stats.SuccessRate,
		&stats.AvgRating,
		&stats.RatedCalls,
		&stats.AvgTimeMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// No history for this tool, which is not an error here.
		return ToolStats{ToolName: toolName}, nil
	}
	if err != nil {
		return stats, fmt.Errorf("computing stats for %s: %w", toolName, err)
	}

	return stats, nil
}

// AllToolStats returns aggregate statistics for every tool with at least
// one recorded execution, ordered by call volume.
func (s *SQLiteStore) AllToolStats(ctx context.Context) ([]ToolStats, error) {
	db, err := s.reader()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, statsQuery+" GROUP BY tool_name ORDER BY total_calls DESC, tool_name ASC")
	if err != nil {
		return nil, fmt.Errorf("computing tool stats: %w", err)
	}
	defer rows.Close()

	var out []ToolStats
	for rows.Next() {
		var stats ToolStats
		if err := rows.Scan(
			&stats.ToolName,
			&stats.TotalCalls,
			&stats.SuccessRate,
			&stats.AvgRating,
			&stats.RatedCalls,
			&stats.AvgTimeMs,
		); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// AvgExecutionTime returns the historical mean latency for a tool in
// milliseconds, or 0 if the tool has never run.
func (s *SQLiteStore) AvgExecutionTime(ctx context.Context, toolName string) (float64, error) {
	db, err := s.reader()
	if err != nil {
		return 0, err
	}

	var avg float64
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(execution_time_ms), 0)
		FROM executions
		WHERE tool_name = ?
	`, toolName).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("computing average execution time for %s: %w", toolName, err)
	}
	return avg, nil
}
