package storage

import "time"

// ExecutionRecord represents a single completed tool invocation.
//
// All fields except UserRating and UserFeedback are immutable after
// creation. A rating is attached at most once (first write wins), which is
// what keeps delayed policy updates exactly-once.
type ExecutionRecord struct {
	// ID is the unique execution identifier (UUID), assigned at creation.
	ID string `json:"id"`

	// ToolName is the invoked capability.
	ToolName string `json:"tool_name"`

	// ContextSignature summarizes the situational context under which the
	// tool was chosen. It is the state in the learning formulation.
	ContextSignature string `json:"context_signature"`

	// Success is the boolean outcome of the invocation.
	Success bool `json:"success"`

	// ExecutionTimeMs is the invocation latency in milliseconds.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// UserRating is the 1-5 feedback rating, or nil until feedback arrives.
	UserRating *int `json:"user_rating,omitempty"`

	// UserFeedback is optional free-text feedback attached with the rating.
	UserFeedback string `json:"user_feedback,omitempty"`

	// CreatedAt is when the execution was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Rated reports whether a user rating has been attached.
func (r *ExecutionRecord) Rated() bool { return r.UserRating != nil }

// PolicyEntry is the learned value estimate for a (context, tool) pair.
//
// A VisitCount of 0 means the pair has never been updated; that is the only
// way callers can distinguish "never seen" from "seen with value 0".
type PolicyEntry struct {
	// ContextSignature identifies the state half of the pair.
	ContextSignature string `json:"context_signature"`

	// ToolName identifies the action half of the pair.
	ToolName string `json:"tool_name"`

	// Value is the running value estimate.
	Value float64 `json:"value"`

	// VisitCount is the number of updates applied to this entry.
	VisitCount int `json:"visit_count"`

	// LastUpdated is when the entry was last written.
	LastUpdated time.Time `json:"last_updated"`
}

// ToolStats are read-only aggregates over a tool's execution history,
// consumed by recommendation scoring and the metrics endpoint. Slightly
// stale values are acceptable; they skew confidence marginally but violate
// no invariant.
type ToolStats struct {
	// ToolName identifies the tool.
	ToolName string `json:"tool_name"`

	// TotalCalls is the number of recorded executions.
	TotalCalls int `json:"total_calls"`

	// SuccessRate is the fraction of successful executions, in [0,1].
	SuccessRate float64 `json:"success_rate"`

	// AvgRating is the mean user rating over rated executions, or 0 if
	// none have been rated.
	AvgRating float64 `json:"avg_rating"`

	// RatedCalls is the number of executions carrying a rating.
	RatedCalls int `json:"rated_calls"`

	// AvgTimeMs is the mean execution latency in milliseconds.
	AvgTimeMs float64 `json:"avg_time_ms"`
}
