/*
Package reward turns a completed tool execution into a scalar reward.

The calculation is a pure function of the execution record and the tool's
historical average latency: no I/O, no side effects. It is called twice per
rated execution — once immediately after the outcome is known (no rating),
and once more when a user rating arrives.

With the default weights the realistic range is [-9.0, +16.0]: success alone
spans -5 to +10, a rating shifts that by up to ±4, and the performance bonus
adds up to +2. Values are deliberately not clamped; clamping would change
the learning dynamics.
*/
package reward

import "github.com/epmlabs/planning-agent/internal/storage"

// Weights are the reward hyperparameters. The defaults reproduce the
// behavior the policy was originally tuned against; they are exposed for
// experimentation, not because any of them is known to be optimal.
type Weights struct {
	// Success is the base term for a successful execution.
	Success float64

	// Failure is the base term for a failed execution.
	Failure float64

	// RatingScale multiplies (rating - 3), centering a neutral rating of 3
	// at zero.
	RatingScale float64

	// SpeedBonus is added when the execution beat SpeedThreshold times the
	// tool's historical average latency.
	SpeedBonus float64

	// SpeedThreshold is the fraction of the historical average an execution
	// must come in under to earn the bonus.
	SpeedThreshold float64
}

// DefaultWeights returns the standard reward weighting.
func DefaultWeights() Weights {
	return Weights{
		Success:        10.0,
		Failure:        -5.0,
		RatingScale:    2.0,
		SpeedBonus:     2.0,
		SpeedThreshold: 0.8,
	}
}

// Calculator computes rewards from execution records.
type Calculator struct {
	weights Weights
}

// NewCalculator creates a Calculator with the given weights.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{weights: w}
}

// Compute derives the reward for an execution record. avgTimeMs is the
// tool's historical average latency; pass 0 when no history exists, which
// disables the speed bonus.
//
// The rating term is applied only when the record carries a rating, so the
// same function serves both the immediate and the delayed update.
func (c *Calculator) Compute(rec *storage.ExecutionRecord, avgTimeMs float64) (float64, error) {
	if err := Validate(rec); err != nil {
		return 0, err
	}

	r := c.weights.Failure
	if rec.Success {
		r = c.weights.Success
	}

	if rec.UserRating != nil {
		r += float64(*rec.UserRating-3) * c.weights.RatingScale
	}

	if avgTimeMs > 0 && float64(rec.ExecutionTimeMs) < c.weights.SpeedThreshold*avgTimeMs {
		r += c.weights.SpeedBonus
	}

	return r, nil
}

// Validate checks that a record is well-formed enough to reward.
func Validate(rec *storage.ExecutionRecord) error {
	if rec == nil {
		return &InvalidInputError{Field: "record", Reason: "nil execution record"}
	}
	if rec.ToolName == "" {
		return &InvalidInputError{Field: "tool_name", Reason: "must not be empty"}
	}
	if rec.ExecutionTimeMs < 0 {
		return &InvalidInputError{Field: "execution_time_ms", Reason: "must be non-negative"}
	}
	if rec.UserRating != nil && (*rec.UserRating < 1 || *rec.UserRating > 5) {
		return &InvalidInputError{Field: "user_rating", Reason: "must be between 1 and 5"}
	}
	return nil
}
