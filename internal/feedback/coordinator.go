/*
Package feedback bridges execution records and the policy engine.

The coordinator owns the execution record lifecycle: it records completed
invocations, attaches delayed user ratings, and guarantees the exactly-once
policy update contract — one update when an execution is recorded, and at
most one more when its rating arrives. The engine itself has no
deduplication; this package is where that invariant lives.
*/
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/epmlabs/planning-agent/internal/policy"
	"github.com/epmlabs/planning-agent/internal/reward"
	"github.com/epmlabs/planning-agent/internal/storage"
)

// Coordinator records executions and applies their reward signals.
type Coordinator struct {
	store  storage.Store
	calc   *reward.Calculator
	engine *policy.Engine
	log    *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator. The engine decides for itself
// whether learning is enabled; with learning off the coordinator still
// persists executions for audit and statistics.
func NewCoordinator(store storage.Store, calc *reward.Calculator, engine *policy.Engine, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:  store,
		calc:   calc,
		engine: engine,
		log:    log,
		now:    time.Now,
	}
}

// RecordExecution persists one completed tool invocation and applies the
// immediate policy update. It must be called exactly once per invocation,
// after the outcome is known; cancelled or timed-out invocations with no
// definite outcome must not be recorded at all.
//
// The returned id is the sole handle for later rating attachment.
func (c *Coordinator) RecordExecution(ctx context.Context, toolName, contextSig string, success bool, executionTimeMs int64) (string, error) {
	rec := &storage.ExecutionRecord{
		ID:               uuid.NewString(),
		ToolName:         toolName,
		ContextSignature: contextSig,
		Success:          success,
		ExecutionTimeMs:  executionTimeMs,
		CreatedAt:        c.now().UTC(),
	}

	// Validate before touching any state.
	if err := reward.Validate(rec); err != nil {
		return "", err
	}

	// The average is read before this execution is inserted, so the speed
	// bonus compares against history that does not include the run itself.
	avgMs, err := c.store.AvgExecutionTime(ctx, toolName)
	if err != nil {
		return "", fmt.Errorf("record execution: %w", err)
	}

	if err := c.store.InsertExecution(ctx, rec); err != nil {
		return "", fmt.Errorf("record execution: %w", err)
	}

	r, err := c.calc.Compute(rec, avgMs)
	if err != nil {
		return "", err
	}

	// Immediate update. No next step is known, so the state is terminal
	// and the future-value term is zero.
	if err := c.engine.UpdatePolicy(ctx, toolName, contextSig, r, ""); err != nil {
		return "", fmt.Errorf("record execution: %w", err)
	}

	c.log.Info("execution recorded",
		zap.String("id", rec.ID),
		zap.String("tool", toolName),
		zap.Bool("success", success),
		zap.Int64("time_ms", executionTimeMs),
		zap.Float64("reward", r),
	)
	return rec.ID, nil
}

// AttachRating attaches a delayed user rating to a previously recorded
// execution and applies exactly one additional policy update with the
// recomputed reward. The first rating wins; later attempts fail with
// AlreadyRatedError and change nothing.
func (c *Coordinator) AttachRating(ctx context.Context, executionID string, rating int, feedbackText string) error {
	if rating < 1 || rating > 5 {
		return &InvalidRatingError{Rating: rating}
	}

	rec, err := c.store.GetExecution(ctx, executionID)
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ExecutionID: executionID}
	}
	if err != nil {
		return fmt.Errorf("attach rating: %w", err)
	}

	// The conditional write is what makes the transition one-way even
	// under concurrent duplicate submissions.
	err = c.store.SetRating(ctx, executionID, rating, feedbackText)
	if errors.Is(err, storage.ErrAlreadyRated) {
		return &AlreadyRatedError{ExecutionID: executionID, Rating: derefRating(rec.UserRating)}
	}
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ExecutionID: executionID}
	}
	if err != nil {
		return fmt.Errorf("attach rating: %w", err)
	}

	rec.UserRating = &rating
	rec.UserFeedback = feedbackText

	// The rating is committed; if the delayed update cannot be applied the
	// rating must come back out, otherwise a retry would be rejected as a
	// duplicate and the policy update lost for good.
	r, err := c.delayedUpdate(ctx, rec)
	if err != nil {
		if rbErr := c.store.ClearRating(ctx, executionID); rbErr != nil {
			c.log.Error("rating rollback failed, execution stuck rated without policy update",
				zap.String("id", executionID), zap.Error(rbErr))
		}
		return err
	}

	c.log.Info("rating attached",
		zap.String("id", executionID),
		zap.String("tool", rec.ToolName),
		zap.Int("rating", rating),
		zap.Float64("reward", r),
	)
	return nil
}

// delayedUpdate recomputes the reward with the rating attached and applies
// the one delayed policy update.
func (c *Coordinator) delayedUpdate(ctx context.Context, rec *storage.ExecutionRecord) (float64, error) {
	avgMs, err := c.store.AvgExecutionTime(ctx, rec.ToolName)
	if err != nil {
		return 0, fmt.Errorf("attach rating: %w", err)
	}

	r, err := c.calc.Compute(rec, avgMs)
	if err != nil {
		return 0, err
	}

	if err := c.engine.UpdatePolicy(ctx, rec.ToolName, rec.ContextSignature, r, ""); err != nil {
		return 0, fmt.Errorf("attach rating: %w", err)
	}
	return r, nil
}

// RecentExecutions lists recent executions for rating interfaces. An empty
// toolName matches all tools.
func (c *Coordinator) RecentExecutions(ctx context.Context, toolName string, limit int) ([]storage.ExecutionRecord, error) {
	return c.store.ListExecutions(ctx, toolName, limit)
}

// ToolMetrics returns per-tool aggregate statistics for dashboards.
func (c *Coordinator) ToolMetrics(ctx context.Context) ([]storage.ToolStats, error) {
	return c.store.AllToolStats(ctx)
}

func derefRating(r *int) int {
	if r == nil {
		return 0
	}
	return *r
}
