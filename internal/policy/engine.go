/*
Package policy implements the tool-selection learning engine.

The engine maintains a tabular value estimate per (context signature, tool)
pair in the policy store and answers ranking queries over it. Learning is
standard incremental Q-updates:

	Q ← Q + α(r + γ·max_a Q(next, a) − Q)

A context with no known next step is treated as terminal (zero future
value). The engine itself is stateless aside from configuration; exactly-once
triggering of updates is the feedback coordinator's responsibility, and the
engine trusts its callers on that.
*/
package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/epmlabs/planning-agent/internal/storage"
)

// Config holds the learning hyperparameters.
type Config struct {
	// Enabled gates learning and the Q-value ranking term. When false,
	// recommendations fall back to execution statistics alone.
	Enabled bool

	// LearningRate is α in (0, 1]: how far each update moves the estimate
	// toward the observed target.
	LearningRate float64

	// DiscountFactor is γ in [0, 1): the weight of future value.
	DiscountFactor float64

	// ExplorationRate is ε in [0, 1]: the probability SelectTool picks
	// uniformly at random instead of exploiting the ranking.
	ExplorationRate float64

	// MinSamples is the number of recorded executions a tool needs before
	// its historical success rate influences ranking. Below it a perfect
	// rate is just small-sample noise.
	MinSamples int
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		LearningRate:    0.3,
		DiscountFactor:  0.95,
		ExplorationRate: 0.1,
		MinSamples:      3,
	}
}

// Validate bounds-checks the hyperparameters.
func (c Config) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %v", c.LearningRate)
	}
	if c.DiscountFactor < 0 || c.DiscountFactor >= 1 {
		return fmt.Errorf("discount_factor must be in [0, 1), got %v", c.DiscountFactor)
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate must be in [0, 1], got %v", c.ExplorationRate)
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("min_samples must be non-negative, got %d", c.MinSamples)
	}
	return nil
}

// Engine applies policy updates and serves recommendation queries.
type Engine struct {
	store storage.Store
	log   *zap.Logger

	mu  sync.Mutex
	cfg Config
	rng *rand.Rand

	// keys serializes read-modify-write update cycles per (context, tool)
	// pair. Updates to different pairs proceed in parallel.
	keys keyedMutex
}

// NewEngine creates an Engine backed by the given store.
func NewEngine(store storage.Store, cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policy config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store: store,
		log:   log,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Seed reseeds the exploration source. Tests use this for reproducible
// ε-greedy behavior.
func (e *Engine) Seed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rand.New(rand.NewSource(seed))
}

// Enabled reports whether learning is active.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Enabled
}

// Epsilon returns the current exploration rate.
func (e *Engine) Epsilon() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.ExplorationRate
}

// SetEpsilon updates the exploration rate. Decay schedules are a caller
// policy; the engine never decays ε on its own.
func (e *Engine) SetEpsilon(eps float64) error {
	if eps < 0 || eps > 1 {
		return fmt.Errorf("exploration_rate must be in [0, 1], got %v", eps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.ExplorationRate = eps
	return nil
}

// UpdatePolicy applies one Q-update for (contextSig, toolName) given an
// observed reward. nextContextSig names the context the session moved to;
// pass "" when no next step is known, which makes the step terminal with
// zero future value.
//
// The read-modify-write is serialized per key, so concurrent updates to the
// same pair cannot lose increments.
func (e *Engine) UpdatePolicy(ctx context.Context, toolName, contextSig string, reward float64, nextContextSig string) error {
	if !e.Enabled() {
		return nil
	}
	if toolName == "" {
		return fmt.Errorf("update policy: tool name must not be empty")
	}

	unlock := e.keys.lock(contextSig + "\x00" + toolName)
	defer unlock()

	entry, err := e.store.GetPolicy(ctx, contextSig, toolName)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	future, err := e.maxFutureValue(ctx, nextContextSig)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	e.mu.Lock()
	alpha, gamma := e.cfg.LearningRate, e.cfg.DiscountFactor
	e.mu.Unlock()

	target := reward + gamma*future
	updated := entry.Value + alpha*(target-entry.Value)

	if err := e.store.UpsertPolicy(ctx, contextSig, toolName, updated); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	e.log.Debug("policy updated",
		zap.String("tool", toolName),
		zap.String("context", contextSig),
		zap.Float64("reward", reward),
		zap.Float64("q_old", entry.Value),
		zap.Float64("q_new", updated),
		zap.Int("visits", entry.VisitCount+1),
	)
	return nil
}

// maxFutureValue returns max_a Q(next, a), or 0 when the next context has
// no entries. An unknown next state is a terminal state by convention.
func (e *Engine) maxFutureValue(ctx context.Context, nextContextSig string) (float64, error) {
	if nextContextSig == "" {
		return 0, nil
	}
	entries, err := e.store.PolicyByContext(ctx, nextContextSig)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	max := entries[0].Value
	for _, entry := range entries[1:] {
		if entry.Value > max {
			max = entry.Value
		}
	}
	return max, nil
}
