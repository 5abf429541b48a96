package policy

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/epmlabs/planning-agent/internal/storage"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := NewEngine(store, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return engine, store
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "alpha zero", mutate: func(c *Config) { c.LearningRate = 0 }, wantErr: true},
		{name: "alpha above one", mutate: func(c *Config) { c.LearningRate = 1.5 }, wantErr: true},
		{name: "alpha one is legal", mutate: func(c *Config) { c.LearningRate = 1 }},
		{name: "gamma one", mutate: func(c *Config) { c.DiscountFactor = 1 }, wantErr: true},
		{name: "gamma negative", mutate: func(c *Config) { c.DiscountFactor = -0.1 }, wantErr: true},
		{name: "epsilon above one", mutate: func(c *Config) { c.ExplorationRate = 1.01 }, wantErr: true},
		{name: "negative min samples", mutate: func(c *Config) { c.MinSamples = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdatePolicyFirstObservation(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// No prior entries anywhere: Q moves from 0 toward alpha * reward.
	require.NoError(t, engine.UpdatePolicy(ctx, "smart_retrieve", "ctx_A", 12.0, "ctx_A"))

	entry, err := store.GetPolicy(ctx, "ctx_A", "smart_retrieve")
	require.NoError(t, err)
	assert.InDelta(t, 0.3*12.0, entry.Value, 1e-9)
	assert.Equal(t, 1, entry.VisitCount)
}

func TestUpdatePolicyUsesFutureValue(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// Seed the next context with two entries; the max must be used.
	require.NoError(t, store.UpsertPolicy(ctx, "ctx_next", "low", 1.0))
	require.NoError(t, store.UpsertPolicy(ctx, "ctx_next", "high", 4.0))

	require.NoError(t, engine.UpdatePolicy(ctx, "tool", "ctx_A", 10.0, "ctx_next"))

	entry, err := store.GetPolicy(ctx, "ctx_A", "tool")
	require.NoError(t, err)
	// Q = 0 + 0.3 * (10 + 0.95*4 - 0)
	assert.InDelta(t, 0.3*(10.0+0.95*4.0), entry.Value, 1e-9)
}

func TestUpdatePolicyUnknownNextContextIsTerminal(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, engine.UpdatePolicy(ctx, "tool", "ctx_A", -5.0, "never_seen"))

	entry, err := store.GetPolicy(ctx, "ctx_A", "tool")
	require.NoError(t, err)
	assert.InDelta(t, 0.3*-5.0, entry.Value, 1e-9)
}

func TestUpdatePolicyConvergesTowardReward(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscountFactor = 0 // isolate the reward term
	engine, store := newTestEngine(t, cfg)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, engine.UpdatePolicy(ctx, "tool", "ctx", 10.0, "ctx"))
	}

	entry, err := store.GetPolicy(ctx, "ctx", "tool")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, entry.Value, 0.01)
	assert.Equal(t, 50, entry.VisitCount)
}

func TestUpdatePolicyDisabledIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	engine, store := newTestEngine(t, cfg)
	ctx := context.Background()

	require.NoError(t, engine.UpdatePolicy(ctx, "tool", "ctx", 10.0, "ctx"))

	entry, err := store.GetPolicy(ctx, "ctx", "tool")
	require.NoError(t, err)
	assert.Equal(t, 0, entry.VisitCount)
}

func TestUpdatePolicyEmptyTool(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())
	assert.Error(t, engine.UpdatePolicy(context.Background(), "", "ctx", 1.0, "ctx"))
}

// Concurrent updates to the same pair serialize: every visit lands and the
// final value matches sequential application. With the entry referencing
// itself as next state and a constant reward, the sequential result is the
// same for every ordering, so it can be computed exactly.
func TestUpdatePolicyConcurrentSameKey(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	const n = 20
	const reward = 10.0

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- engine.UpdatePolicy(ctx, "get_members", "ctx_B", reward, "ctx_B")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	expected := 0.0
	for i := 0; i < n; i++ {
		expected += 0.3 * (reward + 0.95*expected - expected)
	}

	entry, err := store.GetPolicy(ctx, "ctx_B", "get_members")
	require.NoError(t, err)
	assert.Equal(t, n, entry.VisitCount)
	assert.InDelta(t, expected, entry.Value, 1e-6)
}

func TestSetEpsilon(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())

	require.NoError(t, engine.SetEpsilon(0.5))
	assert.InDelta(t, 0.5, engine.Epsilon(), 1e-9)

	assert.Error(t, engine.SetEpsilon(-0.1))
	assert.Error(t, engine.SetEpsilon(1.1))
	assert.InDelta(t, 0.5, engine.Epsilon(), 1e-9)
}
