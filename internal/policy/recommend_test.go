package policy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epmlabs/planning-agent/internal/storage"
)

// seedExecutions inserts count executions for tool with the given outcome
// profile, bypassing the engine so no policy entries are created.
func seedExecutions(t *testing.T, store *storage.SQLiteStore, tool string, count int, success bool, timeMs int64, rating int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		require.NoError(t, store.InsertExecution(ctx, &storage.ExecutionRecord{
			ID:               id,
			ToolName:         tool,
			ContextSignature: "ctx",
			Success:          success,
			ExecutionTimeMs:  timeMs,
			CreatedAt:        time.Now(),
		}))
		if rating > 0 {
			require.NoError(t, store.SetRating(ctx, id, rating, ""))
		}
	}
}

func TestRecommendationsFactors(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// Well-sampled, always succeeds, highly rated, fast, with a learned
	// value of 1.5: every signal fires.
	seedExecutions(t, store, "star_tool", 5, true, 400, 5)
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "star_tool", 1.5))

	recs, err := engine.Recommendations(ctx, "ctx", []string{"star_tool"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.InDelta(t, 0.5, rec.Factors[FactorBase], 1e-9)
	assert.InDelta(t, 0.2, rec.Factors[FactorSuccessRate], 1e-9)
	assert.InDelta(t, 0.15, rec.Factors[FactorRating], 1e-9)
	assert.InDelta(t, 0.1, rec.Factors[FactorSpeed], 1e-9)
	assert.InDelta(t, 0.15, rec.Factors[FactorPolicy], 1e-9)
	assert.InDelta(t, 1.1, rec.Confidence, 1e-9)
	assert.Equal(t, 1, rec.VisitCount)
}

func TestRecommendationsPolicyContributionIsCapped(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// A runaway estimate must not dominate: contribution caps at 0.2.
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "outlier", 500.0))

	recs, err := engine.Recommendations(ctx, "ctx", []string{"outlier"})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, recs[0].Factors[FactorPolicy], 1e-9)
}

func TestRecommendationsNegativePolicyLowersConfidence(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "bad_tool", -3.0))

	recs, err := engine.Recommendations(ctx, "ctx", []string{"bad_tool", "unknown_tool"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "unknown_tool", recs[0].ToolName)
	assert.InDelta(t, 0.5, recs[0].Confidence, 1e-9)
	assert.InDelta(t, 0.5-0.3, recs[1].Confidence, 1e-9)
}

func TestRecommendationsSmallSampleSuccessIgnored(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// Two perfect runs are below min_samples: no success-rate bonus yet.
	seedExecutions(t, store, "new_tool", 2, true, 2000, 0)

	recs, err := engine.Recommendations(ctx, "ctx", []string{"new_tool"})
	require.NoError(t, err)
	_, ok := recs[0].Factors[FactorSuccessRate]
	assert.False(t, ok)

	// A third run crosses the threshold.
	seedExecutions(t, store, "new_tool", 1, true, 2000, 0)
	recs, err = engine.Recommendations(ctx, "ctx", []string{"new_tool"})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, recs[0].Factors[FactorSuccessRate], 1e-9)
}

// Identical underlying state yields identical ordering, call after call.
func TestRecommendationsDeterministic(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	seedExecutions(t, store, "alpha", 4, true, 500, 4)
	seedExecutions(t, store, "beta", 4, false, 1500, 2)
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "gamma", 2.0))

	tools := []string{"beta", "gamma", "alpha", "delta"}
	first, err := engine.Recommendations(ctx, "ctx", tools)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := engine.Recommendations(ctx, "ctx", tools)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRecommendationsTieBreaks(t *testing.T) {
	engine, store := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// Same value, different visit counts: more visits ranks first.
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "sampled", 1.0))
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "sampled", 1.0))
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "fresh", 1.0))

	recs, err := engine.Recommendations(ctx, "ctx", []string{"fresh", "sampled"})
	require.NoError(t, err)
	assert.Equal(t, "sampled", recs[0].ToolName)
	assert.Equal(t, "fresh", recs[1].ToolName)

	// Fully identical signals: alphabetical order decides.
	recs, err = engine.Recommendations(ctx, "ctx", []string{"zeta", "eta"})
	require.NoError(t, err)
	assert.Equal(t, "eta", recs[0].ToolName)
	assert.Equal(t, "zeta", recs[1].ToolName)
}

// With learning disabled only success-rate and rating signals rank tools;
// learned values must not leak into the confidence.
func TestRecommendationsDisabledFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	engine, store := newTestEngine(t, cfg)
	ctx := context.Background()

	seedExecutions(t, store, "alpha", 4, true, 500, 5)
	seedExecutions(t, store, "beta", 4, true, 500, 5)
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "alpha", 9.0))
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "beta", -9.0))

	recs, err := engine.Recommendations(ctx, "ctx", []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, recs[0].Confidence, recs[1].Confidence, 1e-9)
	for _, rec := range recs {
		_, hasPolicy := rec.Factors[FactorPolicy]
		assert.False(t, hasPolicy)
		_, hasSpeed := rec.Factors[FactorSpeed]
		assert.False(t, hasSpeed)
	}
}

func TestSelectToolExploitsTopRanked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExplorationRate = 0 // pure exploitation
	engine, store := newTestEngine(t, cfg)
	ctx := context.Background()

	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "best", 5.0))
	require.NoError(t, store.UpsertPolicy(ctx, "ctx", "worst", -5.0))

	for i := 0; i < 10; i++ {
		tool, explored, err := engine.SelectTool(ctx, "ctx", []string{"worst", "best"})
		require.NoError(t, err)
		assert.False(t, explored)
		assert.Equal(t, "best", tool)
	}
}

func TestSelectToolAlwaysExploresAtFullEpsilon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExplorationRate = 1
	engine, _ := newTestEngine(t, cfg)
	engine.Seed(42)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tool, explored, err := engine.SelectTool(context.Background(), "ctx", []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.True(t, explored)
		seen[tool] = true
	}
	// Uniform exploration over 100 draws hits every candidate.
	assert.Len(t, seen, 3)
}

func TestSelectToolEdgeCases(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := engine.SelectTool(ctx, "ctx", nil)
	assert.Error(t, err)

	tool, explored, err := engine.SelectTool(ctx, "ctx", []string{"only"})
	require.NoError(t, err)
	assert.False(t, explored)
	assert.Equal(t, "only", tool)
}
