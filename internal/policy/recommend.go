package policy

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/epmlabs/planning-agent/internal/storage"
)

// Factor names reported in Recommendation.Factors.
const (
	FactorBase        = "base"
	FactorSuccessRate = "success_rate"
	FactorRating      = "rating"
	FactorSpeed       = "speed"
	FactorPolicy      = "policy_value"
)

// Scoring constants. Confidence is advisory, roughly in [0, 1]; it is not a
// probability and does not sum to 1 across tools.
const (
	baseConfidence = 0.5

	// successBonus applies when the historical success rate exceeds
	// successRateFloor.
	successBonus     = 0.2
	successRateFloor = 0.8

	// ratingBonus applies when the average user rating reaches ratingFloor.
	ratingBonus = 0.15
	ratingFloor = 4.0

	// speedBonus applies when the average latency is under fastTimeMs.
	speedBonus = 0.1
	fastTimeMs = 1000.0

	// policyCap bounds the learned-value contribution so one outlier
	// estimate cannot dominate the ranking.
	policyCap     = 0.2
	policyDivisor = 10.0
)

// Recommendation is one ranked tool suggestion.
type Recommendation struct {
	// ToolName is the suggested tool.
	ToolName string `json:"tool_name"`

	// Confidence is the combined advisory score.
	Confidence float64 `json:"confidence"`

	// Factors breaks the confidence down by contributing signal.
	Factors map[string]float64 `json:"contributing_factors"`

	// VisitCount is how often the (context, tool) pair has been updated.
	VisitCount int `json:"visit_count"`
}

// Recommendations ranks the available tools for a context.
//
// Four independent signals combine into the confidence score: a constant
// base, the tool's historical success rate, its average user rating, its
// average latency, and (when learning is enabled) the clamped learned value
// for this context. Results are ordered by confidence descending, then
// visit count descending (prefer better-sampled estimates), then tool name
// ascending, so identical state always yields identical ordering.
func (e *Engine) Recommendations(ctx context.Context, contextSig string, available []string) ([]Recommendation, error) {
	e.mu.Lock()
	enabled := e.cfg.Enabled
	minSamples := e.cfg.MinSamples
	e.mu.Unlock()

	entries := map[string]storage.PolicyEntry{}
	if enabled {
		known, err := e.store.PolicyByContext(ctx, contextSig)
		if err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}
		for _, entry := range known {
			entries[entry.ToolName] = entry
		}
	}

	recs := make([]Recommendation, 0, len(available))
	for _, tool := range available {
		stats, err := e.store.ToolStats(ctx, tool)
		if err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}

		rec := Recommendation{
			ToolName: tool,
			Factors:  map[string]float64{FactorBase: baseConfidence},
		}
		confidence := baseConfidence

		if stats.TotalCalls >= minSamples && stats.SuccessRate > successRateFloor {
			rec.Factors[FactorSuccessRate] = successBonus
			confidence += successBonus
		}
		if stats.RatedCalls > 0 && stats.AvgRating >= ratingFloor {
			rec.Factors[FactorRating] = ratingBonus
			confidence += ratingBonus
		}

		// Latency and learned-value signals only apply while learning is
		// on; disabled mode ranks by success rate and rating alone.
		if enabled {
			if stats.TotalCalls > 0 && stats.AvgTimeMs < fastTimeMs {
				rec.Factors[FactorSpeed] = speedBonus
				confidence += speedBonus
			}
			if entry, ok := entries[tool]; ok {
				contribution := math.Min(policyCap, entry.Value/policyDivisor)
				rec.Factors[FactorPolicy] = contribution
				confidence += contribution
				rec.VisitCount = entry.VisitCount
			}
		}

		rec.Confidence = confidence
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if recs[i].VisitCount != recs[j].VisitCount {
			return recs[i].VisitCount > recs[j].VisitCount
		}
		return recs[i].ToolName < recs[j].ToolName
	})

	return recs, nil
}

// SelectTool picks the tool to actually invoke using an ε-greedy strategy:
// with probability ε a uniformly random candidate (exploration), otherwise
// the top-ranked recommendation (exploitation). The returned bool reports
// whether the pick was exploratory.
func (e *Engine) SelectTool(ctx context.Context, contextSig string, available []string) (string, bool, error) {
	if len(available) == 0 {
		return "", false, fmt.Errorf("select tool: no candidates")
	}
	if len(available) == 1 {
		return available[0], false, nil
	}

	e.mu.Lock()
	explore := e.rng.Float64() < e.cfg.ExplorationRate
	var idx int
	if explore {
		idx = e.rng.Intn(len(available))
	}
	e.mu.Unlock()

	if explore {
		return available[idx], true, nil
	}

	recs, err := e.Recommendations(ctx, contextSig, available)
	if err != nil {
		return "", false, err
	}
	return recs[0].ToolName, false, nil
}
