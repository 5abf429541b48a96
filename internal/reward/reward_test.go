package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epmlabs/planning-agent/internal/storage"
)

func intPtr(v int) *int { return &v }

func record(success bool, timeMs int64, rating *int) *storage.ExecutionRecord {
	return &storage.ExecutionRecord{
		ID:               "exec-1",
		ToolName:         "smart_retrieve",
		ContextSignature: "ctx_A",
		Success:          success,
		ExecutionTimeMs:  timeMs,
		UserRating:       rating,
	}
}

func TestCompute(t *testing.T) {
	calc := NewCalculator(DefaultWeights())

	tests := []struct {
		name      string
		rec       *storage.ExecutionRecord
		avgTimeMs float64
		want      float64
	}{
		{
			name:      "success only",
			rec:       record(true, 1000, nil),
			avgTimeMs: 1000,
			want:      10.0,
		},
		{
			name:      "failure only",
			rec:       record(false, 1000, nil),
			avgTimeMs: 1000,
			want:      -5.0,
		},
		{
			name:      "fast success earns bonus",
			rec:       record(true, 500, nil),
			avgTimeMs: 1000,
			want:      12.0,
		},
		{
			name:      "exactly at threshold earns no bonus",
			rec:       record(true, 800, nil),
			avgTimeMs: 1000,
			want:      10.0,
		},
		{
			name:      "no history disables bonus",
			rec:       record(true, 1, nil),
			avgTimeMs: 0,
			want:      10.0,
		},
		{
			name:      "neutral rating adds nothing",
			rec:       record(true, 1000, intPtr(3)),
			avgTimeMs: 1000,
			want:      10.0,
		},
		{
			name:      "five star rating",
			rec:       record(true, 1000, intPtr(5)),
			avgTimeMs: 1000,
			want:      14.0,
		},
		{
			name:      "one star rating",
			rec:       record(true, 1000, intPtr(1)),
			avgTimeMs: 1000,
			want:      6.0,
		},
		{
			name:      "worst case: failure with one star",
			rec:       record(false, 1000, intPtr(1)),
			avgTimeMs: 1000,
			want:      -9.0,
		},
		{
			name:      "best case: fast success with five stars",
			rec:       record(true, 500, intPtr(5)),
			avgTimeMs: 1000,
			want:      16.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Compute(tt.rec, tt.avgTimeMs)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// All valid inputs land inside the documented [-9, +16] range.
func TestComputeRange(t *testing.T) {
	calc := NewCalculator(DefaultWeights())

	for _, success := range []bool{true, false} {
		for _, timeMs := range []int64{0, 100, 500, 799, 800, 5000} {
			ratings := []*int{nil, intPtr(1), intPtr(2), intPtr(3), intPtr(4), intPtr(5)}
			for _, rating := range ratings {
				for _, avg := range []float64{0, 100, 1000} {
					got, err := calc.Compute(record(success, timeMs, rating), avg)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, got, -9.0)
					assert.LessOrEqual(t, got, 16.0)
				}
			}
		}
	}
}

func TestComputeInvalidInput(t *testing.T) {
	calc := NewCalculator(DefaultWeights())

	tests := []struct {
		name string
		rec  *storage.ExecutionRecord
	}{
		{name: "nil record", rec: nil},
		{name: "empty tool name", rec: &storage.ExecutionRecord{ExecutionTimeMs: 10}},
		{name: "negative time", rec: record(true, -1, nil)},
		{name: "rating too low", rec: record(true, 100, intPtr(0))},
		{name: "rating too high", rec: record(true, 100, intPtr(6))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Compute(tt.rec, 1000)
			require.Error(t, err)
			var invalid *InvalidInputError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

// Weights are tunable: a custom weighting flows straight through.
func TestComputeCustomWeights(t *testing.T) {
	calc := NewCalculator(Weights{
		Success:        1.0,
		Failure:        -1.0,
		RatingScale:    0.5,
		SpeedBonus:     0.25,
		SpeedThreshold: 0.5,
	})

	got, err := calc.Compute(record(true, 400, intPtr(5)), 1000)
	require.NoError(t, err)
	assert.InDelta(t, 1.0+1.0+0.25, got, 1e-9)
}
