package llm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectTierBranches(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want Tier
	}{
		{"initial stage always primary", Criteria{Stage: StageInitial, InsightCount: 10}, TierPrimary},
		{"profiling stage always primary", Criteria{Stage: StageProfiling, InsightCount: 10}, TierPrimary},
		{"complex input with context", Criteria{Stage: StageFollowup, InputComplexity: 0.71, InsightCount: 10, RequiresContext: true}, TierPrimary},
		{"complexity at threshold is not primary", Criteria{Stage: StageFollowup, InputComplexity: 0.7, InsightCount: 10, RequiresContext: true}, TierStandard},
		{"complex input without context", Criteria{Stage: StageFollowup, InputComplexity: 0.9, InsightCount: 10}, TierEfficient},
		{"few insights", Criteria{Stage: StageFollowup, InsightCount: 4}, TierStandard},
		{"context required", Criteria{Stage: StageSynthesis, InsightCount: 10, RequiresContext: true}, TierStandard},
		{"followup with many insights", Criteria{Stage: StageFollowup, InsightCount: 10}, TierEfficient},
		{"five insights is enough", Criteria{Stage: StageSynthesis, InsightCount: 5}, TierEfficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectTier(tt.c))
		})
	}
}

// TestSelectTierTable walks the full stage x complexity x insights x context grid.
func TestSelectTierTable(t *testing.T) {
	stages := []string{StageInitial, StageProfiling, StageFollowup, StageSynthesis, ""}
	complexities := []float64{0, 0.5, 0.7, 0.71, 1}
	insights := []int{0, 4, 5, 10}

	for _, stage := range stages {
		for _, cx := range complexities {
			for _, n := range insights {
				for _, ctx := range []bool{false, true} {
					c := Criteria{Stage: stage, InputComplexity: cx, InsightCount: n, RequiresContext: ctx}
					var want Tier
					switch {
					case stage == StageInitial || stage == StageProfiling:
						want = TierPrimary
					case cx > 0.7 && ctx:
						want = TierPrimary
					case n < 5 || ctx:
						want = TierStandard
					default:
						want = TierEfficient
					}
					assert.Equal(t, want, SelectTier(c), fmt.Sprintf("%+v", c))
				}
			}
		}
	}
}

func TestModelsFor(t *testing.T) {
	m := Models{Primary: "big", Efficient: "small"}
	assert.Equal(t, "big", m.For(TierPrimary))
	assert.Equal(t, DefaultModels.Standard, m.For(TierStandard))
	assert.Equal(t, "small", m.For(TierEfficient))
	assert.Equal(t, DefaultModels.Standard, m.For(Tier("unknown")))
	assert.Equal(t, DefaultModels.Primary, Models{}.For(TierPrimary))
}
