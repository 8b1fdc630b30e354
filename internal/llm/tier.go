package llm

// Tier is a model capability class.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierStandard  Tier = "standard"
	TierEfficient Tier = "efficient"
)

// Conversation stages, derived from the round number.
const (
	StageInitial   = "initial"
	StageProfiling = "profiling"
	StageFollowup  = "followup"
	StageSynthesis = "synthesis"
)

// Criteria is the input to SelectTier.
type Criteria struct {
	Stage           string
	InputComplexity float64
	InsightCount    int
	RequiresContext bool
}

// SelectTier maps criteria to a model tier. It is pure and total.
func SelectTier(c Criteria) Tier {
	if c.Stage == StageInitial || c.Stage == StageProfiling || (c.InputComplexity > 0.7 && c.RequiresContext) {
		return TierPrimary
	}
	if c.InsightCount < 5 || c.RequiresContext {
		return TierStandard
	}
	return TierEfficient
}

// Models names the concrete model behind each tier.
type Models struct {
	Primary   string `yaml:"primary" json:"primary"`
	Standard  string `yaml:"standard" json:"standard"`
	Efficient string `yaml:"efficient" json:"efficient"`
}

// DefaultModels is used when configuration leaves a tier empty.
var DefaultModels = Models{
	Primary:   "gpt-4o",
	Standard:  "gpt-4o-mini",
	Efficient: "gpt-3.5-turbo",
}

// For returns the model for tier, falling back to DefaultModels.
func (m Models) For(t Tier) string {
	switch t {
	case TierPrimary:
		return firstNonEmpty(m.Primary, DefaultModels.Primary)
	case TierEfficient:
		return firstNonEmpty(m.Efficient, DefaultModels.Efficient)
	default:
		return firstNonEmpty(m.Standard, DefaultModels.Standard)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
