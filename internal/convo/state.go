package convo

import (
	"math"

	"github.com/hurttlocker/scout/internal/evaluate"
)

// DialogueState is the visitor's progress through the conversation. Every
// score is in [0,1] and never decreases within a session.
type DialogueState struct {
	Understanding float64 `json:"understanding"`
	Potential     float64 `json:"potential"`
	Readiness     float64 `json:"readiness"`
	Investment    float64 `json:"investment"`

	Technical     float64 `json:"technical"`
	Philosophical float64 `json:"philosophical"`
	Creative      float64 `json:"creative"`
	Analytical    float64 `json:"analytical"`
}

// Max returns the per-dimension maximum of s and o.
func (s DialogueState) Max(o DialogueState) DialogueState {
	return DialogueState{
		Understanding: math.Max(s.Understanding, o.Understanding),
		Potential:     math.Max(s.Potential, o.Potential),
		Readiness:     math.Max(s.Readiness, o.Readiness),
		Investment:    math.Max(s.Investment, o.Investment),
		Technical:     math.Max(s.Technical, o.Technical),
		Philosophical: math.Max(s.Philosophical, o.Philosophical),
		Creative:      math.Max(s.Creative, o.Creative),
		Analytical:    math.Max(s.Analytical, o.Analytical),
	}
}

// deriveState computes a fresh state from every insight so far, the round
// and the evaluation of the latest input.
func deriveState(insights []Insight, round, totalRounds int, eval evaluate.Result) DialogueState {
	var s DialogueState
	for _, in := range insights {
		switch in.Topic {
		case TopicBudget, TopicTimeCost:
			s.Potential = math.Max(s.Potential, in.Relevance)
		case TopicCompliance, TopicExpertise:
			s.Understanding = math.Max(s.Understanding, in.Relevance)
		case TopicInefficiency:
			s.Readiness = math.Max(s.Readiness, in.Relevance)
		}
	}
	if totalRounds > 0 {
		s.Investment = math.Min(float64(round)/float64(totalRounds), 1)
	}
	s.Technical = eval.Scores[evaluate.SkillTechnical]
	s.Philosophical = eval.Scores[evaluate.SkillPhilosophical]
	s.Creative = eval.Scores[evaluate.SkillCreative]
	s.Analytical = eval.Scores[evaluate.SkillAnalytical]
	return s
}
