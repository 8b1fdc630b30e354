package convo

import (
	"math"
	"regexp"
	"strings"

	"github.com/hurttlocker/scout/internal/llm"
)

var (
	techTermRE = regexp.MustCompile(`(?i)\b(?:apis?|mcp|llms?|models?|integrations?|databases?|erp|crm|cloud|saas|sso|oauth|pipelines?|workflows?|automation|servers?|endpoints?|sql|json|webhooks?|sdks?|kubernetes|docker|microservices?|data\s?warehouse|etl|rag|embeddings?|agents?|gpt-?\d*\w*|claude|sap|salesforce|s/?4\s?hana)\b`)
	numericRE  = regexp.MustCompile(`\d+(?:[.,]\d+)*%?`)
)

// Saturation points for each complexity signal.
const (
	complexityLengthCap    = 500
	complexityTermCap      = 5
	complexityNumericCap   = 5
	complexityQuestionsCap = 3
)

// InputComplexity scores text in [0,1] from its length and its counts of
// technical terms, numbers and question marks. Every signal is a saturating
// count, so appending text never lowers the score.
func InputComplexity(text string) float64 {
	length := float64(len(strings.TrimSpace(text)))
	terms := float64(len(techTermRE.FindAllStringIndex(text, -1)))
	nums := float64(len(numericRE.FindAllStringIndex(text, -1)))
	questions := float64(strings.Count(text, "?"))

	score := 0.3*math.Min(length/complexityLengthCap, 1) +
		0.3*math.Min(terms/complexityTermCap, 1) +
		0.2*math.Min(nums/complexityNumericCap, 1) +
		0.2*math.Min(questions/complexityQuestionsCap, 1)
	return math.Max(0, math.Min(score, 1))
}

// StageFor maps a round to a conversation stage.
func StageFor(round, totalRounds int) string {
	switch {
	case round <= 1:
		return llm.StageInitial
	case round == 2:
		return llm.StageProfiling
	case round >= totalRounds:
		return llm.StageSynthesis
	default:
		return llm.StageFollowup
	}
}
