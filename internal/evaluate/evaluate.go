// Package evaluate scores a single free-text utterance for structural
// quality, coherence and relevance. Everything here is string analysis; no
// model call is made.
package evaluate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Skill is one of the scored reasoning dimensions.
type Skill string

const (
	SkillTechnical     Skill = "technical"
	SkillPhilosophical Skill = "philosophical"
	SkillCreative      Skill = "creative"
	SkillAnalytical    Skill = "analytical"
)

// Skills lists every skill in reporting order.
var Skills = []Skill{SkillTechnical, SkillPhilosophical, SkillCreative, SkillAnalytical}

// Result is the outcome of Evaluate.
type Result struct {
	Scores       map[Skill]float64 `json:"scores"`
	OverallScore float64           `json:"overall_score"`
	Coherence    float64           `json:"coherence"`
	Relevance    float64           `json:"relevance"`
	Reasoning    string            `json:"reasoning"`
}

// Indicators are the structural signals found in an utterance.
type Indicators struct {
	Examples    bool
	Causality   bool
	Nuance      bool
	Conclusions bool
}

// Quality is the fraction of indicators present, 0.25 each.
func (in Indicators) Quality() float64 {
	q := 0.0
	for _, b := range []bool{in.Examples, in.Causality, in.Nuance, in.Conclusions} {
		if b {
			q += 0.25
		}
	}
	return q
}

var (
	examplesRE    = regexp.MustCompile(`(?i)\b(?:for example|for instance|e\.g\.|such as|like when|specifically)\b`)
	causalityRE   = regexp.MustCompile(`(?i)\b(?:because|therefore|thus|hence|so that|as a result|due to|leads? to|causes?)\b`)
	nuanceRE      = regexp.MustCompile(`(?i)\b(?:however|although|though|on the other hand|whereas|nevertheless|but|depends)\b`)
	conclusionsRE = regexp.MustCompile(`(?i)\b(?:in conclusion|overall|ultimately|in summary|to sum up|finally|in short)\b`)

	sentenceSplitRE = regexp.MustCompile(`[.!?]+`)
)

// Weights of the skill score terms.
const (
	qualityWeight   = 0.5
	structureWeight = 0.15
	questionWeight  = 0.15
	depthWeight     = 0.2

	// questionPrefixLen is how much of the context must appear verbatim in
	// the input for it to count as addressing the question.
	questionPrefixLen = 20
)

// Evaluate scores input against context (usually the question that was asked).
func Evaluate(input, context string) Result {
	sentences := Sentences(input)
	ind := Detect(input)

	res := Result{
		Scores:    make(map[Skill]float64, len(Skills)),
		Coherence: Coherence(sentences),
		Relevance: Relevance(input, context),
	}

	structure := 0.0
	if avg := avgSentenceLength(sentences); avg > 10 && avg < 30 {
		structure = 1
	}
	question := 0.0
	if addressesQuestion(input, context) {
		question = 1
	}

	sum := 0.0
	for _, skill := range Skills {
		depth := 0.0
		if hasDepth(skill, ind, sentences, input) {
			depth = 1
		}
		score := clamp01(qualityWeight*ind.Quality() + structureWeight*structure + questionWeight*question + depthWeight*depth)
		res.Scores[skill] = score
		sum += score
	}

	res.OverallScore = 0.3*res.Coherence + 0.3*res.Relevance + 0.4*(sum/float64(len(Skills)))
	res.Reasoning = reasoning(res)
	return res
}

// Detect finds the structural indicators in text.
func Detect(text string) Indicators {
	return Indicators{
		Examples:    examplesRE.MatchString(text),
		Causality:   causalityRE.MatchString(text),
		Nuance:      nuanceRE.MatchString(text),
		Conclusions: conclusionsRE.MatchString(text),
	}
}

// Sentences splits text on terminal punctuation and drops empty pieces.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceSplitRE.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Coherence is the fraction of adjacent sentence pairs that share at least one
// lowercase word. Fewer than two sentences yields a neutral 0.5.
func Coherence(sentences []string) float64 {
	if len(sentences) < 2 {
		return 0.5
	}
	linked := 0
	for i := 1; i < len(sentences); i++ {
		prev := wordSet(sentences[i-1])
		for w := range wordSet(sentences[i]) {
			if _, ok := prev[w]; ok {
				linked++
				break
			}
		}
	}
	return float64(linked) / float64(len(sentences)-1)
}

// Relevance is the share of the context vocabulary that also appears in the
// input, capped at 1. An empty context scores 0.
func Relevance(input, context string) float64 {
	ctxWords := wordSet(context)
	if len(ctxWords) == 0 {
		return 0
	}
	inWords := wordSet(input)
	shared := 0
	for w := range ctxWords {
		if _, ok := inWords[w]; ok {
			shared++
		}
	}
	return clamp01(float64(shared) / float64(len(ctxWords)))
}

func hasDepth(skill Skill, ind Indicators, sentences []string, text string) bool {
	switch skill {
	case SkillTechnical:
		return ind.Examples && ind.Causality
	case SkillPhilosophical:
		return ind.Nuance && len(sentences) >= 4
	case SkillCreative:
		return vocabularyRichness(text) > 0.7
	case SkillAnalytical:
		return ind.Causality && ind.Conclusions
	}
	return false
}

func addressesQuestion(input, context string) bool {
	ctx := strings.TrimSpace(context)
	if ctx == "" {
		return false
	}
	prefix := ctx
	if r := []rune(ctx); len(r) > questionPrefixLen {
		prefix = string(r[:questionPrefixLen])
	}
	return strings.Contains(strings.ToLower(input), strings.ToLower(prefix))
}

func avgSentenceLength(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len([]rune(s))
	}
	return float64(total) / float64(len(sentences))
}

// vocabularyRichness is distinct words over total words.
func vocabularyRichness(text string) float64 {
	words := Words(text)
	if len(words) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(words))
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	return float64(len(distinct)) / float64(len(words))
}

// Words lowercases text and splits it into letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(text string) map[string]struct{} {
	words := Words(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func reasoning(r Result) string {
	best, worst := Skills[0], Skills[0]
	for _, s := range Skills[1:] {
		if r.Scores[s] > r.Scores[best] {
			best = s
		}
		if r.Scores[s] < r.Scores[worst] {
			worst = s
		}
	}
	return fmt.Sprintf("Strongest in %s reasoning, weakest in %s reasoning; coherence %.0f%%, relevance %.0f%%.",
		best, worst, r.Coherence*100, r.Relevance*100)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
