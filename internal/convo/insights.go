package convo

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Topic is a business signal found in visitor input.
type Topic string

const (
	TopicBudget       Topic = "budget"
	TopicTimeCost     Topic = "time_cost"
	TopicCompliance   Topic = "compliance"
	TopicInefficiency Topic = "inefficiency"
	TopicExpertise    Topic = "expertise"
)

// Themes handed back to the caller as the next conversation focus.
const (
	ThemeGeneral    = "general"
	ThemeConclusion = "conclusion"
)

// Insight is one business signal. Insights are immutable and never
// deduplicated: a topic mentioned in three rounds yields three insights.
type Insight struct {
	Topic     Topic     `json:"topic"`
	Details   string    `json:"details"`
	Relevance float64   `json:"relevance"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

type insightRule struct {
	topic     Topic
	re        *regexp.Regexp
	relevance float64
}

var insightRules = []insightRule{
	{TopicBudget, regexp.MustCompile(`(?i)\$\s?\d[\d,.]*[kKmM]?|\bbudget\b|\bcosts?\b|\bspend(?:ing)?\b|\broi\b|\binvest(?:ment)?\b|\bprice\b|\bvalue\b`), 0.9},
	{TopicTimeCost, regexp.MustCompile(`(?i)\b\d+\s*(?:hours?|hrs?|days?|weeks?|months?)\b|\bweekly\b|\bdaily\b|\btime[- ]consuming\b`), 0.8},
	{TopicCompliance, regexp.MustCompile(`(?i)\bcompliance\b|\bgdpr\b|\bhipaa\b|\bsoc\s?2\b|\baudit\b|\bregulat\w*|\biso\s?27001\b`), 0.85},
	{TopicInefficiency, regexp.MustCompile(`(?i)\bmanual(?:ly)?\b|\bwast\w*|\binefficien\w*|\bbottleneck\w*|\brepetitive\b|\bslow\b|\bdelays?\b`), 0.7},
	{TopicExpertise, regexp.MustCompile(`(?i)\bexperts?\b|\bexpertise\b|\bspecialists?\b|\bknow-?how\b|\bengineers?\b|\bconsultants?\b|\bskills?\b`), 0.75},
}

// detailContext is how many bytes of text around a match are kept.
const detailContext = 40

// ExtractInsights returns one insight per topic whose rule matches text, in
// rule order.
func ExtractInsights(text string, round int, now time.Time) []Insight {
	var out []Insight
	for _, rule := range insightRules {
		loc := rule.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, Insight{
			Topic:     rule.topic,
			Details:   excerpt(text, loc[0], loc[1]),
			Relevance: rule.relevance,
			Round:     round,
			CreatedAt: now,
		})
	}
	return out
}

// excerpt returns text[start:end] widened by up to detailContext bytes on
// each side, snapped to rune boundaries.
func excerpt(text string, start, end int) string {
	from := start - detailContext
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + detailContext
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}

// themePriority is the order in which uncovered topics become the next theme.
var themePriority = []Topic{TopicBudget, TopicCompliance, TopicExpertise}

// NextTheme picks the next conversation focus: "conclusion" once the
// synthesis round is reached, otherwise the first of budget, compliance and
// expertise that no insight covers yet, or "general".
func NextTheme(insights []Insight, round, totalRounds int) string {
	if round >= totalRounds {
		return ThemeConclusion
	}
	covered := make(map[Topic]bool, len(insights))
	for _, in := range insights {
		covered[in.Topic] = true
	}
	for _, t := range themePriority {
		if !covered[t] {
			return string(t)
		}
	}
	return ThemeGeneral
}
