// Package convo runs the qualification dialogue: a short scripted
// conversation that picks a model tier per turn, collects business insights
// from what the visitor says, and tracks how far along the visitor is.
package convo

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/evaluate"
	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/memory"
)

// DefaultTotalRounds is the number of rounds before synthesis.
const DefaultTotalRounds = 5

// FallbackModel is reported as the selected model when the gateway failed.
const FallbackModel = "fallback"

// Completion parameters for dialogue replies.
const (
	replyTemperature = 0.7
	replyMaxTokens   = 400
	memorySnippets   = 3
)

// Reply is the outcome of one turn.
type Reply struct {
	SystemResponse string        `json:"system_response"`
	NextTheme      string        `json:"next_theme"`
	DialogueState  DialogueState `json:"dialogue_state"`
	SelectedModel  string        `json:"selected_model"`
	// Insights found in this turn's input.
	Insights []Insight `json:"insights"`
	Round    int       `json:"round"`
	Tier     llm.Tier  `json:"tier,omitempty"`
}

// TurnMetrics describes one GenerateResponse call.
type TurnMetrics struct {
	Round        int           `json:"round"`
	Complexity   float64       `json:"complexity"`
	Model        string        `json:"model"`
	Latency      time.Duration `json:"latency"`
	Fallback     bool          `json:"fallback"`
	InsightCount int           `json:"insight_count"`
}

// Observer is told about every reply.
type Observer interface {
	ObserveReply(model string, fallback bool)
}

// Agent is one visitor's conversation. Its methods are safe for concurrent
// use but turns are serialized.
type Agent struct {
	gateway     llm.Gateway
	models      llm.Models
	totalRounds int
	memCap      int
	logger      *zap.Logger
	observer    Observer
	now         func() time.Time

	mu         sync.Mutex
	transcript []llm.Message
	insights   []Insight
	state      DialogueState
	metrics    []TurnMetrics
	memory     *memory.Buffer
}

// Option configures an Agent.
type Option func(*Agent)

// WithModels sets the model behind each tier.
func WithModels(m llm.Models) Option {
	return func(a *Agent) { a.models = m }
}

// WithTotalRounds sets the synthesis round.
func WithTotalRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.totalRounds = n
		}
	}
}

// WithMemoryCapacity bounds the conversation memory.
func WithMemoryCapacity(n int) Option {
	return func(a *Agent) { a.memCap = n }
}

// WithLogger sets the agent logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver reports replies.
func WithObserver(o Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// NewAgent creates an agent talking through gw. A nil gateway is allowed;
// every turn then takes the fallback path.
func NewAgent(gw llm.Gateway, opts ...Option) *Agent {
	a := &Agent{
		gateway:     gw,
		models:      llm.DefaultModels,
		totalRounds: DefaultTotalRounds,
		memCap:      memory.DefaultCapacity,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.memory = memory.New(a.memCap)
	a.transcript = initialTranscript()
	return a
}

func initialTranscript() []llm.Message {
	return []llm.Message{{Role: llm.RoleSystem, Content: persona}}
}

// TotalRounds returns the synthesis round.
func (a *Agent) TotalRounds() int { return a.totalRounds }

// GenerateResponse runs one turn. Rounds below 1 are treated as 1 and rounds
// past the last one stay in synthesis. Gateway failures never surface: the
// reply then carries a fixed fallback text and SelectedModel "fallback".
func (a *Agent) GenerateResponse(ctx context.Context, input, theme string, round int) Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	round = a.clampRound(round)

	found := ExtractInsights(input, round, start)
	a.insights = append(a.insights, found...)

	question := Question(round)
	eval := evaluate.Evaluate(input, question)

	// context is needed only when earlier turns actually touched the theme
	related := a.relevantSnippets(theme)
	answers := a.recentAnswers()
	a.remember(input, round, theme, eval)

	complexity := InputComplexity(input)
	stage := StageFor(round, a.totalRounds)
	tier := llm.SelectTier(llm.Criteria{
		Stage:           stage,
		InputComplexity: complexity,
		InsightCount:    len(a.insights),
		RequiresContext: len(related) > 0,
	})
	model := a.models.For(tier)

	var guidance string
	if round >= a.totalRounds {
		guidance = synthesisPrompt(a.insights, answers)
	} else {
		guidance = guidancePrompt(round, theme, related)
	}

	a.transcript = append(a.transcript, llm.Message{Role: llm.RoleUser, Content: input})
	text, err := a.complete(ctx, model, guidance)

	reply := Reply{Round: round, Tier: tier, SelectedModel: model, Insights: found}
	if err != nil {
		a.logger.Warn("dialogue completion failed, using fallback",
			zap.Int("round", round), zap.String("model", model), zap.Error(err))
		reply.SelectedModel = FallbackModel
		reply.Tier = ""
		if round >= a.totalRounds {
			text = fallbackFinal
		} else {
			text = fallbackReply
		}
	} else {
		a.transcript = append(a.transcript, llm.Message{Role: llm.RoleAssistant, Content: text})
	}
	reply.SystemResponse = text
	reply.NextTheme = NextTheme(a.insights, round, a.totalRounds)

	a.memory.Add(memory.Entry{
		Content:  text,
		Kind:     memory.KindObservation,
		Metadata: memory.Metadata{Context: reply.NextTheme, Round: round},
	})

	a.state = a.state.Max(deriveState(a.insights, round, a.totalRounds, eval))
	reply.DialogueState = a.state

	fallback := err != nil
	a.metrics = append(a.metrics, TurnMetrics{
		Round:        round,
		Complexity:   complexity,
		Model:        reply.SelectedModel,
		Latency:      a.now().Sub(start),
		Fallback:     fallback,
		InsightCount: len(a.insights),
	})
	if a.observer != nil {
		a.observer.ObserveReply(reply.SelectedModel, fallback)
	}
	return reply
}

func (a *Agent) clampRound(round int) int {
	if round < 1 {
		return 1
	}
	if round > a.totalRounds {
		return a.totalRounds
	}
	return round
}

func (a *Agent) complete(ctx context.Context, model, guidance string) (string, error) {
	if a.gateway == nil {
		return "", llm.ErrEmptyResponse
	}
	msgs := make([]llm.Message, 0, len(a.transcript)+1)
	msgs = append(msgs, a.transcript...)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: guidance})

	resp, err := a.gateway.Complete(ctx, llm.Request{
		Model:       model,
		Messages:    msgs,
		Temperature: llm.Temperature(replyTemperature),
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Content, nil
}

// relevantSnippets returns earlier memory entries related to theme.
func (a *Agent) relevantSnippets(theme string) []string {
	var out []string
	for _, e := range a.memory.Relevant(theme, memorySnippets) {
		out = append(out, e.Content)
	}
	return out
}

// recentAnswers returns the visitor's latest remembered messages, oldest
// first.
func (a *Agent) recentAnswers() []string {
	answers := a.memory.OfKind(memory.KindResponse)
	if len(answers) > memorySnippets {
		answers = answers[len(answers)-memorySnippets:]
	}
	out := make([]string, 0, len(answers))
	for _, e := range answers {
		out = append(out, e.Content)
	}
	return out
}

func (a *Agent) remember(input string, round int, theme string, eval evaluate.Result) {
	a.memory.Add(memory.Entry{
		Content:  input,
		Kind:     memory.KindResponse,
		Metadata: memory.Metadata{Context: theme, Round: round},
	})
	overall := eval.OverallScore
	a.memory.Add(memory.Entry{
		Content:  eval.Reasoning,
		Kind:     memory.KindEvaluation,
		Metadata: memory.Metadata{Relevance: &overall, Context: theme, Round: round},
	})
}

// Transcript returns a copy of the role-tagged transcript.
func (a *Agent) Transcript() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Message(nil), a.transcript...)
}

// Insights returns every insight collected so far, oldest first.
func (a *Agent) Insights() []Insight {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Insight(nil), a.insights...)
}

// State returns the current dialogue state.
func (a *Agent) State() DialogueState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Metrics returns per-turn metrics in call order.
func (a *Agent) Metrics() []TurnMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]TurnMetrics(nil), a.metrics...)
}

// Memory returns the remembered entries, oldest first.
func (a *Agent) Memory() []memory.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.memory.All()
}

// Restore seeds insights and state, e.g. from a persisted session.
func (a *Agent) Restore(state DialogueState, insights []Insight) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.insights = append([]Insight(nil), insights...)
}

// Reset returns the agent to its initial state.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = initialTranscript()
	a.insights = nil
	a.state = DialogueState{}
	a.metrics = nil
	a.memory.Reset()
}
