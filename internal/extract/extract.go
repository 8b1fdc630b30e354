// Package extract turns conversation text into a NetworkUpdate: the set of
// technical components (LLM clients, AI models, company resources) it
// mentions.
//
// Extraction runs in two tiers:
//   - LLM-assisted: the completion gateway returns a structured component
//     list, which is schema-checked and filtered against the pattern library.
//   - Pattern fallback: a deterministic scan of the raw text against every
//     rule in the pattern library. Used whenever the first tier fails for any
//     reason, or when no gateway is configured.
//
// Analyze never fails; the worst case is an empty, structurally valid update.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/patterns"
)

// AccentColor is stamped on every extracted component.
const AccentColor = "#F59E0B"

// Source records which tier produced an update.
type Source string

const (
	SourceLLM      Source = "llm"
	SourcePatterns Source = "patterns"
	SourceEmpty    Source = "empty"
)

// Observer is notified of the tier used by each Analyze call.
type Observer interface {
	ObserveExtraction(source string, components int)
}

// Component types stamped by the pattern tier.
const (
	TypeCategory       = "category"
	TypeImplementation = "implementation"
)

// Pipeline orchestrates LLM-assisted extraction with the pattern fallback.
type Pipeline struct {
	gateway  llm.Gateway // optional
	model    string
	library  *patterns.Library
	logger   *zap.Logger
	observer Observer
}

// PipelineOption configures the extraction pipeline.
type PipelineOption func(*Pipeline)

// WithGateway enables the LLM tier.
func WithGateway(gw llm.Gateway, model string) PipelineOption {
	return func(p *Pipeline) {
		p.gateway = gw
		if model != "" {
			p.model = model
		}
	}
}

// WithLibrary replaces the default pattern library.
func WithLibrary(lib *patterns.Library) PipelineOption {
	return func(p *Pipeline) {
		if lib != nil {
			p.library = lib
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver reports the tier used by each call.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// NewPipeline creates a pipeline. Without WithGateway only the pattern tier
// runs.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		model:   llm.DefaultModels.Standard,
		library: patterns.Default(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Library returns the pattern library the pipeline validates against.
func (p *Pipeline) Library() *patterns.Library {
	return p.library
}

// Analyze extracts the components mentioned in text.
func (p *Pipeline) Analyze(ctx context.Context, text string) NetworkUpdate {
	u, _ := p.AnalyzeWithSource(ctx, text)
	return u
}

// AnalyzeWithSource is Analyze plus the tier that produced the result.
func (p *Pipeline) AnalyzeWithSource(ctx context.Context, text string) (NetworkUpdate, Source) {
	if strings.TrimSpace(text) == "" {
		p.observe(SourceEmpty, 0)
		return NewNetworkUpdate(), SourceEmpty
	}

	if p.gateway != nil {
		u, dropped, err := extractWithGateway(ctx, p.gateway, p.library, p.model, text)
		if err == nil {
			stamp(&u)
			if dropped > 0 {
				p.logger.Debug("dropped unknown components", zap.Int("dropped", dropped))
			}
			p.observe(SourceLLM, u.Len())
			return u, SourceLLM
		}
		p.logger.Info("llm extraction failed, using pattern fallback", zap.Error(err))
	}

	u := p.MatchPatterns(text)
	p.observe(SourcePatterns, u.Len())
	return u, SourcePatterns
}

// MatchPatterns is the deterministic tier. For each category, every matching
// implementation is emitted; the category itself is emitted only when its
// generic rules matched and no implementation did. Ids are unique within the
// result and order follows the library table.
func (p *Pipeline) MatchPatterns(text string) NetworkUpdate {
	out := NewNetworkUpdate()
	seen := make(map[string]bool)

	for _, hit := range p.library.Scan(text) {
		cat := hit.Category
		if len(hit.Implementations) == 0 {
			if hit.CategoryMatched && !seen[cat.ID] {
				seen[cat.ID] = true
				out.Add(cat.Kind, Component{
					ID:          cat.ID,
					Size:        float64(cat.Size),
					Height:      cat.Height,
					Title:       cat.ID,
					Description: cat.Metadata["description"],
					Icon:        cat.Metadata["icon"],
					Type:        TypeCategory,
				})
			}
			continue
		}
		for _, impl := range hit.Implementations {
			if seen[impl.ID] {
				continue
			}
			seen[impl.ID] = true
			out.Add(cat.Kind, Component{
				ID:     impl.ID,
				Size:   float64(impl.Size),
				Height: impl.Height,
				Title:  impl.ID,
				Icon:   cat.Metadata["icon"],
				Type:   TypeImplementation,
				Parent: cat.ID,
			})
		}
	}

	stamp(&out)
	return out
}

func stamp(u *NetworkUpdate) {
	for _, list := range [][]Component{u.LLMClients, u.AIModels, u.CompanyResources} {
		for i := range list {
			list[i].Color = AccentColor
		}
	}
}

func (p *Pipeline) observe(source Source, n int) {
	if p.observer != nil {
		p.observer.ObserveExtraction(string(source), n)
	}
}
