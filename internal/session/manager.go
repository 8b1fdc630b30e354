package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/convo"
	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/observe"
	"github.com/hurttlocker/scout/internal/patterns"
	"github.com/hurttlocker/scout/internal/store"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Config holds what every session is built from. Gateway, Store and Metrics
// are optional: without a gateway every turn takes the fallback path, and
// without a store nothing outlives the process.
type Config struct {
	// Gateway is the raw client. Each session wraps it in its own throttle.
	Gateway        llm.Gateway
	MinInterval    time.Duration
	Models         llm.Models
	TotalRounds    int
	MemoryCapacity int
	Library        *patterns.Library
	Store          store.Store
	Metrics        *observe.Collector
	Logger         *zap.Logger
}

// Manager owns the live sessions.
type Manager struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Library == nil {
		cfg.Library = patterns.Default()
	}
	if cfg.Models == (llm.Models{}) {
		cfg.Models = llm.DefaultModels
	}
	if cfg.TotalRounds <= 0 {
		cfg.TotalRounds = convo.DefaultTotalRounds
	}
	return &Manager{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Library returns the pattern library sessions extract against.
func (m *Manager) Library() *patterns.Library {
	return m.cfg.Library
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := m.build(uuid.NewString())
	s.CreatedAt = m.now().UTC()

	if m.cfg.Store != nil {
		if err := m.cfg.Store.SaveSession(ctx, s.record()); err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		s.logEvent(ctx, store.EventCreated, nil)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SessionOpened()
	}
	m.cfg.Logger.Info("session created", zap.String("session", s.ID))
	return s, nil
}

// Get returns a live session, loading it from the store when it is not in
// memory.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.cfg.Store == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	s = m.build(id)
	if err := s.restore(ctx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another caller may have loaded it meanwhile
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = s
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SessionOpened()
	}
	m.cfg.Logger.Info("session restored", zap.String("session", id), zap.Int("round", s.round))
	return s, nil
}

// Respond runs one turn on session id.
func (m *Manager) Respond(ctx context.Context, id, input string) (Turn, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return Turn{}, err
	}
	return s.Respond(ctx, input), nil
}

// Reset returns a session to round one with an empty graph. Persisted
// insights and snapshots are dropped; the event log is kept.
func (m *Manager) Reset(ctx context.Context, id string) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reset()

	if st := m.cfg.Store; st != nil {
		if err := st.DeleteSession(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("resetting session %s: %w", id, err)
		}
		if err := st.SaveSession(ctx, s.record()); err != nil {
			return nil, fmt.Errorf("resetting session %s: %w", id, err)
		}
		s.logEvent(ctx, store.EventReset, nil)
	}
	m.cfg.Logger.Info("session reset", zap.String("session", id))
	return s, nil
}

// Delete drops a session from memory and from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if live && m.cfg.Metrics != nil {
		m.cfg.Metrics.SessionClosed()
	}

	st := m.cfg.Store
	if st == nil {
		if !live {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil
	}

	err := st.DeleteSession(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if !live {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
	case err != nil:
		return fmt.Errorf("deleting session %s: %w", id, err)
	}

	if s == nil {
		s = &Session{ID: id, store: st, logger: m.cfg.Logger}
	}
	s.logEvent(ctx, store.EventDeleted, nil)
	m.cfg.Logger.Info("session deleted", zap.String("session", id))
	return nil
}

// IDs returns the ids of live sessions in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Analyze runs a one-off extraction outside any session.
func (m *Manager) Analyze(ctx context.Context, text string) (extract.NetworkUpdate, extract.Source) {
	return m.pipeline(m.throttle()).AnalyzeWithSource(ctx, text)
}

func (m *Manager) build(id string) *Session {
	logger := m.cfg.Logger.With(zap.String("session", id))
	gw := m.throttle()

	agentOpts := []convo.Option{
		convo.WithModels(m.cfg.Models),
		convo.WithTotalRounds(m.cfg.TotalRounds),
		convo.WithMemoryCapacity(m.cfg.MemoryCapacity),
		convo.WithLogger(logger),
	}
	if m.cfg.Metrics != nil {
		agentOpts = append(agentOpts, convo.WithObserver(m.cfg.Metrics))
	}

	return &Session{
		ID:       id,
		agent:    convo.NewAgent(gw, agentOpts...),
		pipeline: m.pipeline(gw),
		tracker:  graph.NewTracker(m.cfg.Library),
		store:    m.cfg.Store,
		logger:   logger,
		round:    1,
		theme:    convo.ThemeGeneral,
	}
}

// throttle wraps the configured gateway for one session. It returns a nil
// interface when no gateway is configured.
func (m *Manager) throttle() llm.Gateway {
	if m.cfg.Gateway == nil {
		return nil
	}
	opts := []llm.ThrottleOption{llm.WithLogger(m.cfg.Logger)}
	if m.cfg.Metrics != nil {
		opts = append(opts, llm.WithObserver(m.cfg.Metrics))
	}
	return llm.NewThrottled(m.cfg.Gateway, m.cfg.MinInterval, opts...)
}

func (m *Manager) pipeline(gw llm.Gateway) *extract.Pipeline {
	opts := []extract.PipelineOption{
		extract.WithLibrary(m.cfg.Library),
		extract.WithLogger(m.cfg.Logger),
	}
	if gw != nil {
		opts = append(opts, extract.WithGateway(gw, m.cfg.Models.Standard))
	}
	if m.cfg.Metrics != nil {
		opts = append(opts, extract.WithObserver(m.cfg.Metrics))
	}
	return extract.NewPipeline(opts...)
}

// TotalRounds returns the number of rounds every session runs.
func (m *Manager) TotalRounds() int {
	return m.cfg.TotalRounds
}
