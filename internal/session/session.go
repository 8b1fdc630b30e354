// Package session ties one visitor's conversation to its extraction
// pipeline and graph, and manages the lifecycle of many such sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/convo"
	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/store"
)

// Turn is the result of one visitor message: the conversation reply plus
// what extraction found and the graph after merging it.
type Turn struct {
	SessionID string `json:"session_id"`
	convo.Reply
	Update   extract.NetworkUpdate `json:"update"`
	Source   extract.Source        `json:"extraction_source"`
	Graph    graph.Graph           `json:"graph"`
	Complete bool                  `json:"complete"`
}

// View is a read-only picture of a session.
type View struct {
	ID         string              `json:"id"`
	Round      int                 `json:"round"`
	Theme      string              `json:"theme"`
	Complete   bool                `json:"complete"`
	State      convo.DialogueState `json:"dialogue_state"`
	Insights   []convo.Insight     `json:"insights"`
	Transcript []llm.Message       `json:"transcript"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Session is one visitor's conversation. Turns on a session are serialized.
type Session struct {
	ID        string
	CreatedAt time.Time

	agent    *convo.Agent
	pipeline *extract.Pipeline
	tracker  *graph.Tracker
	store    store.Store // optional
	logger   *zap.Logger

	mu       sync.Mutex
	round    int
	theme    string
	complete bool
}

// Respond runs one turn: the agent replies, the visitor's message is
// analyzed for components, and the result is folded into the session graph.
// Persistence failures are logged, never returned; the turn already happened.
func (s *Session) Respond(ctx context.Context, input string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := s.agent.GenerateResponse(ctx, input, s.theme, s.round)
	update, source := s.pipeline.AnalyzeWithSource(ctx, input)
	g := s.tracker.Apply(update)

	if reply.Round >= s.agent.TotalRounds() {
		s.complete = true
	} else {
		s.round = reply.Round + 1
	}
	s.theme = reply.NextTheme

	turn := Turn{
		SessionID: s.ID,
		Reply:     reply,
		Update:    update,
		Source:    source,
		Graph:     g,
		Complete:  s.complete,
	}
	s.persistTurn(ctx, turn)
	return turn
}

// Opening returns the first question a visitor is asked.
func (s *Session) Opening() string {
	return convo.Opening()
}

// Graph returns the accumulated component graph.
func (s *Session) Graph() graph.Graph {
	return s.tracker.Graph()
}

// View returns the session's current state.
func (s *Session) View() View {
	s.mu.Lock()
	round, theme, complete := s.round, s.theme, s.complete
	s.mu.Unlock()

	return View{
		ID:         s.ID,
		Round:      round,
		Theme:      theme,
		Complete:   complete,
		State:      s.agent.State(),
		Insights:   s.agent.Insights(),
		Transcript: s.agent.Transcript(),
		CreatedAt:  s.CreatedAt,
	}
}

// Metrics returns per-turn metrics of the conversation.
func (s *Session) Metrics() []convo.TurnMetrics {
	return s.agent.Metrics()
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent.Reset()
	s.tracker.Reset()
	s.round = 1
	s.theme = convo.ThemeGeneral
	s.complete = false
}

// restore loads persisted state into a fresh session. The transcript and
// memory are not persisted and start empty.
func (s *Session) restore(ctx context.Context) error {
	rec, err := s.store.GetSession(ctx, s.ID)
	if err != nil {
		return err
	}
	insights, err := s.store.ListInsights(ctx, s.ID)
	if err != nil {
		return err
	}
	s.agent.Restore(rec.State, insights)

	snap, err := s.store.LatestSnapshot(ctx, s.ID)
	switch {
	case err == nil:
		// snapshots come from disk; a bad one costs the graph, not the session
		if verr := extract.Validate(snap.Applied); verr != nil {
			s.logger.Warn("discarding invalid graph snapshot",
				zap.Int64("snapshot", snap.ID), zap.Error(verr))
			break
		}
		s.tracker.Restore(snap.Applied)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	s.CreatedAt = rec.CreatedAt
	s.round = rec.Round
	s.theme = rec.Theme
	s.complete = rec.Complete
	return nil
}

func (s *Session) record() *store.SessionRecord {
	return &store.SessionRecord{
		ID:        s.ID,
		Round:     s.round,
		Theme:     s.theme,
		Complete:  s.complete,
		State:     s.agent.State(),
		CreatedAt: s.CreatedAt,
	}
}

func (s *Session) persistTurn(ctx context.Context, turn Turn) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSession(ctx, s.record()); err != nil {
		s.logger.Warn("saving session", zap.String("session", s.ID), zap.Error(err))
		return
	}
	if err := s.store.AddInsights(ctx, s.ID, turn.Insights); err != nil {
		s.logger.Warn("saving insights", zap.String("session", s.ID), zap.Error(err))
	}
	if _, err := s.store.SaveSnapshot(ctx, s.ID, s.tracker.Applied(), turn.Graph); err != nil {
		s.logger.Warn("saving graph snapshot", zap.String("session", s.ID), zap.Error(err))
	}

	eventType := store.EventReply
	if turn.SelectedModel == convo.FallbackModel {
		eventType = store.EventFallback
	}
	s.logEvent(ctx, eventType, map[string]any{
		"round": turn.Round,
		"model": turn.SelectedModel,
		"theme": turn.NextTheme,
	})
	s.logEvent(ctx, store.EventExtract, map[string]any{
		"source":     turn.Source,
		"components": turn.Update.IDs(),
	})
}

func (s *Session) logEvent(ctx context.Context, eventType string, payload map[string]any) {
	if s.store == nil {
		return
	}
	e := &store.Event{SessionID: s.ID, EventType: eventType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			e.Payload = string(b)
		}
	}
	if err := s.store.LogEvent(ctx, e); err != nil {
		s.logger.Warn("logging session event",
			zap.String("session", s.ID), zap.String("event", eventType), zap.Error(err))
	}
}
