package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/imagegen"
	"github.com/hurttlocker/scout/internal/session"
)

// maxBody bounds request payloads.
const maxBody = 64 << 10

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID   string             `json:"session_id"`
	Opening     string             `json:"opening"`
	Round       int                `json:"round"`
	TotalRounds int                `json:"total_rounds"`
	Graph       graph.ExportResult `json:"graph"`
}

// RespondRequest is the body of POST /api/sessions/{id}/respond.
type RespondRequest struct {
	Message string `json:"message"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	Update extract.NetworkUpdate `json:"update"`
	Source extract.Source        `json:"source"`
	Graph  graph.ExportResult    `json:"graph"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	graph.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  rt.version,
		"sessions": len(rt.manager.IDs()),
	})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := rt.manager.Create(r.Context())
	if err != nil {
		rt.internalError(w, "creating session", err)
		return
	}
	view := s.View()
	graph.WriteJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID:   s.ID,
		Opening:     s.Opening(),
		Round:       view.Round,
		TotalRounds: rt.manager.TotalRounds(),
		Graph:       graph.Export(s.Graph()),
	})
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	graph.WriteJSON(w, http.StatusOK, map[string]any{"sessions": rt.manager.IDs()})
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	graph.WriteJSON(w, http.StatusOK, s.View())
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := rt.manager.Delete(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, session.ErrNotFound) {
		graph.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		rt.internalError(w, "deleting session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) resetSession(w http.ResponseWriter, r *http.Request) {
	s, err := rt.manager.Reset(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, session.ErrNotFound) {
		graph.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		rt.internalError(w, "resetting session", err)
		return
	}
	graph.WriteJSON(w, http.StatusOK, s.View())
}

func (rt *Router) respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		graph.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	s, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	graph.WriteJSON(w, http.StatusOK, s.Respond(r.Context(), req.Message))
}

func (rt *Router) sessionGraph(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	graph.WriteJSON(w, http.StatusOK, graph.Export(s.Graph()))
}

func (rt *Router) sessionImage(w http.ResponseWriter, r *http.Request) {
	if rt.images == nil || !rt.images.Configured() {
		graph.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "image service not configured"})
		return
	}
	s, ok := rt.lookup(w, r)
	if !ok {
		return
	}

	var components []string
	for _, n := range s.Graph().Nodes {
		if n.Height == graph.LeafHeight {
			components = append(components, n.ID)
		}
	}
	resp, err := rt.images.Generate(r.Context(), imagegen.Request{
		Description: imagegen.Describe(s.View().Insights, components),
		ProfileID:   s.ID,
	})
	if err != nil {
		rt.logger.Warn("image generation failed", zap.String("session", s.ID), zap.Error(err))
		graph.WriteJSON(w, http.StatusBadGateway, imagegen.Response{Status: imagegen.StatusError, Error: "image generation failed"})
		return
	}
	graph.WriteJSON(w, http.StatusOK, resp)
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	update, source := rt.manager.Analyze(r.Context(), req.Text)
	merged := graph.MergeWith(rt.manager.Library(), graph.SkeletonFor(rt.manager.Library()), update)
	graph.WriteJSON(w, http.StatusOK, AnalyzeResponse{
		Update: update,
		Source: source,
		Graph:  graph.Export(merged),
	})
}

func (rt *Router) listPatterns(w http.ResponseWriter, r *http.Request) {
	graph.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": rt.manager.Library().Describe(),
	})
}

// lookup resolves the {sessionID} parameter, writing the error response when
// it fails.
func (rt *Router) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := rt.manager.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, session.ErrNotFound) {
		graph.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return nil, false
	}
	if err != nil {
		rt.internalError(w, "loading session", err)
		return nil, false
	}
	return s, true
}

func (rt *Router) internalError(w http.ResponseWriter, msg string, err error) {
	rt.logger.Error(msg, zap.Error(err))
	graph.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		graph.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "reading body"})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		graph.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}
