package graph

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/patterns"
)

// maxMergeBody bounds POST /merge payloads.
const maxMergeBody = 1 << 20

// ExportResult is the graph payload served over HTTP.
type ExportResult struct {
	Nodes []Node         `json:"nodes"`
	Links []Link         `json:"links"`
	Meta  map[string]any `json:"meta"`
}

// Export wraps g with node and link counts.
func Export(g Graph) ExportResult {
	leaves := 0
	for _, n := range g.Nodes {
		if n.Height == LeafHeight {
			leaves++
		}
	}
	nodes, links := g.Nodes, g.Links
	if nodes == nil {
		nodes = []Node{}
	}
	if links == nil {
		links = []Link{}
	}
	return ExportResult{
		Nodes: nodes,
		Links: links,
		Meta: map[string]any{
			"root":        RootID,
			"total_nodes": len(nodes),
			"total_links": len(links),
			"leaves":      leaves,
		},
	}
}

// MergeRequest is the body of POST /merge. Graph may be omitted, in which
// case the skeleton is used. Update is decoded strictly: one schema problem
// rejects the whole request.
type MergeRequest struct {
	Graph  *Graph          `json:"graph,omitempty"`
	Update json.RawMessage `json:"update"`
}

// Handler serves the stateless graph endpoints.
type Handler struct {
	lib    *patterns.Library
	logger *zap.Logger
}

// NewHandler creates a graph handler. A nil library means the default one.
func NewHandler(lib *patterns.Library, logger *zap.Logger) *Handler {
	if lib == nil {
		lib = patterns.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{lib: lib, logger: logger}
}

// Routes mounts GET /skeleton and POST /merge.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/skeleton", h.handleSkeleton)
	r.Post("/merge", h.handleMerge)
	return r
}

func (h *Handler) handleSkeleton(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, Export(SkeletonFor(h.lib)))
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMergeBody))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body"})
		return
	}
	var req MergeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if len(req.Update) == 0 {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "update is required"})
		return
	}

	update, err := decodeUpdateField(req.Update)
	if err != nil {
		var verr *extract.ValidationError
		if errors.As(err, &verr) {
			WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":    "invalid network update",
				"problems": verr.Problems,
			})
			return
		}
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	current := SkeletonFor(h.lib)
	if req.Graph != nil {
		current = *req.Graph
	}
	merged := MergeWith(h.lib, current, *update)
	h.logger.Debug("graph merged", zap.Int("leaves", update.Len()))
	WriteJSON(w, http.StatusOK, Export(merged))
}

// decodeUpdateField accepts the update either as a JSON object or as a
// string holding free text with an embedded update.
func decodeUpdateField(raw json.RawMessage) (*extract.NetworkUpdate, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return extract.ParseUpdate(text)
	}
	return extract.DecodeUpdate(raw)
}

// WriteJSON writes data as indented JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
