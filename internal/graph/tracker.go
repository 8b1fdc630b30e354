package graph

import (
	"sync"

	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/patterns"
)

// Tracker accumulates updates for one session and keeps the merged graph.
// Merge itself only ever shows the leaves of the update it is given, so the
// tracker folds every update into a running union and re-merges that.
type Tracker struct {
	mu      sync.Mutex
	lib     *patterns.Library
	applied extract.NetworkUpdate
	graph   Graph
}

// NewTracker returns a tracker seeded with the skeleton of lib (the default
// library when nil).
func NewTracker(lib *patterns.Library) *Tracker {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Tracker{
		lib:     lib,
		applied: extract.NewNetworkUpdate(),
		graph:   SkeletonFor(lib),
	}
}

// Apply adds the components of u not yet seen in their category and returns
// the new graph.
func (t *Tracker) Apply(u extract.NetworkUpdate) Graph {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, kind := range patterns.Kinds {
		have := make(map[string]bool)
		for _, c := range t.applied.Components(kind) {
			have[c.ID] = true
		}
		for _, c := range u.Components(kind) {
			if have[c.ID] {
				continue
			}
			have[c.ID] = true
			t.applied.Add(kind, c)
		}
	}
	t.graph = MergeWith(t.lib, t.graph, t.applied)
	return t.graph
}

// Graph returns the current graph.
func (t *Tracker) Graph() Graph {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph
}

// Applied returns the accumulated update.
func (t *Tracker) Applied() extract.NetworkUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := extract.NewNetworkUpdate()
	for _, kind := range patterns.Kinds {
		for _, c := range t.applied.Components(kind) {
			out.Add(kind, c)
		}
	}
	return out
}

// Restore replaces the accumulated state, e.g. after loading a snapshot.
func (t *Tracker) Restore(u extract.NetworkUpdate) Graph {
	t.mu.Lock()
	t.applied = extract.NewNetworkUpdate()
	t.graph = SkeletonFor(t.lib)
	t.mu.Unlock()
	return t.Apply(u)
}

// Reset drops every leaf.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied = extract.NewNetworkUpdate()
	t.graph = SkeletonFor(t.lib)
}
