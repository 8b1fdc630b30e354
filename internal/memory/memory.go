// Package memory is the bounded, per-session conversation memory.
//
// Entries live in a fixed-capacity ring buffer. When the buffer is full the
// oldest entry is evicted. Retrieval always returns entries in insertion
// order (oldest first).
package memory

import (
	"strings"
	"time"
)

// DefaultCapacity is the number of entries kept per session.
const DefaultCapacity = 20

// Kind classifies an entry.
type Kind string

const (
	KindResponse    Kind = "response"
	KindEvaluation  Kind = "evaluation"
	KindObservation Kind = "observation"
)

// Metadata is optional context attached to an entry.
type Metadata struct {
	Relevance *float64 `json:"relevance,omitempty"`
	Context   string   `json:"context,omitempty"`
	Round     int      `json:"round,omitempty"`
}

// Entry is one remembered exchange.
type Entry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Metadata  Metadata  `json:"metadata"`
}

// Buffer is a ring buffer of entries. It is not safe for concurrent use; it
// is owned by a single conversation engine.
type Buffer struct {
	entries []Entry
	start   int // index of the oldest entry
	size    int
	now     func() time.Time
}

// New creates a buffer holding at most capacity entries. capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, capacity), now: time.Now}
}

// Add stores an entry, evicting the oldest one when full. A zero Timestamp is
// filled with the current time.
func (b *Buffer) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	if b.size < len(b.entries) {
		b.entries[(b.start+b.size)%len(b.entries)] = e
		b.size++
		return
	}
	b.entries[b.start] = e
	b.start = (b.start + 1) % len(b.entries)
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int { return b.size }

// All returns every entry, oldest first.
func (b *Buffer) All() []Entry {
	out := make([]Entry, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.entries[(b.start+i)%len(b.entries)])
	}
	return out
}

// Relevant returns up to limit entries whose content contains query, or any
// of its words of four letters or more, case-insensitively. Results keep
// insertion order. limit <= 0 means no limit; an empty query matches nothing.
func (b *Buffer) Relevant(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	terms := []string{q}
	for _, w := range strings.Fields(q) {
		if len(w) >= 4 && w != q {
			terms = append(terms, w)
		}
	}

	var out []Entry
	for _, e := range b.All() {
		content := strings.ToLower(e.Content)
		for _, term := range terms {
			if strings.Contains(content, term) {
				out = append(out, e)
				break
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// OfKind returns entries of the given kind, oldest first.
func (b *Buffer) OfKind(k Kind) []Entry {
	var out []Entry
	for _, e := range b.All() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every entry.
func (b *Buffer) Reset() {
	for i := range b.entries {
		b.entries[i] = Entry{}
	}
	b.start, b.size = 0, 0
}
