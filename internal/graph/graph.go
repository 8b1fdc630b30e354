// Package graph holds the component graph rendered next to the dialogue: a
// fixed root, one node per pattern category, and leaf nodes for the
// components extracted from the conversation.
package graph

import (
	"github.com/hurttlocker/scout/internal/extract"
	"github.com/hurttlocker/scout/internal/patterns"
)

// RootID names the single root node.
const RootID = "MCP Server"

// Node sizes, heights and colors per level.
const (
	RootSize     = 32
	CategorySize = 24
	LeafSize     = 16

	RootHeight     = 0
	CategoryHeight = 1
	LeafHeight     = 2

	RootColor     = "#4F46E5"
	CategoryColor = "#0EA5E9"
	LeafColor     = "#F59E0B"
)

// Link distances.
const (
	RootDistance     = 120
	CategoryDistance = 60
)

// Node is one vertex of the graph.
type Node struct {
	ID       string         `json:"id"`
	Height   int            `json:"height"`
	Size     float64        `json:"size"`
	Color    string         `json:"color"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Link is a directed edge from a parent to a child node.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Distance int    `json:"distance"`
}

// Graph is a node/link list. Node order is skeleton first, then leaves in
// the order they were merged.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node returns the first node with id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Leaves returns the height-2 nodes hanging off categoryID. Leaves merged by
// this package carry their category in metadata; others are matched by link.
func (g Graph) Leaves(categoryID string) []Node {
	linked := make(map[string]bool)
	for _, l := range g.Links {
		if l.Source == categoryID {
			linked[l.Target] = true
		}
	}
	var out []Node
	for _, n := range g.Nodes {
		if n.Height != LeafHeight {
			continue
		}
		if cat, ok := n.Metadata["category"].(string); ok {
			if cat == categoryID {
				out = append(out, n)
			}
			continue
		}
		if linked[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Skeleton returns the root and category nodes of the default library.
func Skeleton() Graph {
	return SkeletonFor(patterns.Default())
}

// SkeletonFor builds the fixed part of the graph from lib: the root, one node
// per category in table order, and a root->category link for each.
func SkeletonFor(lib *patterns.Library) Graph {
	g := Graph{
		Nodes: []Node{rootNode()},
		Links: []Link{},
	}
	for _, cat := range lib.Categories() {
		g.Nodes = append(g.Nodes, categoryNode(cat))
		g.Links = append(g.Links, Link{Source: RootID, Target: cat.ID, Distance: RootDistance})
	}
	return g
}

func rootNode() Node {
	return Node{ID: RootID, Height: RootHeight, Size: RootSize, Color: RootColor}
}

func categoryNode(cat patterns.Category) Node {
	n := Node{ID: cat.ID, Height: CategoryHeight, Size: CategorySize, Color: CategoryColor}
	if len(cat.Metadata) > 0 {
		n.Metadata = make(map[string]any, len(cat.Metadata)+1)
		for k, v := range cat.Metadata {
			n.Metadata[k] = v
		}
		n.Metadata["kind"] = string(cat.Kind)
	}
	return n
}

// Merge folds update into current using the default library. See MergeWith.
func Merge(current Graph, update extract.NetworkUpdate) Graph {
	return MergeWith(patterns.Default(), current, update)
}

// MergeWith returns a new graph made of the skeleton found in current plus
// one leaf per component in update.
//
// Leaves already present in current are not carried over: the result holds
// exactly the leaves of this update. Callers that want leaves to accumulate
// across calls keep the union themselves (see Tracker).
//
// Skeleton nodes are copied from current when present and rebuilt from lib
// otherwise, so the root and the three categories are never lost. A
// component naming a category node does not become a leaf, since leaf ids
// must not collide with the skeleton; it marks that category as mentioned
// instead (see MentionKey). Ids repeated within one category are merged, and
// the same id under two categories yields two leaves.
func MergeWith(lib *patterns.Library, current Graph, update extract.NetworkUpdate) Graph {
	out := Graph{Nodes: []Node{}, Links: []Link{}}

	root, ok := current.Node(RootID)
	if !ok {
		root = rootNode()
	}
	out.Nodes = append(out.Nodes, cloneNode(root))

	categories := make(map[string]int) // category id -> index in out.Nodes
	for _, cat := range lib.Categories() {
		n, ok := current.Node(cat.ID)
		if !ok {
			n = categoryNode(cat)
		}
		n = cloneNode(n)
		clearMention(&n)
		categories[cat.ID] = len(out.Nodes)
		out.Nodes = append(out.Nodes, n)
		out.Links = append(out.Links, rootLink(current, cat.ID))
	}

	for _, cat := range lib.Categories() {
		seen := make(map[string]bool)
		for _, c := range update.Components(cat.Kind) {
			if c.ID == RootID || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			if i, ok := categories[c.ID]; ok {
				markMentioned(&out.Nodes[i], c)
				continue
			}
			out.Nodes = append(out.Nodes, leafNode(c, cat))
			out.Links = append(out.Links, Link{Source: cat.ID, Target: c.ID, Distance: CategoryDistance})
		}
	}
	return out
}

// Metadata keys set on a category node named directly by an update.
const (
	MentionKey       = "mentioned"
	MentionDetailKey = "mention"
)

// Mentioned reports whether the node was named directly by the last merged
// update.
func (n Node) Mentioned() bool {
	v, _ := n.Metadata[MentionKey].(bool)
	return v
}

func markMentioned(n *Node, c extract.Component) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[MentionKey] = true
	detail := make(map[string]any)
	for k, v := range map[string]string{"title": c.Title, "description": c.Description, "icon": c.Icon} {
		if v != "" {
			detail[k] = v
		}
	}
	if len(detail) > 0 {
		n.Metadata[MentionDetailKey] = detail
	}
}

// clearMention drops a stamp inherited from current; mentions, like leaves,
// reflect only the update being merged.
func clearMention(n *Node) {
	if n.Metadata == nil {
		return
	}
	delete(n.Metadata, MentionKey)
	delete(n.Metadata, MentionDetailKey)
}

// rootLink keeps an existing root->category link so a caller-tuned distance
// survives the merge.
func rootLink(current Graph, categoryID string) Link {
	for _, l := range current.Links {
		if l.Source == RootID && l.Target == categoryID {
			return l
		}
	}
	return Link{Source: RootID, Target: categoryID, Distance: RootDistance}
}

func leafNode(c extract.Component, cat patterns.Category) Node {
	meta := map[string]any{"category": cat.ID}
	set := func(k, v string) {
		if v != "" {
			meta[k] = v
		}
	}
	set("title", c.Title)
	set("description", c.Description)
	set("icon", c.Icon)
	set("type", c.Type)
	set("parent", c.Parent)
	if len(c.Details) > 0 {
		meta["details"] = c.Details
	}
	return Node{ID: c.ID, Height: LeafHeight, Size: LeafSize, Color: LeafColor, Metadata: meta}
}

func cloneNode(n Node) Node {
	if n.Metadata == nil {
		return n
	}
	meta := make(map[string]any, len(n.Metadata))
	for k, v := range n.Metadata {
		meta[k] = v
	}
	n.Metadata = meta
	return n
}
