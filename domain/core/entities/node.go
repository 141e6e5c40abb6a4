package entities

import (
	"treeview-ai/domain/core/valueobjects"
)

// Node is a labelled point on the canvas. Highlighting is derived from the
// active highlight set and never stored on the node.
type Node struct {
	ID       valueobjects.NodeID   `json:"id"`
	Label    string                `json:"label"`
	Position valueobjects.Position `json:"position"`
}

// Edge is a directed connection. Side names the child slot it fills on the
// source node; an empty side is an unconstrained extra edge.
type Edge struct {
	ID     valueobjects.EdgeID `json:"id"`
	Source valueobjects.NodeID `json:"source"`
	Target valueobjects.NodeID `json:"target"`
	Side   valueobjects.Side   `json:"side,omitempty"`
}

// NewEdge builds an edge with its derived id.
func NewEdge(source, target valueobjects.NodeID, side valueobjects.Side) Edge {
	return Edge{
		ID:     valueobjects.EdgeIDFor(source, target),
		Source: source,
		Target: target,
		Side:   side,
	}
}

// Touches reports whether the edge has id as either endpoint.
func (e Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}
