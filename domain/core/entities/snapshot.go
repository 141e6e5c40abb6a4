package entities

import "treeview-ai/domain/core/valueobjects"

// Snapshot is the full {nodes, edges} state exchanged with the session and
// chat services. Slice order is insertion order.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy with non-nil slices.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	copy(out.Nodes, s.Nodes)
	copy(out.Edges, s.Edges)
	return out
}

// IsEmpty reports whether the snapshot carries no nodes and no edges.
func (s Snapshot) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Edges) == 0
}

// Node looks a node up by id.
func (s Snapshot) Node(id valueobjects.NodeID) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Equivalent compares two snapshots by id and content, ignoring order.
func (s Snapshot) Equivalent(other Snapshot) bool {
	if len(s.Nodes) != len(other.Nodes) || len(s.Edges) != len(other.Edges) {
		return false
	}
	nodes := make(map[valueobjects.NodeID]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.ID] = n
	}
	for _, n := range other.Nodes {
		mine, ok := nodes[n.ID]
		if !ok || mine.Label != n.Label || !mine.Position.Equals(n.Position) {
			return false
		}
	}
	edges := make(map[valueobjects.EdgeID]Edge, len(s.Edges))
	for _, e := range s.Edges {
		edges[e.ID] = e
	}
	for _, e := range other.Edges {
		if mine, ok := edges[e.ID]; !ok || mine != e {
			return false
		}
	}
	return true
}
