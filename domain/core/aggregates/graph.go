package aggregates

import (
	"fmt"
	"strconv"
	"strings"

	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

type slotKey struct {
	node valueobjects.NodeID
	side valueobjects.Side
}

// Graph is the canonical in-memory graph of one session view. It keeps
// nodes and edges in insertion order and enforces that a node has at most
// one left and one right child edge.
//
// Graph is not safe for concurrent use; its owner serializes access.
type Graph struct {
	nodes     []entities.Node
	nodeIndex map[valueobjects.NodeID]int
	edges     []entities.Edge
	edgeIndex map[valueobjects.EdgeID]int
	slots     map[slotKey]valueobjects.EdgeID
	seq       int
	version   int
}

// ReplaceReport describes what ReplaceAll had to discard to keep the graph
// consistent.
type ReplaceReport struct {
	Nodes        int
	Edges        int
	DroppedNodes []valueobjects.NodeID
	DroppedEdges []entities.Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	g := &Graph{}
	g.reset()
	return g
}

func (g *Graph) reset() {
	g.nodes = nil
	g.edges = nil
	g.nodeIndex = make(map[valueobjects.NodeID]int)
	g.edgeIndex = make(map[valueobjects.EdgeID]int)
	g.slots = make(map[slotKey]valueobjects.EdgeID)
}

// Seq returns the id sequence counter. It only grows, except on Clear.
func (g *Graph) Seq() int { return g.seq }

// Version increments on every successful mutation.
func (g *Graph) Version() int { return g.version }

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddNode stores a new node and returns the id assigned to it.
func (g *Graph) AddNode(label string, pos valueobjects.Position) valueobjects.NodeID {
	var id valueobjects.NodeID
	for {
		g.seq++
		id = valueobjects.NodeID(strconv.Itoa(g.seq))
		if _, taken := g.nodeIndex[id]; !taken {
			break
		}
	}
	g.nodeIndex[id] = len(g.nodes)
	g.nodes = append(g.nodes, entities.Node{ID: id, Label: label, Position: pos})
	g.version++
	return id
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id valueobjects.NodeID) (entities.Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return entities.Node{}, false
	}
	return g.nodes[i], true
}

// HasNode reports whether id is present.
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// RemoveNode deletes a node together with every edge touching it.
func (g *Graph) RemoveNode(id valueobjects.NodeID) error {
	i, ok := g.nodeIndex[id]
	if !ok {
		return pkgerrors.NewNotFound(fmt.Sprintf("node %q not found", id))
	}
	g.RemoveEdgesTouching(id)
	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	g.reindexNodes()
	g.version++
	return nil
}

// MoveNode writes back a position, typically from a drag on the canvas.
func (g *Graph) MoveNode(id valueobjects.NodeID, pos valueobjects.Position) error {
	i, ok := g.nodeIndex[id]
	if !ok {
		return pkgerrors.NewNotFound(fmt.Sprintf("node %q not found", id))
	}
	if !pos.Valid() {
		return pkgerrors.NewValidation("invalid coordinates: must be finite numbers")
	}
	g.nodes[i].Position = pos
	g.version++
	return nil
}

// AddEdge connects source to target. A slotted side that is already taken
// fails with SlotOccupied; the occupying edge must be removed first.
func (g *Graph) AddEdge(source, target valueobjects.NodeID, side valueobjects.Side) (valueobjects.EdgeID, error) {
	if !g.HasNode(source) {
		return "", pkgerrors.NewNotFound(fmt.Sprintf("source node %q not found", source))
	}
	if !g.HasNode(target) {
		return "", pkgerrors.NewNotFound(fmt.Sprintf("target node %q not found", target))
	}
	if source == target {
		return "", pkgerrors.NewValidation("cannot connect a node to itself")
	}

	edge := entities.NewEdge(source, target, side)
	if _, exists := g.edgeIndex[edge.ID]; exists {
		return edge.ID, pkgerrors.NewDuplicateEdge(fmt.Sprintf("edge %s already exists", edge.ID))
	}
	if side.Slotted() {
		if occupant, taken := g.slots[slotKey{source, side}]; taken {
			return "", pkgerrors.NewSlotOccupied(fmt.Sprintf("%s slot of node %q is occupied by %s", side, source, occupant))
		}
		g.slots[slotKey{source, side}] = edge.ID
	}

	g.edgeIndex[edge.ID] = len(g.edges)
	g.edges = append(g.edges, edge)
	g.version++
	return edge.ID, nil
}

// Edge returns a copy of the edge with the given id.
func (g *Graph) Edge(id valueobjects.EdgeID) (entities.Edge, bool) {
	i, ok := g.edgeIndex[id]
	if !ok {
		return entities.Edge{}, false
	}
	return g.edges[i], true
}

// RemoveEdge deletes one edge, freeing its slot.
func (g *Graph) RemoveEdge(id valueobjects.EdgeID) error {
	i, ok := g.edgeIndex[id]
	if !ok {
		return pkgerrors.NewNotFound(fmt.Sprintf("edge %q not found", id))
	}
	g.dropSlot(g.edges[i])
	g.edges = append(g.edges[:i], g.edges[i+1:]...)
	g.reindexEdges()
	g.version++
	return nil
}

// RemoveEdgesTouching deletes every edge with id as an endpoint and returns
// how many were removed.
func (g *Graph) RemoveEdgesTouching(id valueobjects.NodeID) int {
	kept := g.edges[:0]
	removed := 0
	for _, e := range g.edges {
		if e.Touches(id) {
			g.dropSlot(e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	if removed > 0 {
		g.reindexEdges()
		g.version++
	}
	return removed
}

func (g *Graph) dropSlot(e entities.Edge) {
	if !e.Side.Slotted() {
		return
	}
	key := slotKey{e.Source, e.Side}
	if g.slots[key] == e.ID {
		delete(g.slots, key)
	}
}

// SlotOccupant returns the edge holding the given slot of a node.
func (g *Graph) SlotOccupant(id valueobjects.NodeID, side valueobjects.Side) (entities.Edge, bool) {
	edgeID, ok := g.slots[slotKey{id, side}]
	if !ok {
		return entities.Edge{}, false
	}
	return g.Edge(edgeID)
}

// SlotFree reports whether a slotted side of the node is still open.
// Unconstrained sides are always free.
func (g *Graph) SlotFree(id valueobjects.NodeID, side valueobjects.Side) bool {
	if !side.Slotted() {
		return true
	}
	_, taken := g.slots[slotKey{id, side}]
	return !taken
}

// FirstFreeSlot returns left if open, then right. ok is false when both
// slots are taken.
func (g *Graph) FirstFreeSlot(id valueobjects.NodeID) (valueobjects.Side, bool) {
	for _, side := range valueobjects.Sides {
		if g.SlotFree(id, side) {
			return side, true
		}
	}
	return valueobjects.SideNone, false
}

// Resolve turns a reference into a node id. Labels match exactly and then
// case-insensitively, earlier nodes winning ties. With kind RefID an exact
// id is tried before labels; otherwise it is the last resort.
func (g *Graph) Resolve(ref string, kind valueobjects.RefKind) (valueobjects.NodeID, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	byID := g.HasNode(valueobjects.NodeID(ref))
	if byID && kind.IDFirst() {
		return valueobjects.NodeID(ref), true
	}
	for _, n := range g.nodes {
		if n.Label == ref {
			return n.ID, true
		}
	}
	for _, n := range g.nodes {
		if strings.EqualFold(n.Label, ref) {
			return n.ID, true
		}
	}
	if byID {
		return valueobjects.NodeID(ref), true
	}
	return "", false
}

// MatchLabel returns every node whose label equals value, case-insensitively.
func (g *Graph) MatchLabel(value string) []valueobjects.NodeID {
	var ids []valueobjects.NodeID
	for _, n := range g.nodes {
		if strings.EqualFold(strings.TrimSpace(n.Label), strings.TrimSpace(value)) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Positions lists node positions in insertion order.
func (g *Graph) Positions() []valueobjects.Position {
	out := make([]valueobjects.Position, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Position
	}
	return out
}

// Bounds returns the bounding box of all nodes.
func (g *Graph) Bounds() valueobjects.Rect {
	return valueobjects.BoundsOf(g.Positions())
}

// Snapshot returns a deep copy of the graph.
func (g *Graph) Snapshot() entities.Snapshot {
	return entities.Snapshot{Nodes: g.nodes, Edges: g.edges}.Clone()
}

// ReplaceAll swaps the whole graph for an authoritative snapshot. Ids are
// adopted verbatim. Edges that would dangle, duplicate an existing pair or
// take an occupied slot are dropped and reported.
func (g *Graph) ReplaceAll(snapshot entities.Snapshot) ReplaceReport {
	g.reset()
	g.seq = 0
	report := ReplaceReport{}

	for _, n := range snapshot.Nodes {
		if n.ID == "" {
			n.ID = g.nextFreeID(snapshot)
		}
		if _, dup := g.nodeIndex[n.ID]; dup {
			report.DroppedNodes = append(report.DroppedNodes, n.ID)
			continue
		}
		if !n.Position.Valid() {
			n.Position = valueobjects.Origin
		}
		g.nodeIndex[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
		if v, err := strconv.Atoi(string(n.ID)); err == nil && v > g.seq {
			g.seq = v
		}
	}

	for _, e := range snapshot.Edges {
		side := valueobjects.ParseSide(string(e.Side))
		if _, err := g.AddEdge(e.Source, e.Target, side); err != nil {
			report.DroppedEdges = append(report.DroppedEdges, e)
		}
	}

	if g.seq < len(g.nodes) {
		g.seq = len(g.nodes)
	}
	report.Nodes = len(g.nodes)
	report.Edges = len(g.edges)
	g.version++
	return report
}

func (g *Graph) nextFreeID(snapshot entities.Snapshot) valueobjects.NodeID {
	taken := make(map[valueobjects.NodeID]struct{}, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		taken[n.ID] = struct{}{}
	}
	for i := len(g.nodes) + 1; ; i++ {
		id := valueobjects.NodeID(strconv.Itoa(i))
		if _, ok := taken[id]; ok {
			continue
		}
		if _, ok := g.nodeIndex[id]; ok {
			continue
		}
		return id
	}
}

// Clear empties the graph and restarts the id sequence.
func (g *Graph) Clear() {
	g.reset()
	g.seq = 0
	g.version++
}

// Validate checks internal consistency: no dangling edges and at most one
// edge per slot.
func (g *Graph) Validate() error {
	seen := make(map[slotKey]bool)
	for _, e := range g.edges {
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			return pkgerrors.NewInternal(fmt.Sprintf("edge %s references a missing node", e.ID), nil)
		}
		if !e.Side.Slotted() {
			continue
		}
		key := slotKey{e.Source, e.Side}
		if seen[key] {
			return pkgerrors.NewInternal(fmt.Sprintf("node %q has two %s children", e.Source, e.Side), nil)
		}
		seen[key] = true
	}
	return nil
}

func (g *Graph) reindexNodes() {
	g.nodeIndex = make(map[valueobjects.NodeID]int, len(g.nodes))
	for i, n := range g.nodes {
		g.nodeIndex[n.ID] = i
	}
}

func (g *Graph) reindexEdges() {
	g.edgeIndex = make(map[valueobjects.EdgeID]int, len(g.edges))
	for i, e := range g.edges {
		g.edgeIndex[e.ID] = i
	}
}
