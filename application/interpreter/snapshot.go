package interpreter

import (
	"strconv"

	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
)

// DecodeSnapshot reads an authoritative graph from a tree_data value. It
// accepts {nodes, edges} arrays as well as a nested {value, left, right}
// tree, optionally under "root". ok is false when neither shape is present.
// Nodes that carry no coordinates are returned in unplaced.
func DecodeSnapshot(v any) (snap entities.Snapshot, unplaced []valueobjects.NodeID, ok bool) {
	m, isMap := decodeNested(v)
	if !isMap {
		return entities.Snapshot{}, nil, false
	}

	rawNodes, hasNodes := arrayField(m, "nodes")
	rawEdges, hasEdges := arrayField(m, "edges")
	if hasNodes || hasEdges {
		snap, unplaced = flatSnapshot(rawNodes, rawEdges)
		return snap, unplaced, true
	}

	if root, found := lookup(m, "root"); found {
		if rm, isMap := decodeNested(root); isMap {
			snap, unplaced = nestedSnapshot(rm)
			return snap, unplaced, true
		}
	}
	if _, found := lookup(m, "value"); found {
		if _, l := lookup(m, "left"); l {
			snap, unplaced = nestedSnapshot(m)
			return snap, unplaced, true
		}
		if _, r := lookup(m, "right"); r {
			snap, unplaced = nestedSnapshot(m)
			return snap, unplaced, true
		}
	}
	return entities.Snapshot{}, nil, false
}

func arrayField(m map[string]any, key string) ([]any, bool) {
	v, ok := lookup(m, key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

func flatSnapshot(rawNodes, rawEdges []any) (entities.Snapshot, []valueobjects.NodeID) {
	snap := entities.Snapshot{
		Nodes: make([]entities.Node, 0, len(rawNodes)),
		Edges: make([]entities.Edge, 0, len(rawEdges)),
	}
	var unplaced []valueobjects.NodeID

	type pending struct {
		node   entities.Node
		placed bool
		needID bool
	}
	items := make([]pending, 0, len(rawNodes))
	taken := make(map[valueobjects.NodeID]bool)

	for _, raw := range rawNodes {
		var p pending
		switch t := raw.(type) {
		case map[string]any:
			if id, ok := firstString(t, nodeIDKeys); ok {
				p.node.ID = valueobjects.NodeID(id)
				taken[p.node.ID] = true
			} else {
				p.needID = true
			}
			p.node.Label, _ = firstString(t, nodeLabelKeys)
			if p.node.Label == "" {
				if data, ok := lookup(t, "data"); ok {
					if dm, ok := data.(map[string]any); ok {
						p.node.Label, _ = firstString(dm, nodeLabelKeys)
					}
				}
			}
			if pos, ok := position(t); ok {
				p.node.Position = *pos
				p.placed = true
			}
		default:
			label, ok := scalar(t)
			if !ok {
				continue
			}
			p.node.Label = label
			p.needID = true
		}
		if p.node.Label == "" {
			p.node.Label = string(p.node.ID)
		}
		items = append(items, p)
	}

	next := 1
	for _, p := range items {
		if p.needID {
			for taken[valueobjects.NodeID(strconv.Itoa(next))] {
				next++
			}
			p.node.ID = valueobjects.NodeID(strconv.Itoa(next))
			taken[p.node.ID] = true
			if p.node.Label == "" {
				p.node.Label = string(p.node.ID)
			}
		}
		snap.Nodes = append(snap.Nodes, p.node)
		if !p.placed {
			unplaced = append(unplaced, p.node.ID)
		}
	}

	for _, raw := range rawEdges {
		em, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		src, okS := firstString(em, edgeFromKeys)
		tgt, okT := firstString(em, edgeToKeys)
		if !okS || !okT {
			continue
		}
		side := firstSide(em, append(append([]string{}, sideKeys...), "label", "sourceHandle"))
		snap.Edges = append(snap.Edges, entities.NewEdge(valueobjects.NodeID(src), valueobjects.NodeID(tgt), side))
	}
	return snap, unplaced
}

// nestedSnapshot flattens a {value, left, right} tree in pre-order. Ids are
// assigned 1..n and every node is left for layout.
func nestedSnapshot(root map[string]any) (entities.Snapshot, []valueobjects.NodeID) {
	snap := entities.Snapshot{Nodes: []entities.Node{}, Edges: []entities.Edge{}}
	var unplaced []valueobjects.NodeID
	seq := 0

	var walk func(m map[string]any, depth int) valueobjects.NodeID
	walk = func(m map[string]any, depth int) valueobjects.NodeID {
		if depth > maxTreeDepth {
			return ""
		}
		label, ok := firstString(m, nodeLabelKeys)
		if !ok {
			return ""
		}
		seq++
		id := valueobjects.NodeID(strconv.Itoa(seq))
		snap.Nodes = append(snap.Nodes, entities.Node{ID: id, Label: label})
		unplaced = append(unplaced, id)

		for _, side := range valueobjects.Sides {
			child, ok := lookup(m, string(side))
			if !ok {
				continue
			}
			cm, ok := child.(map[string]any)
			if !ok {
				continue
			}
			if cid := walk(cm, depth+1); cid != "" {
				snap.Edges = append(snap.Edges, entities.NewEdge(id, cid, side))
			}
		}
		return id
	}
	walk(root, 0)
	return snap, unplaced
}

const maxTreeDepth = 256
