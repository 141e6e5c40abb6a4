package services

import (
	"fmt"
	"strings"

	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

// TraversalOrder names a visiting order over left/right children.
type TraversalOrder string

const (
	InOrder    TraversalOrder = "inorder"
	PreOrder   TraversalOrder = "preorder"
	PostOrder  TraversalOrder = "postorder"
	LevelOrder TraversalOrder = "levelorder"
)

// ParseTraversalOrder accepts the usual spellings ("in-order", "Level Order",
// "bfs", ...).
func ParseTraversalOrder(s string) (TraversalOrder, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch norm {
	case "inorder", "in":
		return InOrder, nil
	case "preorder", "pre", "dfs":
		return PreOrder, nil
	case "postorder", "post":
		return PostOrder, nil
	case "levelorder", "level", "bfs", "breadthfirst":
		return LevelOrder, nil
	default:
		return "", pkgerrors.NewValidation(fmt.Sprintf("unknown traversal order %q", s))
	}
}

type children struct {
	left, right valueobjects.NodeID
}

// Traverse walks the slotted edges of a snapshot. With a root only that
// subtree is visited; otherwise every node without a slotted parent starts a
// walk, in insertion order, and nodes left unreached are appended at the end.
func Traverse(snap entities.Snapshot, order TraversalOrder, root valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	kids := make(map[valueobjects.NodeID]children, len(snap.Nodes))
	hasParent := make(map[valueobjects.NodeID]bool, len(snap.Nodes))
	for _, e := range snap.Edges {
		c := kids[e.Source]
		switch e.Side {
		case valueobjects.SideLeft:
			c.left = e.Target
		case valueobjects.SideRight:
			c.right = e.Target
		default:
			continue
		}
		kids[e.Source] = c
		hasParent[e.Target] = true
	}

	w := &walker{kids: kids, seen: make(map[valueobjects.NodeID]bool)}

	if root != "" {
		if _, ok := snap.Node(root); !ok {
			return nil, pkgerrors.NewNotFound(fmt.Sprintf("node %q not found", root))
		}
		w.walk(order, []valueobjects.NodeID{root})
		return w.out, nil
	}

	var roots []valueobjects.NodeID
	for _, n := range snap.Nodes {
		if !hasParent[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	w.walk(order, roots)
	for _, n := range snap.Nodes {
		if !w.seen[n.ID] {
			w.walk(order, []valueobjects.NodeID{n.ID})
		}
	}
	return w.out, nil
}

type walker struct {
	kids map[valueobjects.NodeID]children
	seen map[valueobjects.NodeID]bool
	out  []valueobjects.NodeID
}

func (w *walker) walk(order TraversalOrder, roots []valueobjects.NodeID) {
	if order == LevelOrder {
		w.level(roots)
		return
	}
	for _, r := range roots {
		w.depth(order, r)
	}
}

func (w *walker) visit(id valueobjects.NodeID) {
	w.out = append(w.out, id)
}

func (w *walker) depth(order TraversalOrder, id valueobjects.NodeID) {
	if id == "" || w.seen[id] {
		return
	}
	w.seen[id] = true
	c := w.kids[id]
	switch order {
	case PreOrder:
		w.visit(id)
		w.depth(order, c.left)
		w.depth(order, c.right)
	case PostOrder:
		w.depth(order, c.left)
		w.depth(order, c.right)
		w.visit(id)
	default:
		w.depth(order, c.left)
		w.visit(id)
		w.depth(order, c.right)
	}
}

func (w *walker) level(roots []valueobjects.NodeID) {
	queue := append([]valueobjects.NodeID(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == "" || w.seen[id] {
			continue
		}
		w.seen[id] = true
		w.visit(id)
		c := w.kids[id]
		queue = append(queue, c.left, c.right)
	}
}
