package services

import (
	"math"

	"treeview-ai/domain/config"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
)

// Viewport is the visible canvas size, when the render layer has reported it.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Known reports whether the viewport carries a usable size.
func (v *Viewport) Known() bool {
	return v != nil && v.Width > 0 && v.Height > 0
}

// PlacementRequest is the input to Place.
type PlacementRequest struct {
	Existing []valueobjects.Position
	Parent   *entities.Node
	Side     valueobjects.Side
	Explicit *valueobjects.Position
	Viewport *Viewport
	// Count is the graph's id sequence counter, used for the grid fallback.
	Count int
}

// Placement computes positions for new nodes. It has no side effects and
// yields the same answer for the same request.
type Placement struct {
	cfg config.PlacementConfig
}

// NewPlacement creates a placement policy; nil means the defaults.
func NewPlacement(cfg *config.DomainConfig) *Placement {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Placement{cfg: cfg.Placement}
}

// Place returns the position for a new node.
func (p *Placement) Place(req PlacementRequest) valueobjects.Position {
	switch {
	case req.Explicit != nil:
		return *req.Explicit
	case req.Parent != nil:
		return p.besideParent(req)
	case len(req.Existing) > 0:
		return p.rightOf(valueobjects.BoundsOf(req.Existing))
	case req.Viewport.Known():
		return valueobjects.Position{X: req.Viewport.Width / 2, Y: req.Viewport.Height / 2}
	default:
		return p.Grid(req.Count)
	}
}

func (p *Placement) besideParent(req PlacementRequest) valueobjects.Position {
	dx := p.horizontalOffset(req.Side)
	candidate := req.Parent.Position.Translate(dx, p.cfg.VerticalStep)

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if !p.collides(candidate, req.Existing) {
			break
		}
		candidate = candidate.Translate(dx, p.cfg.CollisionStepY)
	}
	return candidate
}

func (p *Placement) horizontalOffset(side valueobjects.Side) float64 {
	switch side {
	case valueobjects.SideLeft:
		return -p.cfg.HorizontalStep
	case valueobjects.SideRight:
		return p.cfg.HorizontalStep
	default:
		return 0
	}
}

func (p *Placement) collides(candidate valueobjects.Position, existing []valueobjects.Position) bool {
	for _, e := range existing {
		if candidate.Within(e, p.cfg.CollisionBox, p.cfg.CollisionBox) {
			return true
		}
	}
	return false
}

func (p *Placement) rightOf(bbox valueobjects.Rect) valueobjects.Position {
	return valueobjects.Position{X: bbox.MaxX + p.cfg.ParentlessGap, Y: bbox.Center().Y}
}

// Grid is the deterministic fallback slot for the n-th node.
func (p *Placement) Grid(n int) valueobjects.Position {
	rows := p.cfg.GridRows
	return valueobjects.Position{
		X: float64(n/rows) * p.cfg.GridSpacingX,
		Y: float64(n%rows) * p.cfg.GridSpacingY,
	}
}

// Nudge pulls newly appeared nodes that landed implausibly far from the
// previous cluster back beside it. before holds the node positions prior to
// the replace and known the ids that already existed. A new node at the
// origin is also moved unless a pre-existing node sits there too.
// It returns the ids that were moved.
func (p *Placement) Nudge(before []valueobjects.Position, known map[valueobjects.NodeID]bool, nodes []entities.Node) []valueobjects.NodeID {
	bbox := valueobjects.BoundsOf(before)
	if bbox.Empty {
		return nil
	}
	limit := math.Max(p.cfg.NudgeMinDistance, p.cfg.NudgeWidthFactor*bbox.Width())
	center := bbox.Center()
	originTaken := false
	for _, pos := range before {
		if pos.IsOrigin() {
			originTaken = true
			break
		}
	}

	var moved []valueobjects.NodeID
	for i := range nodes {
		n := &nodes[i]
		if known[n.ID] {
			continue
		}
		far := math.Abs(n.Position.X-center.X) > limit
		stranded := n.Position.IsOrigin() && !originTaken
		if !far && !stranded {
			continue
		}
		n.Position = p.rightOf(bbox)
		bbox.MaxX = n.Position.X
		moved = append(moved, n.ID)
	}
	return moved
}

// LayoutUnplaced assigns positions to nodes that arrived without one. A node
// whose slotted parent is already placed goes beside it; the rest attach to
// the right of the cluster.
func (p *Placement) LayoutUnplaced(nodes []entities.Node, edges []entities.Edge, unplaced []valueobjects.NodeID, viewport *Viewport) {
	if len(unplaced) == 0 {
		return
	}
	pending := make(map[valueobjects.NodeID]bool, len(unplaced))
	for _, id := range unplaced {
		pending[id] = true
	}
	index := make(map[valueobjects.NodeID]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	parentOf := make(map[valueobjects.NodeID]entities.Edge)
	for _, e := range edges {
		if _, seen := parentOf[e.Target]; !seen {
			parentOf[e.Target] = e
		}
	}

	placed := func() []valueobjects.Position {
		var out []valueobjects.Position
		for _, n := range nodes {
			if !pending[n.ID] {
				out = append(out, n.Position)
			}
		}
		return out
	}

	count := 0
	for len(pending) > 0 {
		progressed := false
		for _, n := range nodes {
			if !pending[n.ID] {
				continue
			}
			edge, hasParent := parentOf[n.ID]
			if hasParent && pending[edge.Source] {
				continue
			}
			req := PlacementRequest{Existing: placed(), Viewport: viewport, Count: count}
			if hasParent {
				if i, ok := index[edge.Source]; ok {
					parent := nodes[i]
					req.Parent = &parent
					req.Side = edge.Side
				}
			}
			nodes[index[n.ID]].Position = p.Place(req)
			delete(pending, n.ID)
			count++
			progressed = true
		}
		if !progressed {
			// Parent cycle among unplaced nodes: break it at the first one.
			for _, n := range nodes {
				if pending[n.ID] {
					delete(parentOf, n.ID)
					break
				}
			}
		}
	}
}
