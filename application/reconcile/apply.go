package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"treeview-ai/domain/config"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	"treeview-ai/domain/operations"
	"treeview-ai/domain/services"
	pkgerrors "treeview-ai/pkg/errors"
)

// Batch sources, used for logging, metrics and connect defaults.
const (
	SourceCommand = "command"
	SourceHistory = "history"
	SourcePush    = "push"
	SourceUser    = "user"
)

// batchContext says where a batch came from and whether it may signal.
type batchContext struct {
	source string
	silent bool
}

func (b batchContext) connectFallback(cfg *config.DomainConfig) string {
	if b.source == SourceUser {
		// Edges drawn by hand are unconstrained unless a side is given.
		return config.FallbackNone
	}
	return cfg.Reconcile.ConnectSideFallback
}

// applyBatch applies ops in order. A rejected operation never stops the
// rest. Must run on the loop.
func (c *Controller) applyBatch(ctx context.Context, ops []operations.Operation, bc batchContext) operations.BatchResult {
	_, span := c.tracer.Start(ctx, "reconcile.apply_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", c.sessionID),
		attribute.String("batch.source", bc.source),
		attribute.Bool("batch.silent", bc.silent),
		attribute.Int("batch.operations", len(ops)),
	)

	start := c.clock.Now()
	c.phase = PhaseApplying
	result := operations.BatchResult{Silent: bc.silent, Outcomes: make([]operations.Outcome, 0, len(ops))}

	for _, op := range ops {
		outcome := c.applyOne(op, bc)
		result.Outcomes = append(result.Outcomes, outcome)
		c.metrics.RecordOperation(string(outcome.Kind), string(outcome.Status))
		if outcome.Status == operations.StatusRejected {
			c.logger.Debug("operation rejected",
				zap.String("session_id", c.sessionID),
				zap.String("kind", string(outcome.Kind)),
				zap.String("source", bc.source),
				zap.Error(outcome.Err))
		}
	}

	c.phase = PhaseIdle
	c.metrics.RecordBatch(bc.source, bc.silent, c.clock.Now().Sub(start))
	span.SetAttributes(
		attribute.Int("batch.applied", result.Applied()),
		attribute.Int("batch.rejected", result.Rejected()),
	)

	if len(ops) > 0 {
		c.render()
	}
	c.signal(result, bc)
	return result
}

func (c *Controller) applyOne(op operations.Operation, bc batchContext) operations.Outcome {
	switch o := op.(type) {
	case operations.ReplaceAll:
		return c.applyReplaceAll(o)
	case operations.Insert:
		return c.applyInsert(o)
	case operations.Delete:
		return c.applyDelete(o)
	case operations.Connect:
		return c.applyConnect(o, bc.connectFallback(c.cfg))
	case operations.Highlight:
		return c.applyHighlight(o)
	case operations.Traverse:
		return c.applyTraverse(o)
	case operations.Search:
		return c.applySearch(o)
	case operations.Clear:
		c.graph.Clear()
		c.highlights.Clear()
		return applied(operations.KindClear, "graph cleared")
	default:
		return rejected(op.Kind(), pkgerrors.NewValidation(fmt.Sprintf("unsupported operation %T", op)))
	}
}

func (c *Controller) applyReplaceAll(op operations.ReplaceAll) operations.Outcome {
	before := c.graph.Positions()
	known := make(map[valueobjects.NodeID]bool, c.graph.NodeCount())
	for _, n := range c.graph.Snapshot().Nodes {
		known[n.ID] = true
	}

	report := c.graph.ReplaceAll(op.Snapshot)
	if len(report.DroppedEdges) > 0 || len(report.DroppedNodes) > 0 {
		c.logger.Warn("authoritative snapshot was inconsistent",
			zap.String("session_id", c.sessionID),
			zap.Int("dropped_edges", len(report.DroppedEdges)),
			zap.Int("dropped_nodes", len(report.DroppedNodes)))
	}

	snap := c.graph.Snapshot()
	if c.cfg.Reconcile.NudgeOnReplace {
		skip := make(map[valueobjects.NodeID]bool, len(known)+len(op.Unplaced))
		for id := range known {
			skip[id] = true
		}
		for _, id := range op.Unplaced {
			skip[id] = true
		}
		if moved := c.placement.Nudge(before, skip, snap.Nodes); len(moved) > 0 {
			c.logger.Debug("nudged far-away nodes", zap.Int("count", len(moved)))
		}
	}
	c.placement.LayoutUnplaced(snap.Nodes, snap.Edges, op.Unplaced, c.viewport)
	for _, n := range snap.Nodes {
		if cur, ok := c.graph.Node(n.ID); ok && !cur.Position.Equals(n.Position) {
			_ = c.graph.MoveNode(n.ID, n.Position)
		}
	}

	if c.cfg.Reconcile.FitViewOnReplace {
		c.view.FitView(c.sessionID)
	}
	return applied(operations.KindReplaceAll, fmt.Sprintf("loaded %d nodes and %d edges", report.Nodes, report.Edges))
}

func (c *Controller) applyInsert(op operations.Insert) operations.Outcome {
	var parent *entities.Node
	if op.ParentRef != "" {
		if id, ok := c.graph.Resolve(op.ParentRef, op.ParentRefKind); ok {
			n, _ := c.graph.Node(id)
			parent = &n
		} else {
			c.logger.Debug("insert parent not found, inserting without parent",
				zap.String("parent_ref", op.ParentRef))
		}
	}

	side := op.Side
	if parent != nil {
		if side.Slotted() {
			if !c.graph.SlotFree(parent.ID, side) {
				return rejected(operations.KindInsert, pkgerrors.NewSlotOccupied(
					fmt.Sprintf("cannot add %q: %s child of %q is already taken", op.Value, side, parent.Label)))
			}
		} else {
			free, ok := c.graph.FirstFreeSlot(parent.ID)
			if !ok {
				return rejected(operations.KindInsert, pkgerrors.NewSlotOccupied(
					fmt.Sprintf("cannot add %q: %q already has both children", op.Value, parent.Label)))
			}
			side = free
		}
	}

	pos := c.placement.Place(services.PlacementRequest{
		Existing: c.graph.Positions(),
		Parent:   parent,
		Side:     side,
		Explicit: op.Position,
		Viewport: c.viewport,
		Count:    c.graph.Seq(),
	})
	id := c.graph.AddNode(op.Value, pos)
	out := applied(operations.KindInsert, fmt.Sprintf("added %q", op.Value))
	out.NodeID = id

	if parent != nil {
		edgeID, err := c.graph.AddEdge(parent.ID, id, side)
		if err != nil {
			_ = c.graph.RemoveNode(id)
			return rejected(operations.KindInsert, pkgerrors.Wrap(err, "link new node"))
		}
		out.EdgeID = edgeID
	}
	return out
}

func (c *Controller) applyDelete(op operations.Delete) operations.Outcome {
	id, ok := c.graph.Resolve(op.Ref, op.RefKind)
	if !ok {
		return rejected(operations.KindDelete, pkgerrors.NewNotFound(fmt.Sprintf("node %q not found", op.Ref)))
	}
	if err := c.graph.RemoveNode(id); err != nil {
		return rejected(operations.KindDelete, err)
	}
	out := applied(operations.KindDelete, fmt.Sprintf("removed %q", op.Ref))
	out.NodeID = id
	return out
}

func (c *Controller) applyConnect(op operations.Connect, fallback string) operations.Outcome {
	source, ok := c.graph.Resolve(op.SourceRef, op.SourceRefKind)
	if !ok {
		return rejected(operations.KindConnect, pkgerrors.NewNotFound(fmt.Sprintf("source %q not found", op.SourceRef)))
	}
	target, ok := c.graph.Resolve(op.TargetRef, op.TargetRefKind)
	if !ok {
		return rejected(operations.KindConnect, pkgerrors.NewNotFound(fmt.Sprintf("target %q not found", op.TargetRef)))
	}

	if existing, ok := c.graph.Edge(valueobjects.EdgeIDFor(source, target)); ok {
		out := applied(operations.KindConnect, fmt.Sprintf("%q is already connected to %q", op.SourceRef, op.TargetRef))
		out.EdgeID = existing.ID
		return out
	}

	side := op.Side
	if !side.Slotted() {
		switch fallback {
		case config.FallbackRight:
			side = valueobjects.SideRight
		case config.FallbackFirstFree:
			free, ok := c.graph.FirstFreeSlot(source)
			if !ok {
				return rejected(operations.KindConnect, pkgerrors.NewSlotOccupied(
					fmt.Sprintf("cannot connect %q to %q: both children are taken", op.SourceRef, op.TargetRef)))
			}
			side = free
		default:
			side = valueobjects.SideNone
		}
	}

	edgeID, err := c.graph.AddEdge(source, target, side)
	if err != nil {
		return rejected(operations.KindConnect, err)
	}
	out := applied(operations.KindConnect, fmt.Sprintf("connected %q to %q", op.SourceRef, op.TargetRef))
	out.EdgeID = edgeID
	return out
}

func (c *Controller) applyHighlight(op operations.Highlight) operations.Outcome {
	ids, missing := c.resolveAll(op.Refs)
	if len(ids) == 0 && len(op.Refs) > 0 {
		return rejected(operations.KindHighlight, pkgerrors.NewNotFound(
			fmt.Sprintf("no node matches %s", strings.Join(missing, ", "))))
	}
	c.highlights.Set(ids)
	return applied(operations.KindHighlight, fmt.Sprintf("highlighted %d nodes", len(ids)))
}

func (c *Controller) applyTraverse(op operations.Traverse) operations.Outcome {
	order, err := services.ParseTraversalOrder(op.Order)
	if err != nil {
		return rejected(operations.KindTraverse, err)
	}
	var root valueobjects.NodeID
	if op.RootRef != "" {
		id, ok := c.graph.Resolve(op.RootRef, op.RootRefKind)
		if !ok {
			return rejected(operations.KindTraverse, pkgerrors.NewNotFound(fmt.Sprintf("node %q not found", op.RootRef)))
		}
		root = id
	}
	steps, err := services.Traverse(c.graph.Snapshot(), order, root)
	if err != nil {
		return rejected(operations.KindTraverse, err)
	}
	c.highlights.Animate(steps)
	return applied(operations.KindTraverse, fmt.Sprintf("%s traversal of %d nodes", order, len(steps)))
}

func (c *Controller) applySearch(op operations.Search) operations.Outcome {
	ids := c.graph.MatchLabel(op.Value)
	if len(ids) == 0 {
		return rejected(operations.KindSearch, pkgerrors.NewNotFound(fmt.Sprintf("%q is not in the tree", op.Value)))
	}
	c.highlights.Set(ids)
	return applied(operations.KindSearch, fmt.Sprintf("found %q", op.Value))
}

func (c *Controller) resolveAll(refs []string) ([]valueobjects.NodeID, []string) {
	var ids []valueobjects.NodeID
	var missing []string
	for _, ref := range refs {
		if id, ok := c.graph.Resolve(ref, valueobjects.RefLabel); ok {
			ids = append(ids, id)
		} else {
			missing = append(missing, ref)
		}
	}
	return ids, missing
}

func applied(kind operations.Kind, msg string) operations.Outcome {
	return operations.Outcome{Kind: kind, Status: operations.StatusApplied, Message: msg}
}

func rejected(kind operations.Kind, err error) operations.Outcome {
	return operations.Outcome{Kind: kind, Status: operations.StatusRejected, Err: err, Message: pkgerrors.Message(err)}
}
