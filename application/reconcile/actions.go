package reconcile

import (
	"context"

	"treeview-ai/domain/core/valueobjects"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
	"treeview-ai/pkg/utils"
)

// userOp applies a single operation issued directly by the user. The
// outcome is returned to the caller; a rejected outcome is also returned as
// the error.
func (c *Controller) userOp(ctx context.Context, op operations.Operation) (operations.Outcome, error) {
	if err := utils.ValidateStruct(op); err != nil {
		return operations.Outcome{}, pkgerrors.NewValidation(err.Error())
	}
	var outcome operations.Outcome
	err := c.do(ctx, func() {
		result := c.applyBatch(ctx, []operations.Operation{op}, batchContext{source: SourceUser})
		outcome = result.Outcomes[0]
	})
	if err != nil {
		return operations.Outcome{}, err
	}
	if outcome.Status == operations.StatusRejected {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// InsertNode adds a node, as a child of parentRef when it resolves.
func (c *Controller) InsertNode(ctx context.Context, op operations.Insert) (operations.Outcome, error) {
	return c.userOp(ctx, op)
}

// DeleteNode removes a node by label, or by id first when kind is RefID.
func (c *Controller) DeleteNode(ctx context.Context, ref string, kind valueobjects.RefKind) (operations.Outcome, error) {
	return c.userOp(ctx, operations.Delete{Ref: ref, RefKind: kind})
}

// Connect draws an edge. Without a side the edge is unconstrained.
func (c *Controller) Connect(ctx context.Context, op operations.Connect) (operations.Outcome, error) {
	return c.userOp(ctx, op)
}

// Highlight replaces the highlight set.
func (c *Controller) Highlight(ctx context.Context, refs []string) (operations.Outcome, error) {
	return c.userOp(ctx, operations.Highlight{Refs: refs})
}

// Traverse animates a traversal.
func (c *Controller) Traverse(ctx context.Context, order, rootRef string) (operations.Outcome, error) {
	return c.userOp(ctx, operations.Traverse{Order: order, RootRef: rootRef})
}

// Search highlights nodes whose label matches value.
func (c *Controller) Search(ctx context.Context, value string) (operations.Outcome, error) {
	return c.userOp(ctx, operations.Search{Value: value})
}

// Reset empties the graph.
func (c *Controller) Reset(ctx context.Context) (operations.Outcome, error) {
	return c.userOp(ctx, operations.Clear{})
}

// MoveNode writes back a drag from the canvas. It does not re-render, the
// canvas already shows the new position.
func (c *Controller) MoveNode(ctx context.Context, id valueobjects.NodeID, pos valueobjects.Position) error {
	var moveErr error
	if err := c.do(ctx, func() {
		moveErr = c.graph.MoveNode(id, pos)
	}); err != nil {
		return err
	}
	return moveErr
}

// DeleteEdge removes one edge and frees its slot.
func (c *Controller) DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error {
	var delErr error
	if err := c.do(ctx, func() {
		if delErr = c.graph.RemoveEdge(id); delErr == nil {
			c.render()
		}
	}); err != nil {
		return err
	}
	return delErr
}
