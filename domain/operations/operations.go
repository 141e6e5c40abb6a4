// Package operations defines the normalized graph edits produced from
// assistant replies and user actions.
package operations

import (
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
)

// Kind names an operation type.
type Kind string

const (
	KindInsert     Kind = "insert"
	KindDelete     Kind = "delete"
	KindConnect    Kind = "connect"
	KindHighlight  Kind = "highlight"
	KindReplaceAll Kind = "replace_all"
	KindTraverse   Kind = "traverse"
	KindSearch     Kind = "search"
	KindClear      Kind = "clear"
)

// Operation is one normalized edit. Operations are built, applied or
// rejected, and then discarded; only the resulting graph is persisted.
type Operation interface {
	Kind() Kind
}

// Insert adds a node, optionally as a child of ParentRef.
type Insert struct {
	Value         string                 `json:"value" validate:"required"`
	ParentRef     string                 `json:"parent_ref,omitempty"`
	ParentRefKind valueobjects.RefKind   `json:"parent_ref_kind,omitempty" validate:"omitempty,oneof=id label"`
	Side          valueobjects.Side      `json:"side,omitempty" validate:"omitempty,oneof=left right"`
	Position      *valueobjects.Position `json:"position,omitempty"`
}

// Delete removes a node by label or id; RefKind picks which is tried first.
type Delete struct {
	Ref     string               `json:"ref" validate:"required"`
	RefKind valueobjects.RefKind `json:"ref_kind,omitempty" validate:"omitempty,oneof=id label"`
}

// Connect adds an edge between two existing nodes.
type Connect struct {
	SourceRef     string               `json:"source_ref" validate:"required"`
	SourceRefKind valueobjects.RefKind `json:"source_ref_kind,omitempty" validate:"omitempty,oneof=id label"`
	TargetRef     string               `json:"target_ref" validate:"required"`
	TargetRefKind valueobjects.RefKind `json:"target_ref_kind,omitempty" validate:"omitempty,oneof=id label"`
	Side          valueobjects.Side    `json:"side,omitempty" validate:"omitempty,oneof=left right"`
}

// Highlight replaces the active highlight set.
type Highlight struct {
	Refs []string `json:"refs"`
}

// ReplaceAll swaps in an authoritative snapshot. Unplaced lists nodes that
// arrived without coordinates.
type ReplaceAll struct {
	Snapshot entities.Snapshot     `json:"snapshot"`
	Unplaced []valueobjects.NodeID `json:"unplaced,omitempty"`
}

// Traverse animates a walk over left/right children.
type Traverse struct {
	Order       string               `json:"order" validate:"required"`
	RootRef     string               `json:"root_ref,omitempty"`
	RootRefKind valueobjects.RefKind `json:"root_ref_kind,omitempty" validate:"omitempty,oneof=id label"`
}

// Search highlights every node whose label matches Value.
type Search struct {
	Value string `json:"value" validate:"required"`
}

// Clear empties the graph.
type Clear struct{}

func (Insert) Kind() Kind     { return KindInsert }
func (Delete) Kind() Kind     { return KindDelete }
func (Connect) Kind() Kind    { return KindConnect }
func (Highlight) Kind() Kind  { return KindHighlight }
func (ReplaceAll) Kind() Kind { return KindReplaceAll }
func (Traverse) Kind() Kind   { return KindTraverse }
func (Search) Kind() Kind     { return KindSearch }
func (Clear) Kind() Kind      { return KindClear }

// Structural reports whether the kind changes nodes or edges.
func (k Kind) Structural() bool {
	switch k {
	case KindHighlight, KindTraverse, KindSearch:
		return false
	default:
		return true
	}
}

// Structural reports whether the operation changes nodes or edges.
func Structural(op Operation) bool {
	return op.Kind().Structural()
}
