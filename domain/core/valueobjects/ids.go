package valueobjects

import "strings"

// NodeID identifies a node within one graph.
type NodeID string

func (id NodeID) String() string { return string(id) }

// EdgeID identifies an edge. It is derived from its endpoints so a second
// edge between the same pair collides by id.
type EdgeID string

func (id EdgeID) String() string { return string(id) }

// EdgeIDFor builds the deterministic id for an edge from source to target.
func EdgeIDFor(source, target NodeID) EdgeID {
	return EdgeID(string(source) + "->" + string(target))
}

// Side is the child slot an edge occupies on its source node.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide normalizes free text such as "LEFT", "to the right" or
// "left_child". Anything without "left" or "right" is unconstrained.
func ParseSide(s string) Side {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "left"):
		return SideLeft
	case strings.Contains(lower, "right"):
		return SideRight
	default:
		return SideNone
	}
}

// Slotted reports whether the side takes part in binary occupancy.
func (s Side) Slotted() bool {
	return s == SideLeft || s == SideRight
}

// Opposite returns the other slot; unconstrained stays unconstrained.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideNone
	}
}

// Sides lists the slots in the order they are filled.
var Sides = []Side{SideLeft, SideRight}

// RefKind says how a node reference was named. Sequence ids and numeric
// labels overlap ("1", "2", ...), so the kind decides which one wins.
type RefKind string

const (
	// RefLabel matches labels first and falls back to ids. It is the
	// zero value's meaning.
	RefLabel RefKind = "label"
	// RefID matches ids first and falls back to labels.
	RefID RefKind = "id"
)

// IDFirst reports whether ids take precedence over labels.
func (k RefKind) IDFirst() bool {
	return k == RefID
}
