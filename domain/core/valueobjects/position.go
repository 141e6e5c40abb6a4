package valueobjects

import (
	"math"

	pkgerrors "treeview-ai/pkg/errors"
)

// Position is a value object holding canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, pkgerrors.NewValidation("invalid coordinates: must be finite numbers")
	}
	return Position{X: x, Y: y}, nil
}

// Origin is the zero position.
var Origin = Position{}

// IsOrigin reports whether the position sits exactly at (0,0).
func (p Position) IsOrigin() bool {
	return p.X == 0 && p.Y == 0
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Within reports whether other lies inside the w×h box centred on p.
func (p Position) Within(other Position, w, h float64) bool {
	return math.Abs(p.X-other.X) < w && math.Abs(p.Y-other.Y) < h
}

// Valid reports whether both coordinates are finite.
func (p Position) Valid() bool {
	return isValidCoordinate(p.X) && isValidCoordinate(p.Y)
}

func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
	Empty                  bool
}

// BoundsOf computes the bounding box of the given positions.
func BoundsOf(points []Position) Rect {
	if len(points) == 0 {
		return Rect{Empty: true}
	}
	r := Rect{MinX: points[0].X, MaxX: points[0].X, MinY: points[0].Y, MaxY: points[0].Y}
	for _, p := range points[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Center returns the midpoint of the box.
func (r Rect) Center() Position {
	return Position{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}
