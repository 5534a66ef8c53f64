package portal

import "github.com/df-mc/dragonfly/server/block/cube"

// Corner is one vertex of a gateway frame: the corner block position and the
// two directions along which frame blocks extend from it. The facing pair is
// unordered; NewCorner stores it normalized so that Corner values compare
// with == regardless of argument order.
type Corner struct {
	Pos     cube.Pos
	FacingA cube.Face
	FacingB cube.Face
}

func NewCorner(pos cube.Pos, a, b cube.Face) Corner {
	if b < a {
		a, b = b, a
	}
	return Corner{Pos: pos, FacingA: a, FacingB: b}
}

// Inner is the diagonal-inward cell, the first interior position next to the corner.
func (c Corner) Inner() cube.Pos {
	return c.Pos.Side(c.FacingA).Side(c.FacingB)
}

// HorizontalFacing returns the facing that does not point along the Y axis.
func (c Corner) HorizontalFacing() cube.Face {
	if c.FacingA.Axis() != cube.Y {
		return c.FacingA
	}
	return c.FacingB
}
