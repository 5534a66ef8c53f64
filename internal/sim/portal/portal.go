package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// Portal is one recognized gateway. Equality is by value: dimension, address,
// axis and the four corners. Corner1/Corner4 and Corner2/Corner3 are the two
// diagonals of the frame rectangle.
type Portal struct {
	Dimension string
	Address   Address
	Axis      cube.Axis
	Corner1   Corner
	Corner2   Corner
	Corner3   Corner
	Corner4   Corner
}

// AllPositions is the full footprint, frame and corners included.
func (p Portal) AllPositions() []cube.Pos {
	return betweenClosed(p.Corner1.Pos, p.Corner4.Pos)
}

// PortalPositions is the interior that holds the marker blocks.
func (p Portal) PortalPositions() []cube.Pos {
	return betweenClosed(p.Corner1.Inner(), p.Corner4.Inner())
}

// FramePositions lists the frame edges 1-2, 1-3, 4-2, 4-3 without their end
// corners, then the corners themselves when includeCorners is set.
func (p Portal) FramePositions(includeCorners bool) []cube.Pos {
	var frame []cube.Pos
	edge := func(from, to cube.Pos) {
		dir, ok := relativeFace(from, to)
		if !ok {
			return
		}
		frame = append(frame, betweenClosed(from.Side(dir), to.Side(dir.Opposite()))...)
	}
	edge(p.Corner1.Pos, p.Corner2.Pos)
	edge(p.Corner1.Pos, p.Corner3.Pos)
	edge(p.Corner4.Pos, p.Corner2.Pos)
	edge(p.Corner4.Pos, p.Corner3.Pos)
	if includeCorners {
		frame = append(frame, p.Corner1.Pos, p.Corner2.Pos, p.Corner3.Pos, p.Corner4.Pos)
	}
	return frame
}

// HasAddressChanged reports whether the corner blocks no longer spell the
// portal's address.
func (p Portal) HasAddressChanged(q BlockQuery) bool {
	if q == nil {
		return false
	}
	actual := NewAddress(
		q.BlockTypeAt(p.Corner1.Pos),
		q.BlockTypeAt(p.Corner2.Pos),
		q.BlockTypeAt(p.Corner3.Pos),
		q.BlockTypeAt(p.Corner4.Pos),
	)
	return !actual.Equal(p.Address)
}

// IsDamaged reports a broken frame, a missing marker or a changed address.
func (p Portal) IsDamaged(q BlockQuery, blocks Blocks) bool {
	if q == nil {
		return false
	}
	for _, pos := range p.FramePositions(false) {
		if !blocks.IsFrame(q.BlockTypeAt(pos)) {
			return true
		}
	}
	for _, pos := range p.PortalPositions() {
		if q.BlockTypeAt(pos) != blocks.Marker {
			return true
		}
	}
	return p.HasAddressChanged(q)
}

// ExitFacing is the direction an entity should face after landing at dest.
// Horizontal portals keep the entity's own facing and report ok=false.
func (p Portal) ExitFacing(dest cube.Pos) (cube.Face, bool) {
	switch p.Axis {
	case cube.Z:
		if dest.Z() > p.Corner1.Pos.Z() {
			return cube.FaceSouth, true
		}
		return cube.FaceNorth, true
	case cube.X:
		if dest.X() > p.Corner1.Pos.X() {
			return cube.FaceEast, true
		}
		return cube.FaceWest, true
	}
	return 0, false
}

// Anchor is the position used to identify the portal in listings.
func (p Portal) Anchor() cube.Pos { return p.Corner1.Pos }
