package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// Destination finds where an entity of the given height can land next to
// the portal. The search order is fixed and observable: callers rely on it
// to pick the same spot every time.
func (p Portal) Destination(q BlockQuery, height int) (cube.Pos, bool) {
	if q == nil || height < 1 {
		return cube.Pos{}, false
	}
	if p.Axis == cube.Y {
		return p.horizontalDestination(q, height)
	}
	return p.verticalDestination(q, height)
}

func (p Portal) horizontalDestination(q BlockQuery, height int) (cube.Pos, bool) {
	for _, framePos := range p.FramePositions(true) {
		spawn := framePos.Side(cube.FaceUp)
		if canSpawnAt(q, spawn, height) {
			return spawn, true
		}
	}

	// Nothing on top of the frame: look below the interior, center first.
	in1, in2 := p.Corner1.Inner(), p.Corner4.Inner()
	minX, maxX := min(in1.X(), in2.X()), max(in1.X(), in2.X())
	minZ, maxZ := min(in1.Z(), in2.Z()), max(in1.Z(), in2.Z())
	y := in1.Y() - height
	halfWidth := (maxX - minX + 1) / 2
	halfHeight := (maxZ - minZ + 1) / 2
	center := cube.Pos{minX + halfWidth, y, minZ + halfHeight}

	for z := 0; z <= halfHeight; z++ {
		for _, zFacing := range [...]cube.Face{cube.FaceSouth, cube.FaceNorth} {
			for x := 0; x <= halfWidth; x++ {
				cur := offset(offset(center, cube.FaceEast, x), zFacing, z)
				if cur.X() <= maxX && cur.Z() <= maxZ && canSpawnAt(q, cur, height) {
					return cur, true
				}
				cur = offset(offset(center, cube.FaceWest, x), zFacing, z)
				if cur.X() >= minX && cur.Z() >= minZ && canSpawnAt(q, cur, height) {
					return cur, true
				}
			}
		}
	}
	return cube.Pos{}, false
}

func (p Portal) verticalDestination(q BlockQuery, height int) (cube.Pos, bool) {
	in1, in2 := p.Corner1.Inner(), p.Corner4.Inner()
	cornerAxis := orthogonalTo(p.Axis)
	v1, v2 := axisValue(in1, cornerAxis), axisValue(in2, cornerAxis)
	low, high := min(v1, v2), max(v1, v2)
	width := high - low + 1
	planeHeight := max(in1.Y(), in2.Y()) - min(in1.Y(), in2.Y()) + 1
	halfWidth := width / 2
	middle := low + halfWidth
	startY := min(in1.Y(), in2.Y())

	positive := faceFor(cornerAxis, true)
	negative := faceFor(cornerAxis, false)

	var starts [2]cube.Pos
	if p.Axis == cube.Z {
		starts[0] = cube.Pos{middle, startY, in1.Z() + 1}
		starts[1] = cube.Pos{middle, startY, in1.Z() - 1}
	} else {
		starts[0] = cube.Pos{in1.X() + 1, startY, middle}
		starts[1] = cube.Pos{in1.X() - 1, startY, middle}
	}

	for y := 0; y <= planeHeight-height; y++ {
		for _, start := range starts {
			feet := offset(start, cube.FaceUp, y)
			for x := 0; x <= halfWidth; x++ {
				cur := offset(feet, positive, x)
				if axisValue(cur, cornerAxis) <= high && canSpawnAt(q, cur, height) {
					return cur, true
				}
				cur = offset(feet, negative, x)
				if axisValue(cur, cornerAxis) >= low && canSpawnAt(q, cur, height) {
					return cur, true
				}
			}
		}
	}
	return cube.Pos{}, false
}

// canSpawnAt reports whether height cells upward from pos are all empty.
func canSpawnAt(q BlockQuery, pos cube.Pos, height int) bool {
	if height < 1 {
		return false
	}
	for i := 0; i < height; i++ {
		if !q.IsEmpty(offset(pos, cube.FaceUp, i)) {
			return false
		}
	}
	return true
}
