package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// Activate tries to recognize a frame around the frame block at pos, clicked
// on side. side is the frame face pointing into the portal interior. On
// success the interior is filled with marker blocks and the portal is
// registered. Any failed check leaves the world and the registry untouched.
func (r *Registry) Activate(w World, pos cube.Pos, side cube.Face) (Portal, bool) {
	if w == nil {
		return Portal{}, false
	}
	dirs, ok := cornerSearchDirs[side]
	if !ok {
		return Portal{}, false
	}

	var (
		c1       Corner
		firstDir cube.Face
		found    bool
	)
	for _, dir := range dirs {
		if c1, found = r.findCorner(w, pos, dir, side); found {
			firstDir = dir
			break
		}
	}
	if !found {
		return Portal{}, false
	}
	back := firstDir.Opposite()
	c2, ok := r.findCorner(w, pos, back, side)
	if !ok {
		return Portal{}, false
	}
	c3, ok := r.findCorner(w, c1.Pos.Side(side), side, back)
	if !ok {
		return Portal{}, false
	}
	c4, ok := r.findCorner(w, c3.Pos.Side(back), back, side.Opposite())
	if !ok {
		return Portal{}, false
	}
	if check, ok := r.findCorner(w, c2.Pos.Side(side), side, firstDir); !ok || check != c4 {
		return Portal{}, false
	}

	if sideLength(c1.Pos, c2.Pos) > r.cfg.MaxSize || sideLength(c1.Pos, c3.Pos) > r.cfg.MaxSize {
		return Portal{}, false
	}

	corners := [4]Corner{c1, c2, c3, c4}
	var ids [4]BlockID
	for i, c := range corners {
		if !isAddressBlock(w, c.Pos) {
			return Portal{}, false
		}
		ids[i] = w.BlockTypeAt(c.Pos)
	}

	axis := cube.Y
	if y := c1.Pos.Y(); y != c2.Pos.Y() || y != c3.Pos.Y() || y != c4.Pos.Y() {
		axis = orthogonalTo(c1.HorizontalFacing().Axis())
	}

	p := Portal{
		Dimension: w.Dimension(),
		Address:   NewAddress(ids[0], ids[1], ids[2], ids[3]),
		Axis:      axis,
		Corner1:   c1,
		Corner2:   c2,
		Corner3:   c3,
		Corner4:   c4,
	}

	interior := p.PortalPositions()
	for _, in := range interior {
		if !w.IsEmpty(in) {
			return Portal{}, false
		}
	}
	if _, dup := r.handles[p]; dup {
		return Portal{}, false
	}
	props := Properties{AxisProperty: AxisName(axis)}
	for _, in := range interior {
		w.SetBlock(in, r.cfg.Blocks.Marker, props)
	}

	var gauges []cube.Pos
	for _, fp := range p.FramePositions(false) {
		if w.BlockTypeAt(fp) == r.cfg.Blocks.Gauge {
			gauges = append(gauges, fp)
		}
	}
	if _, ok := r.Register(w, p, gauges); !ok {
		return Portal{}, false
	}
	return p, true
}

// ActivateFromDispenser probes the frame blocks around the cell in front of a
// dispenser. The cell must be empty. Neighbours are tried per axis other
// than the dispenser's own, X then Y then Z, positive face first; the first
// successful activation wins.
func (r *Registry) ActivateFromDispenser(w World, dispenser cube.Pos, facing cube.Face) (Portal, bool) {
	if w == nil {
		return Portal{}, false
	}
	start := dispenser.Side(facing)
	if !w.IsEmpty(start) {
		return Portal{}, false
	}
	for _, axis := range dispenserAxes {
		if axis == facing.Axis() {
			continue
		}
		for _, f := range [...]cube.Face{faceFor(axis, true), faceFor(axis, false)} {
			cur := start.Side(f)
			if !r.cfg.Blocks.IsFrame(w.BlockTypeAt(cur)) {
				continue
			}
			if p, ok := r.Activate(w, cur, f.Opposite()); ok {
				return p, true
			}
		}
	}
	return Portal{}, false
}

// findCorner walks from start along searchDir over frame blocks. The walk
// stops at the first non-frame block; that block is a corner when its
// neighbour along cornerFacing is a frame block.
func (r *Registry) findCorner(q BlockQuery, start cube.Pos, searchDir, cornerFacing cube.Face) (Corner, bool) {
	cur := start
	for size := 0; size <= r.cfg.MaxSize-1; size++ {
		if !r.cfg.Blocks.IsFrame(q.BlockTypeAt(cur)) {
			if r.cfg.Blocks.IsFrame(q.BlockTypeAt(cur.Side(cornerFacing))) {
				return NewCorner(cur, searchDir.Opposite(), cornerFacing), true
			}
			break
		}
		cur = cur.Side(searchDir)
	}
	return Corner{}, false
}

func isAddressBlock(q BlockQuery, pos cube.Pos) bool {
	return !q.IsEmpty(pos) && q.IsSolidNoAux(pos)
}
