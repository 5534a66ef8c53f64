package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

const (
	stone = BlockID("minecraft:stone")
	dirt  = BlockID("minecraft:dirt")
	gold  = BlockID("minecraft:gold_block")
	chest = BlockID("minecraft:chest")
)

// grid is a sparse single-dimension world for tests.
type grid struct {
	dim       string
	blocks    map[cube.Pos]BlockID
	props     map[cube.Pos]Properties
	aux       map[cube.Pos]bool
	refreshed []cube.Pos
	destroyed []cube.Pos
}

func newGrid(dim string) *grid {
	return &grid{
		dim:    dim,
		blocks: map[cube.Pos]BlockID{},
		props:  map[cube.Pos]Properties{},
		aux:    map[cube.Pos]bool{},
	}
}

func (g *grid) Dimension() string              { return g.dim }
func (g *grid) BlockTypeAt(p cube.Pos) BlockID { return g.blocks[p] }
func (g *grid) IsEmpty(p cube.Pos) bool        { return g.blocks[p] == "" }
func (g *grid) IsSolidNoAux(p cube.Pos) bool   { return g.blocks[p] != "" && !g.aux[p] }

func (g *grid) RequestGaugeSignalRefresh(p cube.Pos) {
	g.refreshed = append(g.refreshed, p)
}

func (g *grid) SetBlock(p cube.Pos, id BlockID, props Properties) {
	g.blocks[p] = id
	g.props[p] = props
}

func (g *grid) DestroyBlock(p cube.Pos) {
	delete(g.blocks, p)
	delete(g.props, p)
	g.destroyed = append(g.destroyed, p)
}

// frameXY builds a vertical w x h frame (corners included) in the x/y plane
// at z, with its lower left corner at (x0, y0). Corners get the given
// address blocks: lower left, lower right, upper left, upper right.
func (g *grid) frameXY(x0, y0, z, w, h int, corners [4]BlockID) {
	frame := DefaultBlocks().Frame
	for x := x0 + 1; x < x0+w-1; x++ {
		g.blocks[cube.Pos{x, y0, z}] = frame
		g.blocks[cube.Pos{x, y0 + h - 1, z}] = frame
	}
	for y := y0 + 1; y < y0+h-1; y++ {
		g.blocks[cube.Pos{x0, y, z}] = frame
		g.blocks[cube.Pos{x0 + w - 1, y, z}] = frame
	}
	g.blocks[cube.Pos{x0, y0, z}] = corners[0]
	g.blocks[cube.Pos{x0 + w - 1, y0, z}] = corners[1]
	g.blocks[cube.Pos{x0, y0 + h - 1, z}] = corners[2]
	g.blocks[cube.Pos{x0 + w - 1, y0 + h - 1, z}] = corners[3]
}

// frameXZ builds a horizontal w x d frame at height y with its corner at
// (x0, z0).
func (g *grid) frameXZ(x0, y, z0, w, d int, corners [4]BlockID) {
	frame := DefaultBlocks().Frame
	for x := x0 + 1; x < x0+w-1; x++ {
		g.blocks[cube.Pos{x, y, z0}] = frame
		g.blocks[cube.Pos{x, y, z0 + d - 1}] = frame
	}
	for z := z0 + 1; z < z0+d-1; z++ {
		g.blocks[cube.Pos{x0, y, z}] = frame
		g.blocks[cube.Pos{x0 + w - 1, y, z}] = frame
	}
	g.blocks[cube.Pos{x0, y, z0}] = corners[0]
	g.blocks[cube.Pos{x0 + w - 1, y, z0}] = corners[1]
	g.blocks[cube.Pos{x0, y, z0 + d - 1}] = corners[2]
	g.blocks[cube.Pos{x0 + w - 1, y, z0 + d - 1}] = corners[3]
}

var aabb = [4]BlockID{stone, stone, dirt, dirt}
