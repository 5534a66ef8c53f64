package portal

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activateXY(t *testing.T, g *grid, r *Registry, w, h int) Portal {
	t.Helper()
	g.frameXY(0, 0, 0, w, h, aabb)
	p, ok := r.Activate(g, cube.Pos{1, 0, 0}, cube.FaceUp)
	require.True(t, ok)
	return p
}

func TestDestinationVertical(t *testing.T) {
	g := newGrid("overworld")
	p := activateXY(t, g, NewRegistry(DefaultConfig()), 4, 5)

	// Interior is x 1..2, y 1..3; the search starts at the middle column one
	// step south of the plane.
	dest, ok := p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{2, 1, 1}, dest)

	again, ok := p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, dest, again, "search is deterministic")

	facing, ok := p.ExitFacing(dest)
	require.True(t, ok)
	assert.Equal(t, cube.FaceSouth, facing)
}

func TestDestinationVerticalTieBreaks(t *testing.T) {
	g := newGrid("overworld")
	p := activateXY(t, g, NewRegistry(DefaultConfig()), 4, 5)

	// Block the first candidate: the negative step on the same start line
	// comes next.
	g.blocks[cube.Pos{2, 2, 1}] = stone
	dest, ok := p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{1, 1, 1}, dest)

	// Block the whole south side at the lowest level: the north start line
	// is tried before moving up.
	g.blocks[cube.Pos{1, 2, 1}] = stone
	dest, ok = p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{2, 1, -1}, dest)

	facing, ok := p.ExitFacing(dest)
	require.True(t, ok)
	assert.Equal(t, cube.FaceNorth, facing)

	// Both sides blocked at feet level 1: climb one level.
	g.blocks[cube.Pos{2, 1, -1}] = stone
	g.blocks[cube.Pos{1, 1, -1}] = stone
	g.blocks[cube.Pos{2, 1, 1}] = stone
	g.blocks[cube.Pos{1, 1, 1}] = stone
	delete(g.blocks, cube.Pos{2, 2, 1})
	delete(g.blocks, cube.Pos{1, 2, 1})
	dest, ok = p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{2, 2, 1}, dest)
}

func TestDestinationVerticalTooTall(t *testing.T) {
	g := newGrid("overworld")
	p := activateXY(t, g, NewRegistry(DefaultConfig()), 4, 5)
	_, ok := p.Destination(g, 4)
	assert.False(t, ok, "entity taller than the interior never fits")
	_, ok = p.Destination(g, 0)
	assert.False(t, ok)
	_, ok = p.Destination(nil, 2)
	assert.False(t, ok)
}

func TestDestinationHorizontalFrameTop(t *testing.T) {
	g := newGrid("overworld")
	g.frameXZ(0, 0, 0, 5, 5, aabb)
	p, ok := NewRegistry(DefaultConfig()).Activate(g, cube.Pos{1, 0, 0}, cube.FaceSouth)
	require.True(t, ok)

	dest, ok := p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{1, 1, 0}, dest, "first frame block of the corner 1 to 2 edge")

	_, ok = p.ExitFacing(dest)
	assert.False(t, ok, "horizontal portals keep the entity facing")
}

func TestDestinationHorizontalBelow(t *testing.T) {
	g := newGrid("overworld")
	g.frameXZ(0, 0, 0, 5, 5, aabb)
	p, ok := NewRegistry(DefaultConfig()).Activate(g, cube.Pos{1, 0, 0}, cube.FaceSouth)
	require.True(t, ok)
	for x := 0; x < 5; x++ {
		for z := 0; z < 5; z++ {
			g.blocks[cube.Pos{x, 1, z}] = stone
		}
	}

	// Interior spans x 1..3, z 1..3 at y 0; below it the center comes first.
	dest, ok := p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{2, -2, 2}, dest)

	g.blocks[cube.Pos{2, -1, 2}] = stone
	dest, ok = p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{3, -2, 2}, dest, "east offset before west offset")

	g.blocks[cube.Pos{3, -1, 2}] = stone
	dest, ok = p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{1, -2, 2}, dest)

	g.blocks[cube.Pos{1, -1, 2}] = stone
	dest, ok = p.Destination(g, 2)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{2, -2, 3}, dest, "south ring before north ring")
}

func TestFramePositionsOrder(t *testing.T) {
	g := newGrid("overworld")
	p := activateXY(t, g, NewRegistry(DefaultConfig()), 4, 4)

	assert.Equal(t, []cube.Pos{
		{1, 0, 0}, {2, 0, 0}, // corner 1 to 2
		{3, 1, 0}, {3, 2, 0}, // corner 1 to 3
		{0, 1, 0}, {0, 2, 0}, // corner 4 to 2
		{1, 3, 0}, {2, 3, 0}, // corner 4 to 3
	}, p.FramePositions(false))

	all := p.FramePositions(true)
	require.Len(t, all, 12)
	assert.Equal(t, []cube.Pos{{3, 0, 0}, {0, 0, 0}, {3, 3, 0}, {0, 3, 0}}, all[8:])
}
