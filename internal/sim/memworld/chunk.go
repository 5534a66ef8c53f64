package memworld

import "github.com/df-mc/dragonfly/server/block/cube"

const chunkSize = 16

type ChunkKey struct {
	CX, CY, CZ int
}

// Chunk is a 16^3 cube of palette ids.
type Chunk struct {
	Key    ChunkKey
	Blocks []uint16
	// Non-air cells; the chunk is dropped when it reaches zero.
	filled int
}

func newChunk(k ChunkKey) *Chunk {
	return &Chunk{Key: k, Blocks: make([]uint16, chunkSize*chunkSize*chunkSize)}
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

// Set stores b and returns the previous id.
func (c *Chunk) Set(x, y, z int, b uint16) uint16 {
	i := c.index(x, y, z)
	old := c.Blocks[i]
	if old == b {
		return old
	}
	switch {
	case old == 0:
		c.filled++
	case b == 0:
		c.filled--
	}
	c.Blocks[i] = b
	return old
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func split(pos cube.Pos) (ChunkKey, int, int, int) {
	k := ChunkKey{
		CX: floorDiv(pos.X(), chunkSize),
		CY: floorDiv(pos.Y(), chunkSize),
		CZ: floorDiv(pos.Z(), chunkSize),
	}
	return k, mod(pos.X(), chunkSize), mod(pos.Y(), chunkSize), mod(pos.Z(), chunkSize)
}
