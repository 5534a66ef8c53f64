package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// BlockID names a block type, e.g. "minecraft:obsidian".
type BlockID string

// Properties is the state data stored with a placed block.
type Properties map[string]string

// AxisProperty is the marker block state key carrying the portal axis.
const AxisProperty = "axis"

// BlockQuery is the read side of a dimension.
type BlockQuery interface {
	BlockTypeAt(pos cube.Pos) BlockID
	IsEmpty(pos cube.Pos) bool
	// IsSolidNoAux reports a full solid block without attached block data.
	IsSolidNoAux(pos cube.Pos) bool
}

// World is one dimension as seen by the registry.
type World interface {
	BlockQuery
	Dimension() string
	SetBlock(pos cube.Pos, id BlockID, props Properties)
	DestroyBlock(pos cube.Pos)
	RequestGaugeSignalRefresh(pos cube.Pos)
}

// Blocks names the block types the gateway logic recognizes.
type Blocks struct {
	Frame  BlockID
	Gauge  BlockID
	Marker BlockID
}

func DefaultBlocks() Blocks {
	return Blocks{
		Frame:  "voxelgate:portal_frame",
		Gauge:  "voxelgate:power_gauge",
		Marker: "voxelgate:portal",
	}
}

// IsFrame reports frame blocks. Gauges count as frame blocks.
func (b Blocks) IsFrame(id BlockID) bool {
	return id != "" && (id == b.Frame || id == b.Gauge)
}

type Config struct {
	MaxSize       int
	PowerCost     int
	PowerCapacity int
	Blocks        Blocks
}

func DefaultConfig() Config {
	return Config{
		MaxSize:       7,
		PowerCost:     1,
		PowerCapacity: 64,
		Blocks:        DefaultBlocks(),
	}
}
