package memworld

import (
	"fmt"
	"maps"

	"github.com/df-mc/dragonfly/server/block/cube"

	"voxelgate.ai/internal/sim/portal"
)

// Dimension is one sparse block volume. It implements portal.World.
type Dimension struct {
	name string
	u    *Universe

	chunks  map[ChunkKey]*Chunk
	props   map[cube.Pos]portal.Properties
	signals map[cube.Pos]int
}

var _ portal.World = (*Dimension)(nil)

func (d *Dimension) Dimension() string { return d.name }

func (d *Dimension) paletteID(pos cube.Pos) uint16 {
	k, x, y, z := split(pos)
	ch, ok := d.chunks[k]
	if !ok {
		return 0
	}
	return ch.Get(x, y, z)
}

func (d *Dimension) BlockTypeAt(pos cube.Pos) portal.BlockID {
	id := d.paletteID(pos)
	if id == 0 {
		return ""
	}
	return portal.BlockID(d.u.blocks.Palette[id])
}

func (d *Dimension) IsEmpty(pos cube.Pos) bool { return d.paletteID(pos) == 0 }

func (d *Dimension) IsSolidNoAux(pos cube.Pos) bool {
	id := d.paletteID(pos)
	if id == 0 {
		return false
	}
	def := d.u.blocks.Defs[d.u.blocks.Palette[id]]
	return def.Solid && !def.Aux
}

// Properties returns a copy of the state data stored at pos.
func (d *Dimension) Properties(pos cube.Pos) portal.Properties {
	p, ok := d.props[pos]
	if !ok {
		return nil
	}
	return maps.Clone(p)
}

// Place sets a catalog block; an empty id or the air id clears the cell.
func (d *Dimension) Place(pos cube.Pos, id portal.BlockID) error {
	if id == "" {
		d.set(pos, 0, nil)
		return nil
	}
	idx, ok := d.u.blocks.Index[string(id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}
	d.set(pos, idx, nil)
	return nil
}

// SetBlock places id with props. Ids missing from the catalog are ignored.
func (d *Dimension) SetBlock(pos cube.Pos, id portal.BlockID, props portal.Properties) {
	idx, ok := d.u.blocks.Index[string(id)]
	if !ok {
		return
	}
	d.set(pos, idx, props)
}

func (d *Dimension) DestroyBlock(pos cube.Pos) {
	d.set(pos, 0, nil)
}

func (d *Dimension) RequestGaugeSignalRefresh(pos cube.Pos) {
	d.u.requestRefresh(portal.Location{Dimension: d.name, Pos: pos})
}

// Signal is the last signal written to the gauge at pos.
func (d *Dimension) Signal(pos cube.Pos) int { return d.signals[pos] }

func (d *Dimension) SetSignal(pos cube.Pos, s int) {
	if s <= 0 {
		delete(d.signals, pos)
		return
	}
	d.signals[pos] = s
}

// Filled counts non-air cells.
func (d *Dimension) Filled() int {
	n := 0
	for _, ch := range d.chunks {
		n += ch.filled
	}
	return n
}

func (d *Dimension) set(pos cube.Pos, idx uint16, props portal.Properties) {
	k, x, y, z := split(pos)
	ch, ok := d.chunks[k]
	if !ok {
		if idx == 0 {
			return
		}
		ch = newChunk(k)
		d.chunks[k] = ch
	}
	old := ch.Set(x, y, z, idx)
	if len(props) > 0 {
		d.props[pos] = maps.Clone(props)
	} else {
		delete(d.props, pos)
	}
	if idx == 0 {
		delete(d.signals, pos)
		if ch.filled == 0 {
			delete(d.chunks, k)
		}
	}
	if old == idx {
		return
	}
	d.u.recordChange(Change{
		Dimension: d.name,
		Pos:       pos,
		Old:       d.blockID(old),
		New:       d.blockID(idx),
	})
}

func (d *Dimension) blockID(idx uint16) portal.BlockID {
	if idx == 0 {
		return ""
	}
	return portal.BlockID(d.u.blocks.Palette[idx])
}
