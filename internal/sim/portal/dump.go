package portal

import (
	"fmt"
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// Dump is the storage form of a registry. Portals are referenced by their
// index in Portals; those indices are only meaningful within one dump.
type Dump struct {
	Portals []Portal
	Blocks  []BlockRefs
	Power   map[int]int
}

// BlockRefs lists the portals indexed at one position. The position lives in
// the dimension of the portals it references.
type BlockRefs struct {
	Pos     cube.Pos
	IsGauge bool
	Refs    []int
}

// Dump captures the three indices of the registry.
func (r *Registry) Dump() Dump {
	all := r.All()
	d := Dump{
		Portals: all,
		Power:   make(map[int]int, len(all)),
	}
	index := make(map[Handle]int, len(all))
	for i, p := range all {
		h := r.handles[p]
		index[h] = i
		d.Power[i] = r.power[h]
	}

	gaugeAt := map[Location]bool{}
	for h, ps := range r.gauges {
		for _, pos := range ps {
			gaugeAt[Location{Dimension: r.portals[h].Dimension, Pos: pos}] = true
		}
	}

	locs := make([]Location, 0, len(r.byPos))
	for loc := range r.byPos {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return lessLocation(locs[i], locs[j]) })
	for _, loc := range locs {
		br := BlockRefs{Pos: loc.Pos, IsGauge: gaugeAt[loc]}
		for _, h := range r.byPos[loc] {
			br.Refs = append(br.Refs, index[h])
		}
		d.Blocks = append(d.Blocks, br)
	}
	return d
}

// Restore replaces the registry contents with d. The registry is left empty
// when d is inconsistent.
func (r *Registry) Restore(d Dump) error {
	r.reset()
	r.dirty = false

	handles := make([]Handle, len(d.Portals))
	for i, p := range d.Portals {
		if _, dup := r.handles[p]; dup {
			r.reset()
			return fmt.Errorf("portal %d: duplicate of an earlier portal", i)
		}
		r.next++
		h := r.next
		handles[i] = h
		r.portals[h] = p
		r.handles[p] = h
		r.byAddr[p.Address] = append(r.byAddr[p.Address], h)
		r.power[h] = 0
	}

	for _, br := range d.Blocks {
		for _, ref := range br.Refs {
			if ref < 0 || ref >= len(handles) {
				r.reset()
				return fmt.Errorf("block %v: portal ref %d out of range", br.Pos, ref)
			}
			h := handles[ref]
			loc := Location{Dimension: r.portals[h].Dimension, Pos: br.Pos}
			r.byPos[loc] = append(r.byPos[loc], h)
			if br.IsGauge {
				r.gauges[h] = append(r.gauges[h], br.Pos)
			}
		}
	}

	for i, v := range d.Power {
		if i < 0 || i >= len(handles) {
			r.reset()
			return fmt.Errorf("power entry %d out of range", i)
		}
		r.power[handles[i]] = min(max(v, 0), max(r.cfg.PowerCapacity, 0))
	}
	return nil
}

func lessLocation(a, b Location) bool {
	if a.Dimension != b.Dimension {
		return a.Dimension < b.Dimension
	}
	for i := 2; i >= 0; i-- {
		if a.Pos[i] != b.Pos[i] {
			return a.Pos[i] < b.Pos[i]
		}
	}
	return false
}
