package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// Handle is the registry-issued identity of a registered portal.
type Handle uint32

// Location is a block position qualified by its dimension.
type Location struct {
	Dimension string
	Pos       cube.Pos
}

// Registry indexes the portals of one session by position, by address and by
// handle. It is not safe for concurrent use; the owning session serializes
// all calls onto its loop goroutine.
type Registry struct {
	cfg Config

	next    Handle
	portals map[Handle]Portal
	handles map[Portal]Handle
	byPos   map[Location][]Handle
	byAddr  map[Address][]Handle
	power   map[Handle]int
	gauges  map[Handle][]cube.Pos

	dirty bool
}

func NewRegistry(cfg Config) *Registry {
	r := &Registry{cfg: cfg}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.next = 0
	r.portals = map[Handle]Portal{}
	r.handles = map[Portal]Handle{}
	r.byPos = map[Location][]Handle{}
	r.byAddr = map[Address][]Handle{}
	r.power = map[Handle]int{}
	r.gauges = map[Handle][]cube.Pos{}
}

func (r *Registry) Config() Config { return r.cfg }

// SetConfig swaps the settings used by activation and the power economy.
// Registered portals and their power are kept as they are.
func (r *Registry) SetConfig(cfg Config) { r.cfg = cfg }

// Dirty reports unsaved changes since the last MarkClean.
func (r *Registry) Dirty() bool { return r.dirty }
func (r *Registry) MarkClean()  { r.dirty = false }

// MarkDirty forces the next save, e.g. after a failed write.
func (r *Registry) MarkDirty() { r.dirty = true }

func (r *Registry) Len() int { return len(r.portals) }

// Register adds p to every index with zero power and the given gauge
// positions, then asks the world to refresh those gauges.
func (r *Registry) Register(w World, p Portal, gauges []cube.Pos) (Handle, bool) {
	if w == nil {
		return 0, false
	}
	if h, ok := r.handles[p]; ok {
		return h, false
	}
	h := r.insert(p)
	r.power[h] = 0
	if len(gauges) > 0 {
		r.gauges[h] = append([]cube.Pos(nil), gauges...)
	}
	r.UpdateGauges(w, p)
	r.dirty = true
	return h, true
}

func (r *Registry) insert(p Portal) Handle {
	r.next++
	h := r.next
	r.portals[h] = p
	r.handles[p] = h
	for _, pos := range p.AllPositions() {
		loc := Location{Dimension: p.Dimension, Pos: pos}
		r.byPos[loc] = append(r.byPos[loc], h)
	}
	r.byAddr[p.Address] = append(r.byAddr[p.Address], h)
	return h
}

// Unregister removes p from every index. Gauges are refreshed after the
// power entry is gone and before the gauge list is dropped.
func (r *Registry) Unregister(w World, p Portal) bool {
	if w == nil {
		return false
	}
	h, ok := r.handles[p]
	if !ok {
		return false
	}
	for _, pos := range p.AllPositions() {
		loc := Location{Dimension: p.Dimension, Pos: pos}
		if rest := removeHandle(r.byPos[loc], h); len(rest) > 0 {
			r.byPos[loc] = rest
		} else {
			delete(r.byPos, loc)
		}
	}
	if rest := removeHandle(r.byAddr[p.Address], h); len(rest) > 0 {
		r.byAddr[p.Address] = rest
	} else {
		delete(r.byAddr, p.Address)
	}
	delete(r.power, h)
	r.UpdateGauges(w, p)
	delete(r.gauges, h)
	delete(r.portals, h)
	delete(r.handles, p)
	r.dirty = true
	return true
}

// Deactivate tears down every portal indexed at pos in w's dimension. All of
// them are unregistered before any marker block is destroyed, so the block
// change callbacks fired by the destruction find nothing left to deactivate.
func (r *Registry) Deactivate(w World, pos cube.Pos) []Portal {
	if w == nil {
		return nil
	}
	affected := r.PortalsAt(w.Dimension(), pos)
	for _, p := range affected {
		r.Unregister(w, p)
	}
	for _, p := range affected {
		for _, in := range p.PortalPositions() {
			w.DestroyBlock(in)
		}
	}
	return affected
}

// PortalsAt returns the portals whose footprint covers pos, oldest first.
func (r *Registry) PortalsAt(dimension string, pos cube.Pos) []Portal {
	return r.resolve(r.byPos[Location{Dimension: dimension, Pos: pos}])
}

func (r *Registry) IsPortalAt(dimension string, pos cube.Pos) bool {
	return len(r.byPos[Location{Dimension: dimension, Pos: pos}]) > 0
}

// PortalsWithAddress returns the network for addr in registration order.
func (r *Registry) PortalsWithAddress(addr Address) []Portal {
	return r.resolve(r.byAddr[addr])
}

func (r *Registry) PortalsInDimension(dimension string) []Portal {
	var out []Portal
	for _, p := range r.All() {
		if p.Dimension == dimension {
			out = append(out, p)
		}
	}
	return out
}

// All returns every registered portal in registration order.
func (r *Registry) All() []Portal {
	out := make([]Portal, 0, len(r.portals))
	for h := Handle(1); h <= r.next; h++ {
		if p, ok := r.portals[h]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Addresses returns the distinct addresses in use.
func (r *Registry) Addresses() []Address {
	seen := map[Address]bool{}
	var out []Address
	for _, p := range r.All() {
		if !seen[p.Address] {
			seen[p.Address] = true
			out = append(out, p.Address)
		}
	}
	return out
}

func (r *Registry) Handle(p Portal) (Handle, bool) {
	h, ok := r.handles[p]
	return h, ok
}

func (r *Registry) Gauges(p Portal) []cube.Pos {
	h, ok := r.handles[p]
	if !ok {
		return nil
	}
	return append([]cube.Pos(nil), r.gauges[h]...)
}

// UpdateGauges asks the world to re-read the signal of every gauge of p.
func (r *Registry) UpdateGauges(w World, p Portal) {
	if w == nil {
		return
	}
	h, ok := r.handles[p]
	if !ok {
		return
	}
	for _, pos := range r.gauges[h] {
		w.RequestGaugeSignalRefresh(pos)
	}
}

// Clear forgets every portal without touching the world.
func (r *Registry) Clear() {
	r.reset()
	r.dirty = true
}

func (r *Registry) resolve(hs []Handle) []Portal {
	if len(hs) == 0 {
		return nil
	}
	out := make([]Portal, 0, len(hs))
	for _, h := range hs {
		out = append(out, r.portals[h])
	}
	return out
}

func removeHandle(hs []Handle, h Handle) []Handle {
	out := hs[:0]
	for _, v := range hs {
		if v != h {
			out = append(out, v)
		}
	}
	return out
}
