package portal

import "github.com/df-mc/dragonfly/server/block/cube"

// MaxSignal is the strongest gauge output.
const MaxSignal = 15

// AddPower charges p by amount, clamped to the configured capacity, and
// returns the part that did not fit. Non-positive amounts and unknown
// portals leave everything unchanged and return amount.
func (r *Registry) AddPower(p Portal, amount int) int {
	h, ok := r.handles[p]
	if !ok || amount < 1 {
		return amount
	}
	old := r.power[h]
	free := max(r.cfg.PowerCapacity-old, 0)
	added := min(free, amount)
	r.power[h] = old + added
	r.dirty = true
	return amount - added
}

// RemovePower takes amount from p only if p holds at least that much.
func (r *Registry) RemovePower(p Portal, amount int) bool {
	h, ok := r.handles[p]
	if !ok || amount < 1 {
		return false
	}
	old := r.power[h]
	if old < amount {
		return false
	}
	r.power[h] = old - amount
	r.dirty = true
	return true
}

// Power returns the charge of p, 0 for unknown portals.
func (r *Registry) Power(p Portal) int {
	h, ok := r.handles[p]
	if !ok {
		return 0
	}
	return r.power[h]
}

// SignalStrength maps the remaining uses of p onto 0..15. Any usable charge
// reads at least 1.
func (r *Registry) SignalStrength(p Portal) int {
	cost, capacity := r.cfg.PowerCost, r.cfg.PowerCapacity
	if cost <= 0 || capacity <= 0 {
		return 0
	}
	if _, ok := r.handles[p]; !ok {
		return 0
	}
	maxUses := capacity / cost
	if maxUses <= 0 {
		return 0
	}
	uses := r.Power(p) / cost
	s := int(float32(uses) / float32(maxUses) * 14)
	if uses > 0 {
		s++
	}
	return min(s, MaxSignal)
}

// SignalAt is the output of a gauge at pos: the floored average signal of
// every portal indexed there.
func (r *Registry) SignalAt(dimension string, pos cube.Pos) int {
	ps := r.PortalsAt(dimension, pos)
	if len(ps) == 0 {
		return 0
	}
	sum := 0
	for _, p := range ps {
		sum += r.SignalStrength(p)
	}
	return sum / len(ps)
}
