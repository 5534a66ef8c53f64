package gateway

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
	"voxelgate.ai/internal/sim/teleport"
)

// InteractResult describes what a player interaction with a frame did.
type InteractResult struct {
	Destroyed bool           `json:"destroyed,omitempty"`
	Activated bool           `json:"activated,omitempty"`
	Portal    *portal.Portal `json:"-"`
}

// interact handles a player using a frame or gauge block. Sneaking breaks
// the block; otherwise a block that is not yet part of a portal tries to
// activate one.
func (s *Session) interact(d *memworld.Dimension, pos cube.Pos, side cube.Face, sneaking bool) InteractResult {
	blocks := s.reg.Config().Blocks
	if !blocks.IsFrame(d.BlockTypeAt(pos)) {
		return InteractResult{}
	}
	if sneaking {
		d.DestroyBlock(pos)
		return InteractResult{Destroyed: true}
	}
	if s.reg.IsPortalAt(d.Dimension(), pos) {
		return InteractResult{}
	}
	p, ok := s.reg.Activate(d, pos, side)
	if !ok {
		return InteractResult{}
	}
	s.activated(p, "player")
	return InteractResult{Activated: true, Portal: &p}
}

// dispense handles a dispenser firing the activation item.
func (s *Session) dispense(d *memworld.Dimension, pos cube.Pos, facing cube.Face) (portal.Portal, bool) {
	p, ok := s.reg.ActivateFromDispenser(d, pos, facing)
	if ok {
		s.activated(p, "dispenser")
	}
	return p, ok
}

func (s *Session) activated(p portal.Portal, via string) {
	s.stats.activated++
	s.emit(Event{
		Kind:      KindActivate,
		Dimension: p.Dimension,
		Pos:       p.Anchor(),
		Address:   p.Address.String(),
		Detail:    map[string]any{"via": via, "axis": portal.AxisName(p.Axis)},
	})
}

// blockChanged tears down the portals at a changed position once the first
// of them no longer stands intact.
func (s *Session) blockChanged(c memworld.Change) {
	at := s.reg.PortalsAt(c.Dimension, c.Pos)
	if len(at) == 0 {
		return
	}
	d, ok := s.world.Dimension(c.Dimension)
	if !ok {
		return
	}
	if !at[0].IsDamaged(d, s.reg.Config().Blocks) {
		return
	}
	s.deactivated(s.reg.Deactivate(d, c.Pos), "damaged")
}

func (s *Session) deactivated(gone []portal.Portal, reason string) {
	for _, p := range gone {
		s.stats.deactivated++
		s.emit(Event{
			Kind:      KindDeactivate,
			Dimension: p.Dimension,
			Pos:       p.Anchor(),
			Address:   p.Address.String(),
			Detail:    map[string]any{"reason": reason},
		})
	}
}

// entityInside runs when an entity occupies a marker cell at pos.
func (s *Session) entityInside(tick uint64, e memworld.Entity, pos cube.Pos) {
	if s.onCooldown(e.ID, tick) {
		return
	}
	at := s.reg.PortalsAt(e.Dimension, pos)
	if len(at) == 0 {
		return
	}
	start := at[0]
	origin, _ := s.world.Dimension(e.Dimension)
	cfg := s.reg.Config()
	t := s.cfg.Tuning

	cooldown := t.EntityTeleportationCooldown
	if e.IsPlayer() {
		cooldown = t.PlayerTeleportationCooldown
	}

	if e.Kind == memworld.KindItem && cfg.PowerCost > 0 && cfg.PowerCapacity > 0 {
		if !s.checkPowerSource() {
			return
		}
		if s.reg.Power(start) < cfg.PowerCapacity && s.items.HasTag(e.Item, t.PowerSource) {
			surplus := s.reg.AddPower(start, e.Count)
			s.reg.UpdateGauges(origin, start)
			if err := s.world.SetItemCount(e.ID, surplus); err != nil {
				s.log.Printf("session %s: item %s: %v", s.cfg.ID, e.ID, err)
			}
			added := e.Count - surplus
			s.stats.powerIn += uint64(added)
			s.emit(Event{
				Kind:      KindPower,
				Dimension: start.Dimension,
				Pos:       start.Anchor(),
				Address:   start.Address.String(),
				Entity:    e.ID.String(),
				Detail:    map[string]any{"mode": "feed", "item": e.Item, "added": added, "power": s.reg.Power(start)},
			})
			return
		}
	}

	bypass := e.IsPlayer() && e.Creative
	if !bypass && s.reg.Power(start) < cfg.PowerCost {
		return
	}
	network := s.reg.PortalsWithAddress(start.Address)
	if len(network) < 2 {
		return
	}

	dests := make([]portal.Portal, 0, len(network)-1)
	for _, p := range network {
		if p != start {
			dests = append(dests, p)
		}
	}
	if len(dests) > 0 {
		s.rng.Shuffle(len(dests), func(i, j int) { dests[i], dests[j] = dests[j], dests[i] })

		var (
			dest    portal.Portal
			landing cube.Pos
			found   bool
		)
		height := e.StandingHeight()
		for _, p := range dests {
			d, ok := s.world.Dimension(p.Dimension)
			if !ok {
				continue
			}
			if spot, ok := p.Destination(d, height); ok {
				dest, landing, found = p, spot, true
				break
			}
		}

		if !found {
			s.stats.noDest++
			s.emit(Event{
				Kind:      KindTeleport,
				Dimension: e.Dimension,
				Pos:       pos,
				Address:   start.Address.String(),
				Entity:    e.ID.String(),
				Detail:    map[string]any{"ok": false, "reason": "no_destination"},
			})
		} else if bypass || cfg.PowerCost == 0 || s.reg.RemovePower(start, cfg.PowerCost) {
			if !bypass && cfg.PowerCost > 0 {
				s.stats.powerOut += uint64(cfg.PowerCost)
			}
			facing, ok := dest.ExitFacing(landing)
			if !ok {
				facing = e.Facing()
			}
			if e.IsPlayer() {
				s.queue.Push(teleport.Task{
					Session:   s.cfg.ID,
					Created:   tick,
					Entity:    e.ID,
					Dimension: dest.Dimension,
					Pos:       landing,
					Facing:    facing,
				})
				s.stats.queued++
				s.emit(Event{
					Kind:      KindTeleportQueued,
					Dimension: dest.Dimension,
					Pos:       landing,
					Address:   start.Address.String(),
					Entity:    e.ID.String(),
					Detail:    map[string]any{"from": e.Dimension, "facing": portal.FaceName(facing)},
				})
			} else {
				moved, err := s.world.Teleport(e.ID, dest.Dimension, landing, facing)
				if err != nil {
					s.log.Printf("session %s: teleport %s: %v", s.cfg.ID, e.ID, err)
				} else {
					s.teleported(moved, e.ID, e.Dimension, start.Address)
					e = moved
				}
			}
			s.reg.UpdateGauges(origin, start)
		} else {
			s.emit(Event{
				Kind:      KindTeleport,
				Dimension: e.Dimension,
				Pos:       pos,
				Address:   start.Address.String(),
				Entity:    e.ID.String(),
				Detail:    map[string]any{"ok": false, "reason": "insufficient_power"},
			})
		}
	}

	s.setCooldown(e.ID, tick, cooldown)
}

// runTask performs a queued player teleport.
func (s *Session) runTask(t teleport.Task) {
	e, ok := s.world.Entity(t.Entity)
	if !ok {
		s.stats.discarded++
		s.emit(Event{
			Kind:      KindTeleportDiscarded,
			Dimension: t.Dimension,
			Pos:       t.Pos,
			Entity:    t.Entity.String(),
			Detail:    map[string]any{"reason": "entity_gone"},
		})
		return
	}
	moved, err := s.world.Teleport(t.Entity, t.Dimension, t.Pos, t.Facing)
	if err != nil {
		s.log.Printf("session %s: teleport %s: %v", s.cfg.ID, t.Entity, err)
		return
	}
	s.setCooldown(moved.ID, s.tick.Load(), s.cfg.Tuning.PlayerTeleportationCooldown)
	s.teleported(moved, e.ID, e.Dimension, portal.Address{})
}

func (s *Session) teleported(moved memworld.Entity, was uuid.UUID, from string, addr portal.Address) {
	s.stats.teleported++
	detail := map[string]any{"ok": true, "from": from, "facing": portal.FaceName(moved.Facing())}
	if moved.ID != was {
		detail["previous_id"] = was.String()
	}
	ev := Event{
		Kind:      KindTeleport,
		Dimension: moved.Dimension,
		Pos:       moved.Pos,
		Entity:    moved.ID.String(),
		Detail:    detail,
	}
	if !addr.IsZero() {
		ev.Address = addr.String()
	}
	s.emit(ev)
}

func (s *Session) onCooldown(id uuid.UUID, tick uint64) bool {
	until, ok := s.cooldowns[id]
	return ok && tick < until
}

func (s *Session) setCooldown(id uuid.UUID, tick uint64, n int) {
	if n <= 0 {
		delete(s.cooldowns, id)
		return
	}
	s.cooldowns[id] = tick + uint64(n)
}

// cooldownLeft is the number of ticks before id may use a portal again.
func (s *Session) cooldownLeft(id uuid.UUID) int {
	until, ok := s.cooldowns[id]
	tick := s.tick.Load()
	if !ok || tick >= until {
		return 0
	}
	return int(until - tick)
}

func (s *Session) expireCooldowns(tick uint64) {
	for id, until := range s.cooldowns {
		if tick >= until {
			delete(s.cooldowns, id)
		}
	}
}
