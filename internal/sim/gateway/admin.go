package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
)

// PortalInfo is the admin view of one registered portal.
type PortalInfo struct {
	Dimension  string             `json:"dimension"`
	Address    string             `json:"address"`
	Components []portal.Component `json:"components"`
	Axis       string             `json:"axis"`
	Corners    [4]cube.Pos        `json:"corners"`
	Power      int                `json:"power"`
	Signal     int                `json:"signal"`
	Gauges     []cube.Pos         `json:"gauges,omitempty"`
}

func (s *Session) describe(p portal.Portal) PortalInfo {
	return PortalInfo{
		Dimension:  p.Dimension,
		Address:    p.Address.String(),
		Components: p.Address.Components(),
		Axis:       portal.AxisName(p.Axis),
		Corners:    [4]cube.Pos{p.Corner1.Pos, p.Corner2.Pos, p.Corner3.Pos, p.Corner4.Pos},
		Power:      s.reg.Power(p),
		Signal:     s.reg.SignalStrength(p),
		Gauges:     s.reg.Gauges(p),
	}
}

// Filter narrows a portal listing. Zero fields match everything.
type Filter struct {
	Dimension string
	Address   portal.Address
}

func (f Filter) match(p portal.Portal) bool {
	if f.Dimension != "" && p.Dimension != f.Dimension {
		return false
	}
	return f.Address.IsZero() || p.Address == f.Address
}

// Portals lists registered portals grouped by address, each group in
// registration order.
func (s *Session) Portals(ctx context.Context, f Filter) ([]PortalInfo, error) {
	var out []PortalInfo
	err := s.do(ctx, func() {
		for _, addr := range s.reg.Addresses() {
			for _, p := range s.reg.PortalsWithAddress(addr) {
				if f.match(p) {
					out = append(out, s.describe(p))
				}
			}
		}
	})
	return out, err
}

// DeactivateAddress tears down every portal of a network, optionally only
// those in one dimension.
func (s *Session) DeactivateAddress(ctx context.Context, addr portal.Address, dimension string) ([]PortalInfo, error) {
	if addr.IsZero() {
		return nil, portal.ErrBadAddress
	}
	var (
		out  []PortalInfo
		oerr error
	)
	err := s.do(ctx, func() {
		if dimension != "" {
			if _, ok := s.world.Dimension(dimension); !ok {
				oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
				return
			}
		}
		var targets []portal.Portal
		for _, p := range s.reg.PortalsWithAddress(addr) {
			if dimension == "" || p.Dimension == dimension {
				targets = append(targets, p)
			}
		}
		if len(targets) == 0 {
			oerr = fmt.Errorf("%w with address %s", ErrNoPortal, addr)
			return
		}
		for _, p := range targets {
			out = append(out, s.deactivateAt(p.Dimension, p.Anchor())...)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, oerr
}

// DeactivateAt tears down every portal covering pos.
func (s *Session) DeactivateAt(ctx context.Context, dimension string, pos cube.Pos) ([]PortalInfo, error) {
	var (
		out  []PortalInfo
		oerr error
	)
	err := s.do(ctx, func() {
		if _, ok := s.world.Dimension(dimension); !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		if !s.reg.IsPortalAt(dimension, pos) {
			oerr = fmt.Errorf("%w %v in %s", ErrNoPortal, pos, dimension)
			return
		}
		out = s.deactivateAt(dimension, pos)
	})
	if err != nil {
		return nil, err
	}
	return out, oerr
}

func (s *Session) deactivateAt(dimension string, pos cube.Pos) []PortalInfo {
	d, ok := s.world.Dimension(dimension)
	if !ok {
		return nil
	}
	var out []PortalInfo
	for _, p := range s.reg.PortalsAt(dimension, pos) {
		out = append(out, s.describe(p))
	}
	s.deactivated(s.reg.Deactivate(d, pos), "admin")
	return out
}

type PowerMode string

const (
	PowerAdd    PowerMode = "add"
	PowerRemove PowerMode = "remove"
	PowerGet    PowerMode = "get"
)

// PowerResult reports the amount actually moved and the charge afterwards.
type PowerResult struct {
	Amount int        `json:"amount"`
	Power  int        `json:"power"`
	Portal PortalInfo `json:"portal"`
}

// Power adds, removes or reads the charge of the single portal at pos.
// Removal is clamped to the current charge.
func (s *Session) Power(ctx context.Context, mode PowerMode, dimension string, pos cube.Pos, amount int) (PowerResult, error) {
	switch mode {
	case PowerAdd, PowerRemove:
		if amount < 1 {
			return PowerResult{}, fmt.Errorf("amount must be positive, got %d", amount)
		}
	case PowerGet:
	default:
		return PowerResult{}, fmt.Errorf("unknown power mode %q", mode)
	}
	var (
		res  PowerResult
		oerr error
	)
	err := s.do(ctx, func() {
		d, ok := s.world.Dimension(dimension)
		if !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		at := s.reg.PortalsAt(dimension, pos)
		switch {
		case len(at) == 0:
			oerr = fmt.Errorf("%w %v in %s", ErrNoPortal, pos, dimension)
			return
		case len(at) > 1:
			oerr = fmt.Errorf("%w %v in %s", ErrAmbiguous, pos, dimension)
			return
		}
		p := at[0]
		switch mode {
		case PowerAdd:
			res.Amount = amount - s.reg.AddPower(p, amount)
			s.reg.UpdateGauges(d, p)
		case PowerRemove:
			n := min(amount, s.reg.Power(p))
			if n > 0 && s.reg.RemovePower(p, n) {
				res.Amount = n
			}
			s.reg.UpdateGauges(d, p)
		case PowerGet:
			res.Amount = s.reg.Power(p)
		}
		res.Power = s.reg.Power(p)
		res.Portal = s.describe(p)
		if mode != PowerGet {
			s.emit(Event{
				Kind:      KindPower,
				Dimension: p.Dimension,
				Pos:       p.Anchor(),
				Address:   p.Address.String(),
				Detail:    map[string]any{"mode": string(mode), "amount": res.Amount, "power": res.Power},
			})
		}
	})
	if err != nil {
		return PowerResult{}, err
	}
	return res, oerr
}

// Cooldown returns the ticks left before an entity may use a portal again.
func (s *Session) Cooldown(ctx context.Context, id uuid.UUID) (int, error) {
	var (
		n    int
		oerr error
	)
	err := s.do(ctx, func() {
		if _, ok := s.world.Entity(id); !ok {
			oerr = fmt.Errorf("%w: %s", memworld.ErrUnknownEntity, id)
			return
		}
		n = s.cooldownLeft(id)
	})
	if err != nil {
		return 0, err
	}
	return n, oerr
}

// Clear forgets every portal. Marker blocks stay in the world.
func (s *Session) Clear(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() {
		n = s.reg.Len()
		s.reg.Clear()
		s.emit(Event{Kind: KindClear, Detail: map[string]any{"portals": n}})
	})
	return n, err
}

// Teleport moves an entity straight to pos in dimension, facing north. No
// power is charged and no cooldown applies.
func (s *Session) Teleport(ctx context.Context, id uuid.UUID, dimension string, pos cube.Pos) (memworld.Entity, error) {
	var (
		out  memworld.Entity
		oerr error
	)
	err := s.do(ctx, func() {
		before, ok := s.world.Entity(id)
		if !ok {
			oerr = fmt.Errorf("%w: %s", memworld.ErrUnknownEntity, id)
			return
		}
		out, oerr = s.world.Teleport(id, dimension, pos, cube.FaceNorth)
		if oerr == nil {
			s.teleported(out, before.ID, before.Dimension, portal.Address{})
		}
	})
	if err != nil {
		return memworld.Entity{}, err
	}
	return out, oerr
}

// Place sets a block. An empty id clears the cell.
func (s *Session) Place(ctx context.Context, dimension string, pos cube.Pos, id portal.BlockID) error {
	var oerr error
	err := s.do(ctx, func() {
		d, ok := s.world.Dimension(dimension)
		if !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		oerr = d.Place(pos, id)
	})
	return errors.Join(err, oerr)
}

// Interact uses the block at pos as a player would.
func (s *Session) Interact(ctx context.Context, dimension string, pos cube.Pos, side cube.Face, sneaking bool) (InteractResult, *PortalInfo, error) {
	var (
		res  InteractResult
		info *PortalInfo
		oerr error
	)
	err := s.do(ctx, func() {
		d, ok := s.world.Dimension(dimension)
		if !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		res = s.interact(d, pos, side, sneaking)
		if res.Portal != nil {
			pi := s.describe(*res.Portal)
			info = &pi
		}
	})
	if err != nil {
		return InteractResult{}, nil, err
	}
	return res, info, oerr
}

// Dispense fires the activation item from a dispenser at pos.
func (s *Session) Dispense(ctx context.Context, dimension string, pos cube.Pos, facing cube.Face) (*PortalInfo, error) {
	var (
		info *PortalInfo
		oerr error
	)
	err := s.do(ctx, func() {
		d, ok := s.world.Dimension(dimension)
		if !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		if p, ok := s.dispense(d, pos, facing); ok {
			pi := s.describe(p)
			info = &pi
		}
	})
	if err != nil {
		return nil, err
	}
	return info, oerr
}

func (s *Session) Spawn(ctx context.Context, e memworld.Entity) (memworld.Entity, error) {
	var (
		out  memworld.Entity
		oerr error
	)
	err := s.do(ctx, func() {
		if e.Kind == memworld.KindItem && s.items.Defs != nil {
			if _, ok := s.items.Defs[e.Item]; !ok {
				oerr = fmt.Errorf("unknown item %q", e.Item)
				return
			}
		}
		out, oerr = s.world.Spawn(e)
	})
	if err != nil {
		return memworld.Entity{}, err
	}
	return out, oerr
}

func (s *Session) Move(ctx context.Context, id uuid.UUID, pos cube.Pos) (memworld.Entity, error) {
	var (
		out  memworld.Entity
		oerr error
	)
	err := s.do(ctx, func() {
		out, oerr = s.world.Move(id, pos)
	})
	if err != nil {
		return memworld.Entity{}, err
	}
	return out, oerr
}

func (s *Session) Entity(ctx context.Context, id uuid.UUID) (memworld.Entity, error) {
	var (
		out memworld.Entity
		ok  bool
	)
	if err := s.do(ctx, func() { out, ok = s.world.Entity(id) }); err != nil {
		return memworld.Entity{}, err
	}
	if !ok {
		return memworld.Entity{}, fmt.Errorf("%w: %s", memworld.ErrUnknownEntity, id)
	}
	return out, nil
}

func (s *Session) Entities(ctx context.Context) ([]memworld.Entity, error) {
	var out []memworld.Entity
	err := s.do(ctx, func() { out = s.world.Entities() })
	return out, err
}

// Signal reads the output of the block at pos; non-gauge blocks read 0.
func (s *Session) Signal(ctx context.Context, dimension string, pos cube.Pos) (int, error) {
	var (
		n    int
		oerr error
	)
	err := s.do(ctx, func() {
		d, ok := s.world.Dimension(dimension)
		if !ok {
			oerr = fmt.Errorf("%w: %q", memworld.ErrUnknownDimension, dimension)
			return
		}
		n = d.Signal(pos)
	})
	if err != nil {
		return 0, err
	}
	return n, oerr
}
