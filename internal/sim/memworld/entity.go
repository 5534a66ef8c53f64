package memworld

import (
	"fmt"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"voxelgate.ai/internal/sim/portal"
)

type Kind string

const (
	KindPlayer Kind = "player"
	KindItem   Kind = "item"
	KindMob    Kind = "mob"
)

// Default bounding box heights per kind.
const (
	PlayerHeight = 1.8
	ItemHeight   = 0.25
	MobHeight    = 1.95
)

type Entity struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name,omitempty"`
	Dimension string    `json:"dimension"`
	Pos       cube.Pos  `json:"pos"`
	Yaw       float64   `json:"yaw"`
	Height    float64   `json:"height"`
	Creative  bool      `json:"creative,omitempty"`

	// Item stack, KindItem only.
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

func (e Entity) IsPlayer() bool { return e.Kind == KindPlayer }

// StandingHeight is the number of cells the entity occupies.
func (e Entity) StandingHeight() int { return int(math.Ceil(e.Height)) }

// Facing is the horizontal direction the entity looks at.
func (e Entity) Facing() cube.Face {
	faces := [4]cube.Face{cube.FaceSouth, cube.FaceWest, cube.FaceNorth, cube.FaceEast}
	return faces[int(math.Floor(e.Yaw/90+0.5))&3]
}

// Cells lists the positions the entity occupies, feet first.
func (e Entity) Cells() []cube.Pos {
	n := max(e.StandingHeight(), 1)
	out := make([]cube.Pos, n)
	for i := range out {
		out[i] = e.Pos.Add(cube.Pos{0, i, 0})
	}
	return out
}

// Spawn adds e. A nil id gets a fresh one; a zero height gets the kind
// default.
func (u *Universe) Spawn(e Entity) (Entity, error) {
	if _, ok := u.dims[e.Dimension]; !ok {
		return Entity{}, fmt.Errorf("%w: %q", ErrUnknownDimension, e.Dimension)
	}
	switch e.Kind {
	case KindPlayer, KindMob:
	case KindItem:
		if e.Item == "" || e.Count < 1 {
			return Entity{}, fmt.Errorf("item entity needs an item and a positive count")
		}
	default:
		return Entity{}, fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	if e.Height < 0 {
		return Entity{}, fmt.Errorf("negative height %v", e.Height)
	}
	if e.Height == 0 {
		switch e.Kind {
		case KindPlayer:
			e.Height = PlayerHeight
		case KindItem:
			e.Height = ItemHeight
		default:
			e.Height = MobHeight
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, dup := u.entities[e.ID]; dup {
		return Entity{}, fmt.Errorf("entity %s already exists", e.ID)
	}
	u.entities[e.ID] = &e
	return e, nil
}

func (u *Universe) Entity(id uuid.UUID) (Entity, bool) {
	e, ok := u.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Entities returns every entity ordered by id.
func (u *Universe) Entities() []Entity {
	out := make([]Entity, 0, len(u.entities))
	for _, id := range u.sortedIDs() {
		out = append(out, *u.entities[id])
	}
	return out
}

// Move places an entity at pos within its dimension.
func (u *Universe) Move(id uuid.UUID, pos cube.Pos) (Entity, error) {
	e, ok := u.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	e.Pos = pos
	return *e, nil
}

// SetItemCount changes the stack size of an item entity. A count below one
// removes the entity.
func (u *Universe) SetItemCount(id uuid.UUID, n int) error {
	e, ok := u.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if e.Kind != KindItem {
		return fmt.Errorf("entity %s is not an item", id)
	}
	if n < 1 {
		u.Remove(id)
		return nil
	}
	e.Count = n
	return nil
}

func (u *Universe) Remove(id uuid.UUID) bool {
	if _, ok := u.entities[id]; !ok {
		return false
	}
	delete(u.entities, id)
	u.removals = append(u.removals, id)
	return true
}

// Teleport moves an entity to pos in dimension, facing the given way.
// Players keep their identity. Other entities changing dimension are
// recreated there under a new id, and the returned entity carries it.
func (u *Universe) Teleport(id uuid.UUID, dimension string, pos cube.Pos, facing cube.Face) (Entity, error) {
	e, ok := u.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if _, ok := u.dims[dimension]; !ok {
		return Entity{}, fmt.Errorf("%w: %q", ErrUnknownDimension, dimension)
	}
	moved := *e
	moved.Dimension = dimension
	moved.Pos = pos
	moved.Yaw = portal.Yaw(facing)
	if !moved.IsPlayer() && dimension != e.Dimension {
		u.Remove(id)
		moved.ID = uuid.New()
		u.entities[moved.ID] = &moved
		return moved, nil
	}
	*e = moved
	return moved, nil
}
