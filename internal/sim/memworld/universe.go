package memworld

import (
	"errors"
	"fmt"
	"sort"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/portal"
)

var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUnknownBlock     = errors.New("unknown block")
	ErrUnknownEntity    = errors.New("unknown entity")
)

// Change is one block replacement.
type Change struct {
	Dimension string
	Pos       cube.Pos
	Old       portal.BlockID
	New       portal.BlockID
}

// Universe holds every dimension and entity of one session. Block changes
// and gauge refresh requests are queued until the owner drains them, so
// callbacks never run inside a registry call.
// All state must be accessed only from the owning session goroutine.
type Universe struct {
	blocks catalogs.BlockCatalog
	dims   map[string]*Dimension
	order  []string

	entities map[uuid.UUID]*Entity

	changes  []Change
	refresh  []portal.Location
	queued   map[portal.Location]bool
	removals []uuid.UUID
}

func New(blocks catalogs.BlockCatalog, dimensions []string) (*Universe, error) {
	if len(blocks.Palette) == 0 || blocks.Palette[0] != catalogs.Air {
		return nil, fmt.Errorf("block palette must start with %s", catalogs.Air)
	}
	u := &Universe{
		blocks:   blocks,
		dims:     map[string]*Dimension{},
		entities: map[uuid.UUID]*Entity{},
		queued:   map[portal.Location]bool{},
	}
	for _, name := range dimensions {
		if name == "" {
			return nil, fmt.Errorf("empty dimension name")
		}
		if _, dup := u.dims[name]; dup {
			return nil, fmt.Errorf("duplicate dimension %q", name)
		}
		u.dims[name] = &Dimension{
			name:    name,
			u:       u,
			chunks:  map[ChunkKey]*Chunk{},
			props:   map[cube.Pos]portal.Properties{},
			signals: map[cube.Pos]int{},
		}
		u.order = append(u.order, name)
	}
	return u, nil
}

// Dimension returns the named dimension.
func (u *Universe) Dimension(name string) (*Dimension, bool) {
	d, ok := u.dims[name]
	return d, ok
}

// Dimensions returns the dimension names in creation order.
func (u *Universe) Dimensions() []string {
	return append([]string(nil), u.order...)
}

func (u *Universe) Blocks() catalogs.BlockCatalog { return u.blocks }

// DrainChanges returns and forgets the queued block changes.
func (u *Universe) DrainChanges() []Change {
	out := u.changes
	u.changes = nil
	return out
}

// DrainRefreshes returns and forgets the queued gauge refresh requests,
// each location once, in request order.
func (u *Universe) DrainRefreshes() []portal.Location {
	out := u.refresh
	u.refresh = nil
	clear(u.queued)
	return out
}

// DrainRemovals returns the ids of entities removed since the last call.
func (u *Universe) DrainRemovals() []uuid.UUID {
	out := u.removals
	u.removals = nil
	return out
}

func (u *Universe) recordChange(c Change) {
	u.changes = append(u.changes, c)
}

func (u *Universe) requestRefresh(loc portal.Location) {
	if u.queued[loc] {
		return
	}
	u.queued[loc] = true
	u.refresh = append(u.refresh, loc)
}

// sortedIDs lists entity ids in a stable order.
func (u *Universe) sortedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(u.entities))
	for id := range u.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
