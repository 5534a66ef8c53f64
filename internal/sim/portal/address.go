package portal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AddressLength is the number of corner blocks that make up an address.
const AddressLength = 4

var ErrBadAddress = errors.New("bad address")

// Address identifies a gateway network by the multiset of its four corner
// block types. The ids are kept sorted so that Address values compare with ==.
type Address struct {
	ids [AddressLength]BlockID
}

// Component is one (block type, count) pair of an address.
type Component struct {
	ID    BlockID `json:"id"`
	Count int     `json:"count"`
}

func NewAddress(a, b, c, d BlockID) Address {
	ids := [AddressLength]BlockID{a, b, c, d}
	sort.Slice(ids[:], func(i, j int) bool { return ids[i] < ids[j] })
	return Address{ids: ids}
}

// ParseAddress builds an address from exactly four block ids.
func ParseAddress(ids []string) (Address, error) {
	if len(ids) != AddressLength {
		return Address{}, fmt.Errorf("%w: need %d block ids, got %d", ErrBadAddress, AddressLength, len(ids))
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Address{}, fmt.Errorf("%w: empty block id", ErrBadAddress)
		}
	}
	return NewAddress(BlockID(ids[0]), BlockID(ids[1]), BlockID(ids[2]), BlockID(ids[3])), nil
}

// AddressFromComponents rebuilds an address from stored (id, count) pairs.
func AddressFromComponents(comps []Component) (Address, error) {
	var ids []BlockID
	for _, c := range comps {
		if c.ID == "" || c.Count < 1 || c.Count > AddressLength {
			return Address{}, fmt.Errorf("%w: component %q x%d", ErrBadAddress, c.ID, c.Count)
		}
		for i := 0; i < c.Count; i++ {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) != AddressLength {
		return Address{}, fmt.Errorf("%w: counts sum to %d", ErrBadAddress, len(ids))
	}
	return NewAddress(ids[0], ids[1], ids[2], ids[3]), nil
}

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) Equal(o Address) bool { return a.String() == o.String() }

// Count returns how often id occurs in the address (0..4).
func (a Address) Count(id BlockID) int {
	if id == "" {
		return 0
	}
	n := 0
	for _, v := range a.ids {
		if v == id {
			n++
		}
	}
	return n
}

// Components returns the (id, count) pairs sorted by id.
func (a Address) Components() []Component {
	var out []Component
	for _, id := range a.ids {
		if id == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].ID == id {
			out[n-1].Count++
			continue
		}
		out = append(out, Component{ID: id, Count: 1})
	}
	return out
}

// String renders the canonical form, e.g. "2xminecraft:dirt, 2xminecraft:stone".
func (a Address) String() string {
	comps := a.Components()
	parts := make([]string, 0, len(comps))
	for _, c := range comps {
		parts = append(parts, fmt.Sprintf("%dx%s", c.Count, c.ID))
	}
	return strings.Join(parts, ", ")
}
