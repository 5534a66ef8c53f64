// Package tagtree encodes a portal registry dump as a big endian NBT
// compound.
package tagtree

import (
	"fmt"
	"strconv"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"voxelgate.ai/internal/sim/portal"
)

// Version is written into every root compound.
const Version = 1

type rootTag struct {
	Version      int32            `nbt:"version"`
	Portals      []portalTag      `nbt:"portals"`
	PortalBlocks []blockTag       `nbt:"portalBlocks"`
	Power        map[string]int32 `nbt:"power"`
}

type portalTag struct {
	Dimension string         `nbt:"dimension"`
	Address   []componentTag `nbt:"address"`
	Axis      string         `nbt:"axis"`
	Corner1   cornerTag      `nbt:"corner1"`
	Corner2   cornerTag      `nbt:"corner2"`
	Corner3   cornerTag      `nbt:"corner3"`
	Corner4   cornerTag      `nbt:"corner4"`
}

type componentTag struct {
	ID    string `nbt:"id"`
	Count int32  `nbt:"count"`
}

type cornerTag struct {
	Pos     []int32 `nbt:"pos"`
	FacingA string  `nbt:"facingA"`
	FacingB string  `nbt:"facingB"`
}

type blockTag struct {
	Pos        []int32 `nbt:"pos"`
	IsGauge    uint8   `nbt:"isGauge"`
	PortalRefs []int32 `nbt:"portalRefs"`
}

func Encode(d portal.Dump) ([]byte, error) {
	root := rootTag{
		Version:      Version,
		Portals:      make([]portalTag, 0, len(d.Portals)),
		PortalBlocks: make([]blockTag, 0, len(d.Blocks)),
		Power:        make(map[string]int32, len(d.Power)),
	}
	for _, p := range d.Portals {
		pt := portalTag{
			Dimension: p.Dimension,
			Axis:      portal.AxisName(p.Axis),
			Corner1:   encodeCorner(p.Corner1),
			Corner2:   encodeCorner(p.Corner2),
			Corner3:   encodeCorner(p.Corner3),
			Corner4:   encodeCorner(p.Corner4),
		}
		for _, c := range p.Address.Components() {
			pt.Address = append(pt.Address, componentTag{ID: string(c.ID), Count: int32(c.Count)})
		}
		root.Portals = append(root.Portals, pt)
	}
	for _, b := range d.Blocks {
		bt := blockTag{Pos: encodePos(b.Pos), PortalRefs: make([]int32, 0, len(b.Refs))}
		if b.IsGauge {
			bt.IsGauge = 1
		}
		for _, ref := range b.Refs {
			bt.PortalRefs = append(bt.PortalRefs, int32(ref))
		}
		root.PortalBlocks = append(root.PortalBlocks, bt)
	}
	for i, v := range d.Power {
		root.Power[strconv.Itoa(i)] = int32(v)
	}

	b, err := nbt.MarshalEncoding(root, nbt.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("encode gateways: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (portal.Dump, error) {
	var root rootTag
	if err := nbt.UnmarshalEncoding(b, &root, nbt.BigEndian); err != nil {
		return portal.Dump{}, fmt.Errorf("decode gateways: %w", err)
	}
	if root.Version > Version {
		return portal.Dump{}, fmt.Errorf("decode gateways: unsupported version %d", root.Version)
	}

	d := portal.Dump{Power: make(map[int]int, len(root.Power))}
	for i, pt := range root.Portals {
		p, err := decodePortal(pt)
		if err != nil {
			return portal.Dump{}, fmt.Errorf("portal %d: %w", i, err)
		}
		d.Portals = append(d.Portals, p)
	}
	for i, bt := range root.PortalBlocks {
		pos, err := decodePos(bt.Pos)
		if err != nil {
			return portal.Dump{}, fmt.Errorf("portal block %d: %w", i, err)
		}
		br := portal.BlockRefs{Pos: pos, IsGauge: bt.IsGauge != 0}
		for _, ref := range bt.PortalRefs {
			br.Refs = append(br.Refs, int(ref))
		}
		d.Blocks = append(d.Blocks, br)
	}
	for k, v := range root.Power {
		i, err := strconv.Atoi(k)
		if err != nil {
			return portal.Dump{}, fmt.Errorf("power key %q: %w", k, err)
		}
		d.Power[i] = int(v)
	}
	return d, nil
}

func decodePortal(pt portalTag) (portal.Portal, error) {
	comps := make([]portal.Component, 0, len(pt.Address))
	for _, c := range pt.Address {
		comps = append(comps, portal.Component{ID: portal.BlockID(c.ID), Count: int(c.Count)})
	}
	addr, err := portal.AddressFromComponents(comps)
	if err != nil {
		return portal.Portal{}, err
	}
	axis, ok := portal.ParseAxis(pt.Axis)
	if !ok {
		return portal.Portal{}, fmt.Errorf("bad axis %q", pt.Axis)
	}
	p := portal.Portal{Dimension: pt.Dimension, Address: addr, Axis: axis}
	for _, c := range []struct {
		tag cornerTag
		out *portal.Corner
	}{
		{pt.Corner1, &p.Corner1},
		{pt.Corner2, &p.Corner2},
		{pt.Corner3, &p.Corner3},
		{pt.Corner4, &p.Corner4},
	} {
		if *c.out, err = decodeCorner(c.tag); err != nil {
			return portal.Portal{}, err
		}
	}
	return p, nil
}

func encodeCorner(c portal.Corner) cornerTag {
	return cornerTag{
		Pos:     encodePos(c.Pos),
		FacingA: portal.FaceName(c.FacingA),
		FacingB: portal.FaceName(c.FacingB),
	}
}

func decodeCorner(ct cornerTag) (portal.Corner, error) {
	pos, err := decodePos(ct.Pos)
	if err != nil {
		return portal.Corner{}, err
	}
	a, okA := portal.ParseFace(ct.FacingA)
	b, okB := portal.ParseFace(ct.FacingB)
	if !okA || !okB {
		return portal.Corner{}, fmt.Errorf("bad corner facing %q/%q", ct.FacingA, ct.FacingB)
	}
	return portal.NewCorner(pos, a, b), nil
}

func encodePos(p cube.Pos) []int32 {
	return []int32{int32(p.X()), int32(p.Y()), int32(p.Z())}
}

func decodePos(v []int32) (cube.Pos, error) {
	if len(v) != 3 {
		return cube.Pos{}, fmt.Errorf("position needs 3 ints, got %d", len(v))
	}
	return cube.Pos{int(v[0]), int(v[1]), int(v[2])}, nil
}
