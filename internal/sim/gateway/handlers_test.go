package gateway

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
	"voxelgate.ai/internal/sim/tuning"
)

func (f *fixture) spawn(t *testing.T, e memworld.Entity) memworld.Entity {
	t.Helper()
	out, err := f.u.Spawn(e)
	require.NoError(t, err)
	return out
}

func (f *fixture) charge(p portal.Portal, n int) {
	f.s.reg.AddPower(p, n)
	if d, ok := f.u.Dimension(p.Dimension); ok {
		f.s.reg.UpdateGauges(d, p)
	}
	f.s.settle()
}

func TestPlayerTeleportWaitsForDelay(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	f.charge(a, 5)
	player := f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	queued := f.rec.of(KindTeleportQueued)
	require.Len(t, queued, 1)
	assert.Equal(t, "nether", queued[0].Dimension)
	assert.Equal(t, cube.Pos{2, 1, 1}, queued[0].Pos)
	assert.Equal(t, 4, f.s.reg.Power(a))
	assert.Equal(t, 60, f.s.cooldownLeft(player.ID))

	f.steps(10)
	e, _ := f.u.Entity(player.ID)
	require.Equal(t, "overworld", e.Dimension, "tick 11 is not past created+delay")
	require.Len(t, f.rec.of(KindTeleportQueued), 1, "cooldown blocks a second request")

	f.steps(1)
	e, _ = f.u.Entity(player.ID)
	require.Equal(t, "nether", e.Dimension)
	assert.Equal(t, cube.Pos{2, 1, 1}, e.Pos)
	assert.Equal(t, cube.FaceSouth, e.Facing())
	assert.Equal(t, player.ID, e.ID, "players keep their identity")
	assert.Equal(t, 60, f.s.cooldownLeft(player.ID))
	assert.Equal(t, 4, f.s.reg.Power(a), "charged once")

	tp := f.rec.of(KindTeleport)
	require.Len(t, tp, 1)
	assert.Equal(t, true, tp[0].Detail["ok"])
	assert.Equal(t, uint64(12), tp[0].Tick)
}

func TestNoPowerNoTeleportNoCooldown(t *testing.T) {
	f := newFixture(t, options{})
	f.pair(t)
	player := f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(3)
	assert.Empty(t, f.rec.of(KindTeleportQueued))
	assert.Zero(t, f.s.cooldownLeft(player.ID))
	assert.Zero(t, f.s.queue.Len())
}

func TestZeroCostNeedsNoPower(t *testing.T) {
	f := newFixture(t, options{tune: func(tn *tuning.Tuning) { tn.PowerCost = 0 }})
	f.pair(t)
	f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})
	f.steps(1)
	assert.Len(t, f.rec.of(KindTeleportQueued), 1)
}

func TestCreativePlayerIsNotCharged(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Creative: true, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	require.Len(t, f.rec.of(KindTeleportQueued), 1)
	assert.Zero(t, f.s.reg.Power(a))
}

func TestLonePortalDoesNothing(t *testing.T) {
	f := newFixture(t, options{})
	f.frame(t, "overworld", 0, 5, 5, sdSd)
	a := f.activate(t, "overworld", 0)
	f.charge(a, 5)
	player := f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(2)
	assert.Empty(t, f.rec.of(KindTeleportQueued))
	assert.Empty(t, f.rec.of(KindTeleport))
	assert.Equal(t, 5, f.s.reg.Power(a))
	assert.Zero(t, f.s.cooldownLeft(player.ID))
}

func TestBlockedDestinationKeepsPower(t *testing.T) {
	f := newFixture(t, options{})
	a, b := f.pair(t)
	f.charge(a, 5)
	nether := f.dim(t, "nether")
	// Fill both sides of the nether portal interior.
	for _, in := range b.PortalPositions() {
		for _, dz := range []int{-1, 1} {
			require.NoError(t, nether.Place(cube.Pos{in.X(), in.Y(), dz}, stone))
		}
	}
	f.s.settle()
	player := f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	miss := f.rec.of(KindTeleport)
	require.Len(t, miss, 1)
	assert.Equal(t, false, miss[0].Detail["ok"])
	assert.Equal(t, "no_destination", miss[0].Detail["reason"])
	assert.Equal(t, 5, f.s.reg.Power(a))
	assert.Equal(t, 60, f.s.cooldownLeft(player.ID), "a failed search still starts the cooldown")
}

func TestItemsChargeThePortal(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	item := f.spawn(t, memworld.Entity{Kind: memworld.KindItem, Item: pearl, Count: 70, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	assert.Equal(t, 64, f.s.reg.Power(a))
	left, ok := f.u.Entity(item.ID)
	require.True(t, ok)
	assert.Equal(t, 6, left.Count)
	assert.Zero(t, f.s.cooldownLeft(item.ID), "feeding does not start a cooldown")
	power := f.rec.of(KindPower)
	require.Len(t, power, 1)
	assert.Equal(t, 64, power[0].Detail["added"])

	// The portal is full now, so the rest of the stack travels.
	f.steps(1)
	_, ok = f.u.Entity(item.ID)
	assert.False(t, ok, "crossing dimensions recreates the item")
	assert.Equal(t, 63, f.s.reg.Power(a))
	tp := f.rec.of(KindTeleport)
	require.Len(t, tp, 1)
	assert.Equal(t, "nether", tp[0].Dimension)
	assert.Equal(t, item.ID.String(), tp[0].Detail["previous_id"])

	moved, err := uuid.Parse(tp[0].Entity)
	require.NoError(t, err)
	e, ok := f.u.Entity(moved)
	require.True(t, ok)
	assert.Equal(t, 6, e.Count)
	assert.Equal(t, 300, f.s.cooldownLeft(moved))
}

func TestSmallStackIsConsumed(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	item := f.spawn(t, memworld.Entity{Kind: memworld.KindItem, Item: pearl, Count: 3, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	assert.Equal(t, 3, f.s.reg.Power(a))
	_, ok := f.u.Entity(item.ID)
	assert.False(t, ok)
}

func TestOtherItemsTravelImmediately(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	f.charge(a, 1)
	item := f.spawn(t, memworld.Entity{Kind: memworld.KindItem, Item: stick, Count: 1, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	_, ok := f.u.Entity(item.ID)
	assert.False(t, ok)
	assert.Zero(t, f.s.reg.Power(a))
	assert.Empty(t, f.rec.of(KindTeleportQueued), "only players are queued")
	require.Len(t, f.rec.of(KindTeleport), 1)
}

func TestSameDimensionMobKeepsIdentity(t *testing.T) {
	f := newFixture(t, options{})
	f.frame(t, "overworld", 0, 5, 5, sdSd)
	f.frame(t, "overworld", 10, 5, 5, sdSd)
	a := f.activate(t, "overworld", 0)
	f.activate(t, "overworld", 10)
	f.charge(a, 2)
	mob := f.spawn(t, memworld.Entity{Kind: memworld.KindMob, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(1)
	e, ok := f.u.Entity(mob.ID)
	require.True(t, ok)
	assert.Equal(t, cube.Pos{12, 1, 1}, e.Pos)
	assert.Equal(t, 300, f.s.cooldownLeft(mob.ID))
}

func TestMisconfiguredPowerSourceBlocksItems(t *testing.T) {
	items := catalogs.ItemCatalog{Defs: map[string]catalogs.ItemDef{stick: {ID: stick}}}
	f := newFixture(t, options{items: &items})
	a, _ := f.pair(t)
	f.charge(a, 10)
	item := f.spawn(t, memworld.Entity{Kind: memworld.KindItem, Item: stick, Count: 1, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})

	f.steps(2)
	_, ok := f.u.Entity(item.ID)
	assert.True(t, ok, "items neither charge nor travel")
	assert.Equal(t, 10, f.s.reg.Power(a))
}

func TestBrokenFrameDeactivates(t *testing.T) {
	f := newFixture(t, options{})
	a, b := f.pair(t)
	over := f.dim(t, "overworld")

	require.NoError(t, over.Place(cube.Pos{0, 2, 0}, ""))
	f.s.settle()

	assert.Empty(t, f.s.reg.PortalsAt("overworld", cube.Pos{2, 2, 0}))
	assert.Equal(t, []portal.Portal{b}, f.s.reg.PortalsWithAddress(a.Address))
	for _, pos := range a.PortalPositions() {
		assert.True(t, over.IsEmpty(pos), "marker at %v", pos)
	}
	gone := f.rec.of(KindDeactivate)
	require.Len(t, gone, 1)
	assert.Equal(t, "damaged", gone[0].Detail["reason"])
}

func TestChangedAddressDeactivates(t *testing.T) {
	f := newFixture(t, options{})
	f.pair(t)
	nether := f.dim(t, "nether")
	require.NoError(t, nether.Place(cube.Pos{0, 0, 0}, gold))
	f.s.settle()
	assert.Empty(t, f.s.reg.PortalsInDimension("nether"))
	assert.Len(t, f.s.reg.PortalsInDimension("overworld"), 1)
}

func TestRemovingAMarkerDeactivates(t *testing.T) {
	f := newFixture(t, options{})
	a, _ := f.pair(t)
	over := f.dim(t, "overworld")
	require.NoError(t, over.Place(cube.Pos{3, 3, 0}, ""))
	f.s.settle()
	assert.Empty(t, f.s.reg.PortalsAt("overworld", a.Anchor()))
}

func TestSneakingBreaksTheFrame(t *testing.T) {
	f := newFixture(t, options{})
	f.pair(t)
	over := f.dim(t, "overworld")

	res := f.s.interact(over, cube.Pos{4, 2, 0}, cube.FaceWest, true)
	require.True(t, res.Destroyed)
	f.s.settle()
	assert.True(t, over.IsEmpty(cube.Pos{4, 2, 0}))
	assert.Empty(t, f.s.reg.PortalsInDimension("overworld"))
}

func TestInteractOnActivePortalIsIgnored(t *testing.T) {
	f := newFixture(t, options{})
	f.pair(t)
	res := f.s.interact(f.dim(t, "overworld"), cube.Pos{1, 0, 0}, cube.FaceUp, false)
	assert.Equal(t, InteractResult{}, res)
	assert.Equal(t, 2, f.s.reg.Len())
}

func TestInteractIgnoresOtherBlocks(t *testing.T) {
	f := newFixture(t, options{})
	f.frame(t, "overworld", 0, 5, 5, sdSd)
	res := f.s.interact(f.dim(t, "overworld"), cube.Pos{0, 0, 0}, cube.FaceUp, true)
	assert.Equal(t, InteractResult{}, res, "corner blocks are not frame blocks")
	assert.Equal(t, stone, f.dim(t, "overworld").BlockTypeAt(cube.Pos{0, 0, 0}))
}

func TestDispenserActivates(t *testing.T) {
	f := newFixture(t, options{})
	f.frame(t, "overworld", 0, 5, 5, sdSd)
	over := f.dim(t, "overworld")
	require.NoError(t, over.Place(cube.Pos{1, 1, -1}, "minecraft:dispenser"))

	p, ok := f.s.dispense(over, cube.Pos{1, 1, -1}, cube.FaceSouth)
	require.True(t, ok)
	assert.Equal(t, cube.Z, p.Axis)
	assert.Equal(t, "dispenser", f.rec.of(KindActivate)[0].Detail["via"])
}

func TestGaugeFollowsPower(t *testing.T) {
	f := newFixture(t, options{})
	f.frame(t, "overworld", 0, 5, 5, sdSd)
	f.frame(t, "nether", 0, 5, 5, sdSd)
	over := f.dim(t, "overworld")
	gauge := cube.Pos{2, 0, 0}
	require.NoError(t, over.Place(gauge, portal.DefaultBlocks().Gauge))
	f.s.settle()

	a := f.activate(t, "overworld", 0)
	f.activate(t, "nether", 0)
	assert.Equal(t, []cube.Pos{gauge}, f.s.reg.Gauges(a))
	assert.Zero(t, over.Signal(gauge))

	f.charge(a, 32)
	assert.Equal(t, 8, over.Signal(gauge))

	f.spawn(t, memworld.Entity{Kind: memworld.KindPlayer, Dimension: "overworld", Pos: cube.Pos{2, 1, 0}})
	f.steps(1)
	assert.Equal(t, 31, f.s.reg.Power(a))
	assert.Equal(t, 7, over.Signal(gauge))

	require.NoError(t, over.Place(gauge, ""))
	f.s.settle()
	assert.Zero(t, over.Signal(gauge))
}

func TestCooldownsExpire(t *testing.T) {
	f := newFixture(t, options{})
	id := uuid.New()
	f.s.setCooldown(id, 0, 60)
	f.steps(59)
	assert.Equal(t, 1, f.s.cooldownLeft(id))
	f.steps(1)
	assert.Zero(t, f.s.cooldownLeft(id))
	f.steps(100)
	assert.NotContains(t, f.s.cooldowns, id)
}
