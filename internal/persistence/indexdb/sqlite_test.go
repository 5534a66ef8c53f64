package indexdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"

	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/portal"
	"voxelgate.ai/internal/sim/tuning"
)

func testPortal(dim string, x int) portal.Portal {
	return portal.Portal{
		Dimension: dim,
		Address:   portal.NewAddress("minecraft:stone", "minecraft:stone", "minecraft:dirt", "minecraft:dirt"),
		Axis:      cube.X,
		Corner1:   portal.NewCorner(cube.Pos{x, 0, 0}, cube.FaceUp, cube.FaceEast),
		Corner2:   portal.NewCorner(cube.Pos{x + 4, 0, 0}, cube.FaceUp, cube.FaceWest),
		Corner3:   portal.NewCorner(cube.Pos{x, 4, 0}, cube.FaceDown, cube.FaceEast),
		Corner4:   portal.NewCorner(cube.Pos{x + 4, 4, 0}, cube.FaceDown, cube.FaceWest),
	}
}

func testDump() portal.Dump {
	return portal.Dump{
		Portals: []portal.Portal{testPortal("overworld", 0), testPortal("nether", 10)},
		Blocks: []portal.BlockRefs{
			{Pos: cube.Pos{2, 0, -1}, IsGauge: true, Refs: []int{0}},
			{Pos: cube.Pos{2, 2, 0}, Refs: []int{0}},
		},
		Power: map[int]int{0: 12, 1: 0},
	}
}

func TestRecordReplacesSessionRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.Record("main", 10, testDump())

	d := testDump()
	d.Portals = d.Portals[:1]
	d.Power = map[int]int{0: 40}
	idx.Record("main", 20, d)
	idx.Record("other", 5, testDump())
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st := idx.Stats(); st.WriteTotal != 3 || st.DropTotal != 0 {
		t.Fatalf("stats: %+v", st)
	}
	// Records after close are ignored.
	idx.Record("main", 30, testDump())

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	rows, err := r.Query(ctx, Filter{Session: "main"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("main rows: %+v", rows)
	}
	got := rows[0]
	if got.Power != 40 || got.Tick != 20 || got.Axis != "x" || got.Dimension != "overworld" {
		t.Fatalf("row: %+v", got)
	}
	if got.Anchor != [3]int{0, 0, 0} || got.Corners[3] != [3]int{4, 4, 0} {
		t.Fatalf("geometry: %+v", got)
	}
	if len(got.Gauges) != 1 || got.Gauges[0] != [3]int{2, 0, -1} {
		t.Fatalf("gauges: %+v", got.Gauges)
	}

	rows, err = r.Query(ctx, Filter{Dimension: "nether"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].Session != "other" {
		t.Fatalf("nether rows: %+v", rows)
	}

	rows, err = r.Query(ctx, Filter{Address: testPortal("overworld", 0).Address.String(), Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("address rows: %+v", rows)
	}

	saves, err := r.Saves(ctx, "main", 0)
	if err != nil {
		t.Fatalf("saves: %v", err)
	}
	if len(saves) != 2 || saves[0].Tick != 20 || saves[0].Portals != 1 || saves[1].Tick != 10 {
		t.Fatalf("saves: %+v", saves)
	}
}

func TestRecordDropsWhenQueueFull(t *testing.T) {
	// No writer goroutine drains this index.
	idx := &SQLiteIndex{ch: make(chan req, 1)}
	idx.Record("main", 1, testDump())
	idx.Record("main", 2, testDump())
	if st := idx.Stats(); st.DropTotal != 1 || st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestUpsertCatalogs(t *testing.T) {
	cfg := t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg, "blocks.json"), []byte(`[{"id":"minecraft:stone","solid":true}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	cats, err := catalogs.Load(cfg)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	if err := idx.UpsertCatalogs(cfg, cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	// blocks_defs, blocks_palette, tuning; items.json is absent.
	if n != 3 {
		t.Fatalf("catalog rows: %d", n)
	}
}
