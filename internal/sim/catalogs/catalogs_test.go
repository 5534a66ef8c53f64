package catalogs

import (
	"path/filepath"
	"testing"
)

func TestLoadRepoCatalogs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Blocks.Palette[0] != Air || c.Blocks.Index[Air] != 0 {
		t.Fatalf("air must be palette id 0: %v", c.Blocks.Palette[:3])
	}
	for _, id := range []string{"voxelgate:portal_frame", "voxelgate:power_gauge", "voxelgate:portal"} {
		if _, ok := c.Blocks.Index[id]; !ok {
			t.Fatalf("missing %s", id)
		}
	}
	if c.Blocks.Defs["voxelgate:portal"].Solid {
		t.Fatalf("marker blocks are not solid")
	}
	if !c.Blocks.Defs["minecraft:chest"].Aux {
		t.Fatalf("chest carries block data")
	}
	if !c.Items.HasTag("minecraft:ender_pearl", "c:ender_pearls") {
		t.Fatalf("ender pearl tag missing")
	}
	if c.Items.HasTag("minecraft:stick", "c:ender_pearls") {
		t.Fatalf("stick is not a power source")
	}
	if !c.Items.TagExists("c:ender_pearls") || c.Items.TagExists("c:nothing") {
		t.Fatalf("TagExists")
	}
	if c.Blocks.DefsDigest == "" || c.Blocks.PaletteDigest == "" || c.Items.Digest == "" {
		t.Fatalf("digests not set")
	}
}

func TestNewBlockCatalogIsSorted(t *testing.T) {
	c, err := NewBlockCatalog([]BlockDef{{ID: "b:b", Solid: true}, {ID: "a:a"}, {ID: Air}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	want := []string{Air, "a:a", "b:b"}
	if len(c.Palette) != len(want) {
		t.Fatalf("palette: %v", c.Palette)
	}
	for i := range want {
		if c.Palette[i] != want[i] || c.Index[want[i]] != uint16(i) {
			t.Fatalf("palette: %v", c.Palette)
		}
	}

	if _, err := NewBlockCatalog([]BlockDef{{ID: ""}}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := NewBlockCatalog([]BlockDef{{ID: "Stone"}}); err == nil {
		t.Fatalf("expected error for id without namespace")
	}
}

func TestValidResourceID(t *testing.T) {
	good := []string{"c:ender_pearls", "minecraft:stone", "mod-x:blocks/frame.v2"}
	bad := []string{"", "stone", ":stone", "c:", "C:pearls", "c:ender pearls", "c/x:y"}
	for _, id := range good {
		if !ValidResourceID(id) {
			t.Fatalf("%q should be valid", id)
		}
	}
	for _, id := range bad {
		if ValidResourceID(id) {
			t.Fatalf("%q should be invalid", id)
		}
	}
}
