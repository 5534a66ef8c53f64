package main

import (
	"context"
	"path/filepath"
	"testing"

	"voxelgate.ai/internal/persistence/kvstore"
	"voxelgate.ai/internal/persistence/snapshot"
	"voxelgate.ai/internal/persistence/tagtree"
	"voxelgate.ai/internal/sim/portal"
)

func TestReadBlobFromBothBackends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	blob, err := tagtree.Encode(portal.Dump{Power: map[int]int{}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := snapshot.NewFileStore(dir).Save(ctx, "main", 12, blob); err != nil {
		t.Fatalf("file save: %v", err)
	}
	st, err := kvstore.Open(filepath.Join(dir, "kv"))
	if err != nil {
		t.Fatalf("badger open: %v", err)
	}
	if err := st.Save(ctx, "main", 34, blob); err != nil {
		t.Fatalf("badger save: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("badger close: %v", err)
	}

	for backend, want := range map[string]uint64{"file": 12, "badger": 34} {
		got, tick, err := readBlob(ctx, dir, backend, "main")
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if tick != want || len(got) != len(blob) {
			t.Fatalf("%s: tick=%d bytes=%d", backend, tick, len(got))
		}
		if _, err := tagtree.Decode(got); err != nil {
			t.Fatalf("%s: decode: %v", backend, err)
		}
	}

	if _, _, err := readBlob(ctx, dir, "s3", "main"); err == nil {
		t.Fatalf("expected unknown backend rejected")
	}
	if _, _, err := readBlob(ctx, dir, "file", "other"); err == nil {
		t.Fatalf("expected missing session rejected")
	}
}
