package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"

	"voxelgate.ai/internal/sim/gateway"
)

func TestEventLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir, nil)
	l.Emit(gateway.Event{Tick: 1, Session: "main", Kind: gateway.KindActivate, Dimension: "overworld", Pos: cube.Pos{4, 0, 0}, Address: "2xminecraft:dirt, 2xminecraft:stone"})
	l.Emit(gateway.Event{Tick: 5, Session: "main", Kind: gateway.KindTeleport, Dimension: "nether", Pos: cube.Pos{2, 1, 1}, Detail: map[string]any{"ok": true}})
	l.Emit(gateway.Event{Tick: 9, Session: "main", Kind: gateway.KindDeactivate, Dimension: "overworld"})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if l.Failed() != 0 {
		t.Fatalf("failed writes: %d", l.Failed())
	}

	all, err := ReadEvents(dir, EventFilter{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events", len(all))
	}
	if all[0].Pos != (cube.Pos{4, 0, 0}) || all[0].Address == "" {
		t.Fatalf("first event: %+v", all[0])
	}
	if ok, _ := all[1].Detail["ok"].(bool); !ok {
		t.Fatalf("detail: %+v", all[1].Detail)
	}

	got, err := ReadEvents(dir, EventFilter{SinceTick: 2, Dimension: "overworld"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Kind != gateway.KindDeactivate {
		t.Fatalf("filtered: %+v", got)
	}

	got, err = ReadEvents(dir, EventFilter{UntilTick: 5, Kinds: []gateway.Kind{gateway.KindTeleport}})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Tick != 5 {
		t.Fatalf("filtered: %+v", got)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(gateway.Event{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(gateway.Event{Tick: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"events-2026-03-01-10.jsonl.zst", "events-2026-03-01-11.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestReadEventsMissingDir(t *testing.T) {
	if _, err := ReadEvents(t.TempDir(), EventFilter{}); err == nil {
		t.Fatalf("expected error for missing events dir")
	}
}
