package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.zst")
	blob := bytes.Repeat([]byte{0x0a, 0x00, 0xff, '\n'}, 1000)
	if err := Write(path, Header{Session: "s1", Tick: 42, Codec: "nbt-be"}, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Version != Version || h.Session != "s1" || h.Tick != 42 || h.Bytes != len(blob) {
		t.Fatalf("header: %+v", h)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob mismatch")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	defer s.Close()

	if _, err := s.Load(ctx, "main"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
	if err := s.Save(ctx, "main", 7, []byte("one")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "main", 8, []byte("two")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "main")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("got %q", got)
	}
	if filepath.Base(s.Path("main")) != "gateways.nbt.zst" {
		t.Fatalf("path: %s", s.Path("main"))
	}
	h, _, err := Read(s.Path("main"))
	if err != nil || h.Tick != 8 {
		t.Fatalf("header: %+v %v", h, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Save(cancelled, "main", 9, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancel, got %v", err)
	}
}

func TestReadRejectsTruncatedBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	hb, _ := json.Marshal(Header{Version: Version, Session: "s", Bytes: 10})
	enc.Write(append(hb, '\n'))
	enc.Write([]byte("abc"))
	enc.Close()
	f.Close()

	if _, _, err := Read(path); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
