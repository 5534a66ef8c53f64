package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// Header is the JSON line in front of the compressed registry blob.
type Header struct {
	Version int    `json:"version"`
	Session string `json:"session"`
	Tick    uint64 `json:"tick"`
	Codec   string `json:"codec"`
	Bytes   int    `json:"bytes"`
	SavedAt string `json:"saved_at"`
}

// Write stores blob under path: a zstd stream holding the header line
// followed by the raw blob. The file is written next to path and renamed
// into place.
func Write(path string, h Header, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeTo(tmp, h, blob); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeTo(f *os.File, h Header, blob []byte) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	h.Version = Version
	h.Bytes = len(blob)
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(blob); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read returns the header and blob stored at path.
func Read(path string) (Header, []byte, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("snapshot header: %w", err)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("snapshot header: unsupported version %d", h.Version)
	}
	blob, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("snapshot body: %w", err)
	}
	if len(blob) != h.Bytes {
		return h, nil, fmt.Errorf("snapshot body: got %d bytes, header says %d", len(blob), h.Bytes)
	}
	return h, blob, nil
}

// FileStore keeps one snapshot file per session under
// <dir>/sessions/<session>/gateways.nbt.zst.
type FileStore struct {
	dir string
}

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dir: dataDir}
}

func (s *FileStore) Path(session string) string {
	return filepath.Join(s.dir, "sessions", session, "gateways.nbt.zst")
}

// Load returns the stored blob. A missing snapshot is reported with an
// error wrapping fs.ErrNotExist.
func (s *FileStore) Load(ctx context.Context, session string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, blob, err := Read(s.Path(session))
	return blob, err
}

func (s *FileStore) Save(ctx context.Context, session string, tick uint64, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Write(s.Path(session), Header{
		Session: session,
		Tick:    tick,
		Codec:   "nbt-be",
		SavedAt: time.Now().UTC().Format(time.RFC3339),
	}, blob)
}

func (s *FileStore) Close() error { return nil }
