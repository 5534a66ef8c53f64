package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelgate.ai/internal/sim/gateway"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-2006-01-02-15.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.curHour = ""
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// EventLogger writes gateway events to <sessionDir>/events. It implements
// gateway.Sink; write failures are counted and logged, never returned.
type EventLogger struct {
	w      *JSONLZstdWriter
	logger *stdlog.Logger
	failed atomic.Uint64
}

func NewEventLogger(sessionDir string, logger *stdlog.Logger) *EventLogger {
	return &EventLogger{
		w:      NewJSONLZstdWriter(filepath.Join(sessionDir, "events"), "events"),
		logger: logger,
	}
}

func (l *EventLogger) Emit(e gateway.Event) {
	if err := l.w.Write(e); err != nil {
		if l.failed.Add(1) == 1 && l.logger != nil {
			l.logger.Printf("event log: %v", err)
		}
	}
}

// Failed counts events that could not be written.
func (l *EventLogger) Failed() uint64 { return l.failed.Load() }

func (l *EventLogger) Close() error { return l.w.Close() }

// EventFilter selects events read back by ReadEvents. Zero fields match
// everything; UntilTick 0 means no upper bound.
type EventFilter struct {
	SinceTick uint64
	UntilTick uint64
	Kinds     []gateway.Kind
	Dimension string
}

func (f EventFilter) match(e gateway.Event) bool {
	if e.Tick < f.SinceTick || (f.UntilTick != 0 && e.Tick > f.UntilTick) {
		return false
	}
	if f.Dimension != "" && e.Dimension != f.Dimension {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// ReadEvents reads every closed event file under <sessionDir>/events in
// file name order.
func ReadEvents(sessionDir string, f EventFilter) ([]gateway.Event, error) {
	dir := filepath.Join(sessionDir, "events")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []gateway.Event
	for _, name := range names {
		evs, err := readFile(filepath.Join(dir, name), f)
		if err != nil {
			return nil, err
		}
		out = append(out, evs...)
	}
	return out, nil
}

func readFile(path string, f EventFilter) ([]gateway.Event, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec, err := zstd.NewReader(fh)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []gateway.Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e gateway.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}
