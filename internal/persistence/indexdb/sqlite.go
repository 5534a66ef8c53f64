package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/portal"
	"voxelgate.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of saved registries. Writes go
// through a buffered channel and are dropped when the writer falls behind;
// the session store stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	drops  atomic.Uint64
	writes atomic.Uint64
}

type req struct {
	session string
	tick    uint64
	rows    []PortalRow
}

// PortalRow is one portal as stored in the directory.
type PortalRow struct {
	Session   string    `json:"session"`
	Handle    int       `json:"handle"`
	Dimension string    `json:"dimension"`
	Address   string    `json:"address"`
	Axis      string    `json:"axis"`
	Anchor    [3]int    `json:"anchor"`
	Corners   [4][3]int `json:"corners"`
	Power     int       `json:"power"`
	Gauges    [][3]int  `json:"gauges,omitempty"`
	Tick      uint64    `json:"tick"`
}

type Filter struct {
	Session   string
	Dimension string
	Address   string
	Limit     int
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	WriteTotal    uint64 `json:"write_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 256),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS portals (
			session TEXT NOT NULL,
			handle INTEGER NOT NULL,
			dimension TEXT NOT NULL,
			address TEXT NOT NULL,
			axis TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			power INTEGER NOT NULL,
			corners TEXT NOT NULL,
			gauges TEXT NOT NULL,
			tick INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (session, handle)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_portals_address ON portals(address, session);`,
		`CREATE INDEX IF NOT EXISTS idx_portals_dimension ON portals(session, dimension);`,
		`CREATE TABLE IF NOT EXISTS saves (
			session TEXT NOT NULL,
			tick INTEGER NOT NULL,
			portals INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (session, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Rows flattens a registry dump into directory rows. Handles are the
// positions in d.Portals.
func Rows(session string, tick uint64, d portal.Dump) []PortalRow {
	gauges := map[int][][3]int{}
	for _, b := range d.Blocks {
		if !b.IsGauge {
			continue
		}
		for _, ref := range b.Refs {
			gauges[ref] = append(gauges[ref], [3]int(b.Pos))
		}
	}
	rows := make([]PortalRow, 0, len(d.Portals))
	for i, p := range d.Portals {
		rows = append(rows, PortalRow{
			Session:   session,
			Handle:    i,
			Dimension: p.Dimension,
			Address:   p.Address.String(),
			Axis:      portal.AxisName(p.Axis),
			Anchor:    [3]int(p.Anchor()),
			Corners:   [4][3]int{[3]int(p.Corner1.Pos), [3]int(p.Corner2.Pos), [3]int(p.Corner3.Pos), [3]int(p.Corner4.Pos)},
			Power:     d.Power[i],
			Gauges:    gauges[i],
			Tick:      tick,
		})
	}
	return rows
}

// Record queues a dump for writing. It never blocks.
func (s *SQLiteIndex) Record(session string, tick uint64, d portal.Dump) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{session: session, tick: tick, rows: Rows(session, tick, d)}:
	default:
		s.drops.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.drops.Load(),
		WriteTotal:    s.writes.Load(),
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
		if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
			rows = append(rows, kv{name: "items_defs", digest: cats.Items.Digest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	for r := range s.ch {
		if err := s.replace(ctx, r); err != nil {
			s.drops.Add(1)
			continue
		}
		s.writes.Add(1)
	}
}

// replace swaps the rows of one session for the rows of a newer save.
func (s *SQLiteIndex) replace(ctx context.Context, r req) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM portals WHERE session=?`, r.session); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO portals(session,handle,dimension,address,axis,x,y,z,power,corners,gauges,tick,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer ins.Close()
	for _, row := range r.rows {
		corners, _ := json.Marshal(row.Corners)
		gauges, _ := json.Marshal(row.Gauges)
		if _, err := ins.ExecContext(ctx,
			row.Session,
			row.Handle,
			row.Dimension,
			row.Address,
			row.Axis,
			row.Anchor[0], row.Anchor[1], row.Anchor[2],
			row.Power,
			string(corners),
			string(gauges),
			int64(row.Tick),
			now,
		); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO saves(session,tick,portals,recorded_at) VALUES(?,?,?,?)`,
		r.session, int64(r.tick), len(r.rows), now); err != nil {
		return err
	}
	return tx.Commit()
}

// Query lists directory rows ordered by session, address and handle.
func (s *SQLiteIndex) Query(ctx context.Context, f Filter) ([]PortalRow, error) {
	return queryPortals(ctx, s.db, f)
}

func queryPortals(ctx context.Context, db *sql.DB, f Filter) ([]PortalRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Session != "" {
		where = append(where, "session=?")
		args = append(args, f.Session)
	}
	if f.Dimension != "" {
		where = append(where, "dimension=?")
		args = append(args, f.Dimension)
	}
	if f.Address != "" {
		where = append(where, "address=?")
		args = append(args, f.Address)
	}
	q := `SELECT session,handle,dimension,address,axis,x,y,z,power,corners,gauges,tick FROM portals`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY session, address, handle"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PortalRow
	for rows.Next() {
		var (
			r               PortalRow
			tick            int64
			corners, gauges string
		)
		if err := rows.Scan(&r.Session, &r.Handle, &r.Dimension, &r.Address, &r.Axis,
			&r.Anchor[0], &r.Anchor[1], &r.Anchor[2], &r.Power, &corners, &gauges, &tick); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(corners), &r.Corners); err != nil {
			return nil, fmt.Errorf("portal %s/%d corners: %w", r.Session, r.Handle, err)
		}
		if err := json.Unmarshal([]byte(gauges), &r.Gauges); err != nil {
			return nil, fmt.Errorf("portal %s/%d gauges: %w", r.Session, r.Handle, err)
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRow is one recorded save.
type SaveRow struct {
	Session    string `json:"session"`
	Tick       uint64 `json:"tick"`
	Portals    int    `json:"portals"`
	RecordedAt string `json:"recorded_at"`
}

// Saves lists the most recent saves, newest first.
func (s *SQLiteIndex) Saves(ctx context.Context, session string, limit int) ([]SaveRow, error) {
	return querySaves(ctx, s.db, session, limit)
}

func querySaves(ctx context.Context, db *sql.DB, session string, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT session,tick,portals,recorded_at FROM saves`
	var args []any
	if session != "" {
		q += ` WHERE session=?`
		args = append(args, session)
	}
	q += ` ORDER BY tick DESC, session LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaveRow
	for rows.Next() {
		var (
			r    SaveRow
			tick int64
		)
		if err := rows.Scan(&r.Session, &tick, &r.Portals, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reader opens an existing index read-only for offline queries.
type Reader struct{ db *sql.DB }

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Query(ctx context.Context, f Filter) ([]PortalRow, error) {
	return queryPortals(ctx, r.db, f)
}

func (r *Reader) Saves(ctx context.Context, session string, limit int) ([]SaveRow, error) {
	return querySaves(ctx, r.db, session, limit)
}

func (r *Reader) Close() error { return r.db.Close() }
