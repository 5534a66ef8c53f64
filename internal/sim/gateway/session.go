package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math/rand"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxelgate.ai/internal/persistence/tagtree"
	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
	"voxelgate.ai/internal/sim/teleport"
	"voxelgate.ai/internal/sim/tuning"
)

var (
	ErrStopped    = errors.New("session stopped")
	ErrNoPortal   = errors.New("no portal at position")
	ErrAmbiguous  = errors.New("more than one portal at position")
	ErrNotRunning = errors.New("session not running")
)

var sessionIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Store persists the encoded registry of a session. A missing blob is
// reported with an error wrapping fs.ErrNotExist.
type Store interface {
	Load(ctx context.Context, session string) ([]byte, error)
	Save(ctx context.Context, session string, tick uint64, blob []byte) error
	Close() error
}

// Indexer receives a copy of the registry on every save. Implementations
// must not block.
type Indexer interface {
	Record(session string, tick uint64, d portal.Dump)
}

type Config struct {
	ID     string
	Tuning tuning.Tuning
}

type Deps struct {
	World *memworld.Universe
	Items catalogs.ItemCatalog

	// Queue may be shared between sessions; nil gets a private queue.
	Queue *teleport.Queue
	// Sessions tracks live sessions for the shared queue. Run adds the
	// session on start and removes it on exit.
	Sessions *Directory

	Store  Store
	Index  Indexer
	Sink   Sink
	Logger *log.Logger
}

type call struct {
	fn   func()
	done chan struct{}
}

type saveJob struct {
	tick uint64
	blob []byte
	dump portal.Dump
}

// Session owns one portal registry, the world it lives in, the cooldown
// table and the teleport tasks it created. All state is touched only by the
// goroutine running Run (or by StepOnce in tests).
type Session struct {
	cfg   Config
	log   *log.Logger
	world *memworld.Universe
	items catalogs.ItemCatalog
	reg   *portal.Registry
	queue *teleport.Queue
	dir   *Directory
	store Store
	index Indexer
	sink  Sink
	rng   *rand.Rand

	tick      atomic.Uint64
	cooldowns map[uuid.UUID]uint64
	lastSave  uint64
	warned    bool

	// saveFailed is set by the writer when a save did not reach the store.
	saveFailed atomic.Bool

	stats counters

	calls    chan call
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	metrics atomic.Value
}

func New(cfg Config, deps Deps) (*Session, error) {
	if !sessionIDRe.MatchString(cfg.ID) {
		return nil, fmt.Errorf("bad session id %q", cfg.ID)
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if deps.World == nil {
		return nil, errors.New("session needs a world")
	}
	blocks := deps.World.Blocks()
	for _, id := range []string{cfg.Tuning.Blocks.Frame, cfg.Tuning.Blocks.Gauge, cfg.Tuning.Blocks.Marker} {
		if _, ok := blocks.Index[id]; !ok {
			return nil, fmt.Errorf("block %q missing from the block catalog", id)
		}
	}
	for _, name := range cfg.Tuning.Dimensions {
		if _, ok := deps.World.Dimension(name); !ok {
			return nil, fmt.Errorf("dimension %q missing from the world", name)
		}
	}

	s := &Session{
		cfg:       cfg,
		log:       deps.Logger,
		world:     deps.World,
		items:     deps.Items,
		reg:       portal.NewRegistry(cfg.Tuning.PortalConfig()),
		queue:     deps.Queue,
		dir:       deps.Sessions,
		store:     deps.Store,
		index:     deps.Index,
		sink:      deps.Sink,
		rng:       rand.New(rand.NewSource(cfg.Tuning.Seed)),
		cooldowns: map[uuid.UUID]uint64{},
		calls:     make(chan call, 64),
		stop:      make(chan struct{}),
	}
	if s.log == nil {
		s.log = log.New(io.Discard, "", 0)
	}
	if s.queue == nil {
		s.queue = teleport.NewQueue(cfg.Tuning.PlayerTeleportationDelay)
	}
	s.checkPowerSource()
	return s, nil
}

func (s *Session) ID() string { return s.cfg.ID }

func (s *Session) CurrentTick() uint64 { return s.tick.Load() }

// Registry exposes the portal registry. Only safe from the loop goroutine
// or before Run.
func (s *Session) Registry() *portal.Registry { return s.reg }

// World exposes the session world. Same rules as Registry.
func (s *Session) World() *memworld.Universe { return s.world }

// checkPowerSource warns once when item feeding can never work.
func (s *Session) checkPowerSource() bool {
	t := s.cfg.Tuning
	if t.PowerCost <= 0 || t.PowerCapacity <= 0 {
		return true
	}
	if s.items.TagExists(t.PowerSource) {
		return true
	}
	if !s.warned {
		s.warned = true
		s.log.Printf("power source tag %q is not carried by any item; portals cannot be charged with items", t.PowerSource)
	}
	return false
}

// Load restores the registry from the store. Nothing stored yet is not an
// error. Must be called before Run.
func (s *Session) Load(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("load while running")
	}
	if s.store == nil {
		return nil
	}
	blob, err := s.store.Load(ctx, s.cfg.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.cfg.ID, err)
	}
	d, err := tagtree.Decode(blob)
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.cfg.ID, err)
	}
	if err := s.reg.Restore(d); err != nil {
		return fmt.Errorf("load session %s: %w", s.cfg.ID, err)
	}
	for _, p := range s.reg.All() {
		if w, ok := s.world.Dimension(p.Dimension); ok {
			s.reg.UpdateGauges(w, p)
		}
	}
	s.settle()
	s.reg.MarkClean()
	s.log.Printf("session %s: restored %d portals", s.cfg.ID, s.reg.Len())
	return nil
}

// Run drives the session until ctx is done or Stop is called. The registry
// is saved one last time on the way out.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer s.running.Store(false)
	if s.dir != nil {
		s.dir.Add(s.cfg.ID)
		defer s.dir.Remove(s.cfg.ID)
	}

	interval := time.Second / time.Duration(s.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	saves := make(chan saveJob, 1)
	var wg sync.WaitGroup
	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range saves {
				s.write(context.Background(), job)
			}
		}()
	}
	defer func() {
		s.Stop()
		close(saves)
		wg.Wait()
		if s.store != nil {
			s.write(context.Background(), s.snapshot())
		}
		s.failPending()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case c := <-s.calls:
			c.fn()
			s.settle()
			close(c.done)
		case <-ticker.C:
			s.step(saves)
		}
	}
}

func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// StepOnce advances one tick synchronously. Saves are written inline.
// Tests only; never call it while Run is active.
func (s *Session) StepOnce() {
	s.step(nil)
}

// do runs fn on the loop goroutine and waits for it. Calls queued when the
// loop exits still run before Run returns.
func (s *Session) do(ctx context.Context, fn func()) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	select {
	case <-s.stop:
		return ErrStopped
	default:
	}
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case s.calls <- c:
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failPending runs calls that were queued before the loop exited.
func (s *Session) failPending() {
	for {
		select {
		case c := <-s.calls:
			c.fn()
			close(c.done)
		default:
			return
		}
	}
}

func (s *Session) step(saves chan saveJob) {
	start := time.Now()
	tick := s.tick.Add(1)

	s.collide(tick)
	s.settle()

	rep := s.queue.Drain(teleport.Clock{Session: s.cfg.ID, Tick: tick}, s.dir, s.runTask)
	for _, t := range rep.Discarded {
		s.stats.discarded++
		s.emit(Event{
			Kind:      KindTeleportDiscarded,
			Dimension: t.Dimension,
			Pos:       t.Pos,
			Entity:    t.Entity.String(),
			Detail:    map[string]any{"reason": "session_gone", "owner": t.Session},
		})
	}
	s.settle()

	if tick%uint64(max(s.cfg.Tuning.TickRateHz, 1)) == 0 {
		s.expireCooldowns(tick)
	}
	if s.saveFailed.Swap(false) {
		s.reg.MarkDirty()
	}
	every := uint64(max(s.cfg.Tuning.Storage.SaveEveryTicks, 1))
	if s.store != nil && s.reg.Dirty() && tick-s.lastSave >= every {
		job := s.snapshot()
		s.lastSave = tick
		if saves == nil {
			s.write(context.Background(), job)
		} else {
			sendLatest(saves, job)
		}
	}
	s.publishMetrics(tick, time.Since(start))
}

// collide hands every entity standing in a marker cell to entityInside.
func (s *Session) collide(tick uint64) {
	marker := portal.BlockID(s.cfg.Tuning.Blocks.Marker)
	for _, snap := range s.world.Entities() {
		e, ok := s.world.Entity(snap.ID)
		if !ok {
			continue
		}
		d, ok := s.world.Dimension(e.Dimension)
		if !ok {
			continue
		}
		for _, cell := range e.Cells() {
			if d.BlockTypeAt(cell) == marker {
				s.entityInside(tick, e, cell)
				break
			}
		}
	}
}

// settle feeds queued block changes back into damage detection and
// recomputes requested gauge signals until the world is quiet.
func (s *Session) settle() {
	for round := 0; round < 16; round++ {
		changes := s.world.DrainChanges()
		refresh := s.world.DrainRefreshes()
		if len(changes) == 0 && len(refresh) == 0 {
			break
		}
		for _, c := range changes {
			s.blockChanged(c)
		}
		for _, loc := range refresh {
			if d, ok := s.world.Dimension(loc.Dimension); ok {
				d.SetSignal(loc.Pos, s.reg.SignalAt(loc.Dimension, loc.Pos))
			}
		}
	}
	for _, id := range s.world.DrainRemovals() {
		delete(s.cooldowns, id)
	}
}

func (s *Session) snapshot() saveJob {
	d := s.reg.Dump()
	blob, err := tagtree.Encode(d)
	if err != nil {
		s.log.Printf("session %s: encode: %v", s.cfg.ID, err)
		return saveJob{}
	}
	s.reg.MarkClean()
	return saveJob{tick: s.tick.Load(), blob: blob, dump: d}
}

func (s *Session) write(ctx context.Context, job saveJob) {
	if job.blob == nil {
		return
	}
	if err := s.store.Save(ctx, s.cfg.ID, job.tick, job.blob); err != nil {
		s.log.Printf("session %s: save tick %d: %v", s.cfg.ID, job.tick, err)
		s.saveFailed.Store(true)
		return
	}
	if s.index != nil {
		s.index.Record(s.cfg.ID, job.tick, job.dump)
	}
}

func (s *Session) emit(e Event) {
	if s.sink == nil {
		return
	}
	e.Session = s.cfg.ID
	if e.Tick == 0 {
		e.Tick = s.tick.Load()
	}
	s.sink.Emit(e)
}

func sendLatest(ch chan saveJob, job saveJob) {
	select {
	case ch <- job:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- job:
	default:
	}
}
