package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	persistlog "voxelgate.ai/internal/persistence/log"
	"voxelgate.ai/internal/metrics"
	"voxelgate.ai/internal/protocol"
	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/gateway"
	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/teleport"
	"voxelgate.ai/internal/sim/tuning"
	"voxelgate.ai/internal/transport/admin"
	"voxelgate.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		sessionID  = flag.String("session", "main", "session id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite portal directory")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	// Runs after every other deferred close.
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	sessionDir := filepath.Join(*dataDir, "sessions", *sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	u, err := memworld.New(cats.Blocks, tune.Dimensions)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	store, err := openStore(*dataDir, tune.Storage.Backend)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	// Optional read model; the store stays authoritative.
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	eventLog := persistlog.NewEventLogger(sessionDir, log.New(os.Stdout, "[events] ", log.LstdFlags|log.Lmicroseconds))
	defer eventLog.Close()

	var sess *gateway.Session
	hub := ws.NewHub(func() protocol.WelcomeMsg {
		return welcome(sess, u, cats, tune)
	}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))

	exp := metrics.New()
	sinks := gateway.Sinks{eventLog, hub, exp}

	deps := gateway.Deps{
		World:    u,
		Items:    cats.Items,
		Queue:    teleport.NewQueue(0),
		Sessions: gateway.NewDirectory(),
		Store:    store,
		Sink:     sinks,
		Logger:   log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds),
	}
	if idx != nil {
		deps.Index = idx
	}
	sess, err = gateway.New(gateway.Config{ID: *sessionID, Tuning: tune}, deps)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	err = sess.Load(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Fatalf("load session: %v", err)
	}
	logger.Printf("session=%s portals=%d backend=%s", *sessionID, sess.Registry().Len(), tune.Storage.Backend)

	exp.RegisterSession(sess)
	registerMetrics(exp, hub, eventLog, idx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", exp.Handler())
	mux.HandleFunc("/v1/events", hub.Handler())

	adm := admin.NewServer(sess, log.New(os.Stdout, "[admin] ", log.LstdFlags|log.Lmicroseconds))
	adm.LoopbackOnly = !envBool("VG_ADMIN_REMOTE", false)
	adm.Register(mux)

	if envBool("VG_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sess.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ln, err := net.Listen("tcp", *addr)
		if err != nil {
			return err
		}
		logger.Printf("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
		exitCode = 1
		return
	}
	logger.Printf("stopped at tick %d", sess.CurrentTick())
}

func registerMetrics(exp *metrics.Exporter, hub *ws.Hub, eventLog *persistlog.EventLogger, idx runtimeIndex) {
	exp.Gauge("ws_clients", "Connected event stream clients.", func() float64 { return float64(hub.Clients()) })
	exp.Counter("ws_dropped_total", "Events evicted from slow client queues.", func() float64 { return float64(hub.Dropped()) })
	exp.Counter("event_log_failed_total", "Events that could not be written to the audit log.", func() float64 { return float64(eventLog.Failed()) })
	if idx != nil {
		exp.Gauge("index_queue_depth", "Pending portal directory writes.", func() float64 { return float64(idx.Stats().QueueDepth) })
		exp.Counter("index_dropped_total", "Portal directory writes dropped.", func() float64 { return float64(idx.Stats().DropTotal) })
	}
}

func welcome(sess *gateway.Session, u *memworld.Universe, cats *catalogs.Catalogs, tune tuning.Tuning) protocol.WelcomeMsg {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	m := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Dimensions:      u.Dimensions(),
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.PaletteDigest{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
			ItemsDigest:  cats.Items.Digest,
			TuningDigest: hex.EncodeToString(sum[:]),
		},
	}
	if sess != nil {
		m.Session = sess.ID()
		m.Tick = sess.CurrentTick()
	}
	return m
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
