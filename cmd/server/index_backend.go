package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxelgate.ai/internal/persistence/indexdb"
	"voxelgate.ai/internal/persistence/kvstore"
	"voxelgate.ai/internal/persistence/snapshot"
	"voxelgate.ai/internal/sim/catalogs"
	"voxelgate.ai/internal/sim/gateway"
	"voxelgate.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	gateway.Indexer
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VG_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "portals.sqlite")
		logger.Printf("index backend: sqlite %s", dbPath)
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported VG_INDEX_BACKEND: %s", backend)
	}
}

// openStore picks the registry store named by storage.backend.
func openStore(dataDir, backend string) (gateway.Store, error) {
	switch backend {
	case tuning.BackendFile:
		return snapshot.NewFileStore(dataDir), nil
	case tuning.BackendBadger:
		return kvstore.Open(filepath.Join(dataDir, "kv"))
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
