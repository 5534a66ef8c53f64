package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelgate.ai/internal/persistence/indexdb"
)

// dbCmd queries the portal directory: "portals" (default) or "saves".
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/portals.sqlite)")
	session := fs.String("session", "", "session filter")
	dim := fs.String("dimension", "", "dimension filter (portals)")
	addr := fs.String("address", "", "address filter, as stored (portals)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "portals"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "portals.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "portals":
		rows, err := r.Query(ctx, indexdb.Filter{Session: *session, Dimension: *dim, Address: *addr, Limit: *limit})
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, row := range rows {
			_ = enc.Encode(row)
		}
	case "saves":
		rows, err := r.Saves(ctx, *session, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, row := range rows {
			_ = enc.Encode(row)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (want portals|saves)\n", q)
		os.Exit(2)
	}
}
