package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "voxelgate.ai/internal/persistence/log"
	"voxelgate.ai/internal/persistence/kvstore"
	"voxelgate.ai/internal/sim/gateway"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "convert":
			convertCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "portals":
			portalsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the sessions found in the file store and, when present, the
// badger store.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	seen := map[string][]string{}
	entries, err := os.ReadDir(filepath.Join(*dataDir, "sessions"))
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(*dataDir, "sessions", e.Name(), "gateways.nbt.zst")); err == nil {
			seen[e.Name()] = append(seen[e.Name()], "file")
		}
	}

	kvDir := filepath.Join(*dataDir, "kv")
	if _, err := os.Stat(kvDir); err == nil {
		st, err := kvstore.Open(kvDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open badger:", err)
			os.Exit(1)
		}
		ids, err := st.Sessions(context.Background())
		_ = st.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "badger sessions:", err)
			os.Exit(1)
		}
		for _, id := range ids {
			seen[id] = append(seen[id], "badger")
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s\t%s\n", id, strings.Join(seen[id], ","))
	}
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	session := fs.String("session", "main", "session id")
	since := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	until := fs.Uint64("to_tick", 0, "last tick (inclusive, 0 = no limit)")
	kinds := fs.String("kinds", "", "comma separated event kinds")
	dim := fs.String("dimension", "", "dimension filter")
	_ = fs.Parse(args)

	f := persistlog.EventFilter{SinceTick: *since, UntilTick: *until, Dimension: *dim}
	if *kinds != "" {
		for _, k := range strings.Split(*kinds, ",") {
			f.Kinds = append(f.Kinds, gateway.Kind(strings.ToUpper(strings.TrimSpace(k))))
		}
	}
	evs, err := persistlog.ReadEvents(filepath.Join(*dataDir, "sessions", *session), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range evs {
		_ = enc.Encode(e)
	}
}
