package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"voxelgate.ai/internal/persistence/indexdb"
	"voxelgate.ai/internal/persistence/kvstore"
	"voxelgate.ai/internal/persistence/snapshot"
	"voxelgate.ai/internal/persistence/tagtree"
)

// readBlob loads the stored registry of session from backend "file" or
// "badger" together with the tick it was saved at.
func readBlob(ctx context.Context, dataDir, backend, session string) ([]byte, uint64, error) {
	switch backend {
	case "file":
		h, blob, err := snapshot.Read(snapshot.NewFileStore(dataDir).Path(session))
		return blob, h.Tick, err
	case "badger":
		st, err := kvstore.Open(filepath.Join(dataDir, "kv"))
		if err != nil {
			return nil, 0, err
		}
		defer st.Close()
		blob, err := st.Load(ctx, session)
		if err != nil {
			return nil, 0, err
		}
		tick, err := st.Tick(ctx, session)
		return blob, tick, err
	default:
		return nil, 0, fmt.Errorf("unknown backend %q", backend)
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	session := fs.String("session", "main", "session id")
	backend := fs.String("backend", "file", "store backend: file|badger")
	_ = fs.Parse(args)

	ctx := context.Background()
	blob, tick, err := readBlob(ctx, *dataDir, *backend, *session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	d, err := tagtree.Decode(blob)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("session=%s tick=%d portals=%d indexed_blocks=%d bytes=%d\n", *session, tick, len(d.Portals), len(d.Blocks), len(blob))
	enc := json.NewEncoder(os.Stdout)
	for _, row := range indexdb.Rows(*session, tick, d) {
		_ = enc.Encode(row)
	}
}

// convertCmd copies a session between the file and badger stores.
func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	session := fs.String("session", "main", "session id")
	from := fs.String("from", "file", "source backend: file|badger")
	to := fs.String("to", "badger", "target backend: file|badger")
	_ = fs.Parse(args)

	if *from == *to {
		fmt.Fprintln(os.Stderr, "-from and -to must differ")
		os.Exit(2)
	}
	ctx := context.Background()
	blob, tick, err := readBlob(ctx, *dataDir, *from, *session)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	// Refuse to copy something the server could not load.
	if _, err := tagtree.Decode(blob); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}

	switch *to {
	case "file":
		err = snapshot.NewFileStore(*dataDir).Save(ctx, *session, tick, blob)
	case "badger":
		var st *kvstore.Store
		st, err = kvstore.Open(filepath.Join(*dataDir, "kv"))
		if err == nil {
			err = st.Save(ctx, *session, tick, blob)
			if cerr := st.Close(); err == nil {
				err = cerr
			}
		}
	default:
		err = fmt.Errorf("unknown backend %q", *to)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
	fmt.Printf("convert ok: session=%s tick=%d %s -> %s bytes=%d\n", *session, tick, *from, *to, len(blob))
}
