package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

const prefix = "gateways/"

// Store keeps registry blobs in badger under gateways/<session>, with the
// save tick under gateways/<session>#tick.
type Store struct {
	db *badger.DB
}

func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func blobKey(session string) []byte { return []byte(prefix + session) }
func tickKey(session string) []byte { return []byte(prefix + session + "#tick") }

// Load returns the stored blob. A missing session is reported with an error
// wrapping fs.ErrNotExist.
func (s *Store) Load(ctx context.Context, session string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(session))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s%s: %w", prefix, session, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", session, err)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, session string, tick uint64, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], tick)
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blobKey(session), blob); err != nil {
			return err
		}
		return txn.Set(tickKey(session), tb[:])
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", session, err)
	}
	return nil
}

// Tick returns the tick of the last save of session.
func (s *Store) Tick(ctx context.Context, session string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var tick uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tickKey(session))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("bad tick value length %d", len(v))
			}
			tick = binary.BigEndian.Uint64(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%s%s: %w", prefix, session, fs.ErrNotExist)
	}
	return tick, err
}

// Sessions lists the sessions with a stored blob.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := strings.TrimPrefix(string(it.Item().Key()), prefix)
			if strings.HasSuffix(key, "#tick") {
				continue
			}
			out = append(out, key)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (s *Store) Close() error { return s.db.Close() }
