// Package store is the persistence layer for swap records and tracked
// HTLCs: one JSON file per object under a directory tree, written with
// write-temp-then-rename so a crash mid-write never leaves a partial
// file behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowswap/flowswap-engine/swap"
)

const (
	swapsDir    = "swaps"
	htlcsDir    = "tracked_htlcs"
	filePerm    = 0600
	dirPerm     = 0700
)

// Store is the on-disk root for one daemon instance's persisted state:
// per-swap JSON, per-tracked-HTLC JSON, and the LP's identity file.
// One Store is opened per process, matching channeldb's single-DB-per-
// daemon shape, scaled down from a bolt database to flat JSON files
// because the on-disk format here is a plain JSON directory tree, not
// a key/value store.
type Store struct {
	mu   sync.Mutex
	root string
}

// Open ensures the store's directory tree exists and returns a handle
// to it.
func Open(root string) (*Store, error) {
	for _, sub := range []string{"", swapsDir, htlcsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), dirPerm); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", sub, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) swapPath(id string) string {
	return filepath.Join(s.root, swapsDir, id+".json")
}

// atomicWriteJSON marshals v and writes it to path via a temp file in
// the same directory followed by an atomic rename, so a reader never
// observes a partially-written file. Key material written through this
// path (none currently; swap/tracked-HTLC records carry no private
// keys) would land with the same 0600 permission the core keeps for
// key files
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}
	return nil
}

// SaveSwap persists s, overwriting any prior version. Satisfies
// swap.Store.
func (s *Store) SaveSwap(sw *swap.Swap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWriteJSON(s.swapPath(sw.ID), sw)
}

// LoadSwap reads a single persisted swap by id.
func (s *Store) LoadSwap(id string) (*swap.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.swapPath(id))
	if err != nil {
		return nil, fmt.Errorf("read swap %s: %w", id, err)
	}
	var sw swap.Swap
	if err := json.Unmarshal(data, &sw); err != nil {
		return nil, fmt.Errorf("unmarshal swap %s: %w", id, err)
	}
	return &sw, nil
}

// LoadOpenSwaps scans the swaps directory and returns every persisted
// swap not already in a terminal state, for Reactor.Resume. Satisfies
// swap.Store.
func (s *Store) LoadOpenSwaps() ([]*swap.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, swapsDir))
	if err != nil {
		return nil, fmt.Errorf("list swaps directory: %w", err)
	}

	var open []*swap.Swap
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, swapsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var sw swap.Swap
		if err := json.Unmarshal(data, &sw); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Name(), err)
		}
		if !sw.State.IsTerminal() {
			open = append(open, &sw)
		}
	}
	return open, nil
}
