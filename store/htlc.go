package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowswap/flowswap-engine/swap"
)

// TrackedHTLCRecord is the on-disk shape of one watcher-tracked HTLC,
// keyed by swap ID so a restart can rebuild the watcher's registry
// without re-deriving which leg is under observation.
type TrackedHTLCRecord struct {
	SwapID      string            `json:"swap_id"`
	Ref         swap.HTLCRef      `json:"ref"`
	Hashlocks   swap.HashlockTriple `json:"hashlocks"`
	CounterRefs []swap.HTLCRef    `json:"counter_refs"`
}

func (s *Store) htlcPath(swapID string) string {
	return filepath.Join(s.root, htlcsDir, swapID+".json")
}

// SaveTrackedHTLC persists a watcher registration so it survives a
// restart.
func (s *Store) SaveTrackedHTLC(rec TrackedHTLCRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWriteJSON(s.htlcPath(rec.SwapID), rec)
}

// RemoveTrackedHTLC deletes a tracked-HTLC record once its swap
// reaches a terminal state.
func (s *Store) RemoveTrackedHTLC(swapID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.htlcPath(swapID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tracked htlc %s: %w", swapID, err)
	}
	return nil
}

// LoadTrackedHTLCs returns every persisted tracked-HTLC record, for
// rebuilding the watcher's registry on startup.
func (s *Store) LoadTrackedHTLCs() ([]TrackedHTLCRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, htlcsDir))
	if err != nil {
		return nil, fmt.Errorf("list tracked htlcs directory: %w", err)
	}

	var out []TrackedHTLCRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, htlcsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var rec TrackedHTLCRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Name(), err)
		}
		out = append(out, rec)
	}
	return out, nil
}
