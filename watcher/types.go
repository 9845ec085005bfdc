package watcher

import (
	"sync"

	"github.com/flowswap/flowswap-engine/swap"
)

// TrackedHTLC is one address under observation, annotated with enough
// context to verify a spend and route the resulting reveal.
type TrackedHTLC struct {
	SwapID      string
	Ref         swap.HTLCRef
	Hashlocks   swap.HashlockTriple
	CounterRefs []swap.HTLCRef

	// lastCheckedHeight avoids re-scanning blocks already searched for a
	// spend on every poll cycle.
	lastCheckedHeight int64
}

// registry is the lock-guarded set of tracked HTLCs, shared by the
// polling loop and by Track/Untrack calls from the orchestrator or
// reactor. Per the protocol design, polling and registry mutation share one
// state lock and no critical section spans a suspension point (an RPC
// call), so the lock is held only around map access, never around an
// RPC round trip.
type registry struct {
	mu      sync.Mutex
	tracked map[string]*TrackedHTLC // keyed by swap ID
}

func newRegistry() *registry {
	return &registry{tracked: make(map[string]*TrackedHTLC)}
}

func (r *registry) put(t *TrackedHTLC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[t.SwapID] = t
}

func (r *registry) remove(swapID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracked, swapID)
}

func (r *registry) snapshot() []*TrackedHTLC {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TrackedHTLC, 0, len(r.tracked))
	for _, t := range r.tracked {
		out = append(out, t)
	}
	return out
}
