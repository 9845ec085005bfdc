package swap

import (
	"sync"

	"github.com/flowswap/flowswap-engine/swaperr"
)

// SessionLimits enforces the per-caller-token concurrent-swap ceiling
// and per-asset minimums. It is a pure in-memory counter. The
// orchestrator calls Reserve and Release outside the lock it uses for
// swap state, so SessionLimits guards itself with its own mutex.
type SessionLimits struct {
	mu              sync.Mutex
	maxConcurrent   int
	minAmountByAsset map[string]int64
	active          map[string]int // caller token -> open swap count
}

func NewSessionLimits(maxConcurrent int, minAmountByAsset map[string]int64) *SessionLimits {
	if minAmountByAsset == nil {
		minAmountByAsset = map[string]int64{}
	}
	return &SessionLimits{
		maxConcurrent:    maxConcurrent,
		minAmountByAsset: minAmountByAsset,
		active:           make(map[string]int),
	}
}

// Reserve checks the caller token's concurrent-swap count and the
// asset minimum, and if both pass, books a slot. Callers must pair a
// successful Reserve with Release once the swap reaches a terminal
// state.
func (l *SessionLimits) Reserve(callerToken, asset string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if min, ok := l.minAmountByAsset[asset]; ok && amount < min {
		return swaperr.ErrBelowMinAmount
	}
	if l.active[callerToken] >= l.maxConcurrent {
		return swaperr.ErrLimitExceeded
	}
	l.active[callerToken]++
	return nil
}

// Release frees a previously reserved slot. Safe to call more than
// once defensively; it never drives a counter negative.
func (l *SessionLimits) Release(callerToken string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active[callerToken] > 0 {
		l.active[callerToken]--
	}
}
