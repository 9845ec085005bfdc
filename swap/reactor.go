package swap

import (
	"context"
	"fmt"

	"github.com/flowswap/flowswap-engine/metrics"
)

// Watcher is the subset of the claim-reveal watcher's API needed to
// arm observation of a tracked HTLC: by the Orchestrator as soon as a
// swap's legs are known, and by the Reactor to re-arm every
// non-terminal swap after a crash.
type Watcher interface {
	Track(swapID string, ref HTLCRef, hashlocks HashlockTriple, counterRefs []HTLCRef) error
}

// Reactor drives startup recovery: load every non-terminal swap from
// the store and put it back under active observation. Its Resume
// method is built the same way htlc_timeout_resolver.go's Resolve is —
// idempotent re-entry keyed off persisted state, not in-memory
// bookkeeping, so a crash mid-recovery just replays harmlessly on the
// next restart.
type Reactor struct {
	orch    *Orchestrator
	store   Store
	watcher Watcher
}

func NewReactor(orch *Orchestrator, store Store, watcher Watcher) *Reactor {
	return &Reactor{orch: orch, store: store, watcher: watcher}
}

// Resume re-arms watches after a restart: for every
// persisted swap not already in a terminal state, re-derive which
// ledger events are still outstanding and re-register a watch for
// them. It never assumes in-memory secrets survived the crash — only
// on-chain state and what the store persisted.
func (r *Reactor) Resume(ctx context.Context) error {
	open, err := r.store.LoadOpenSwaps()
	if err != nil {
		return fmt.Errorf("load open swaps: %w", err)
	}

	for _, s := range open {
		if s.State.IsTerminal() {
			continue
		}

		r.orch.mu.Lock()
		if _, already := r.orch.swaps[s.ID]; !already {
			r.orch.swaps[s.ID] = s
			metrics.SwapsByState.WithLabelValues(s.State.String()).Inc()
		}
		r.orch.mu.Unlock()

		if err := r.resumeOne(ctx, s); err != nil {
			log.Errorf("resume swap %s: %v", s.ID, err)
			continue
		}
	}
	return nil
}

func (r *Reactor) resumeOne(ctx context.Context, s *Swap) error {
	switch s.State {
	case AwaitingDeposit, DepositSeen, DepositConfirmed:
		leg := s.BTCLeg
		if s.Direction == Reverse {
			leg = s.EVMLegOrM1()
		}
		if leg == nil {
			return nil
		}
		return r.watcher.Track(s.ID, *leg, s.Hashlocks, nil)

	case CounterLocked:
		firstLeg, counterLegs := s.firstAndCounterLegs()
		if firstLeg == nil {
			return nil
		}
		return r.watcher.Track(s.ID, *firstLeg, s.Hashlocks, counterLegs)

	case ClaimedDownstream, Completing:
		if s.Secrets == nil {
			// The persisted record carries no secrets; the watcher
			// must re-extract them from the chain before propagation can
			// resume. Re-arming the watch is the same call as above.
			firstLeg, counterLegs := s.firstAndCounterLegs()
			if firstLeg == nil {
				return nil
			}
			return r.watcher.Track(s.ID, *firstLeg, s.Hashlocks, counterLegs)
		}
		return r.orch.propagateClaim(ctx, s)

	default:
		return nil
	}
}

// EVMLegOrM1 returns the EVM leg if present, else the M1 leg; used by
// reverse-direction recovery where the user's deposit is the EVM leg.
func (s *Swap) EVMLegOrM1() *HTLCRef {
	if s.EVMLeg != nil {
		return s.EVMLeg
	}
	return s.M1Leg
}

// firstAndCounterLegs identifies which leg is expected to be claimed
// first (the one whose claim reveals the secrets) and which leg(s)
// should receive propagated claims, based on direction. The M1 leg is
// always a propagation target, never a reveal source: its claim RPC
// takes the three secrets as plaintext parameters, so it cannot be the
// ledger a third-party watcher learns them from.
func (s *Swap) firstAndCounterLegs() (first *HTLCRef, counters []HTLCRef) {
	switch s.Direction {
	case Forward:
		first = s.BTCLeg
	case Reverse:
		first = s.EVMLeg
	default:
		return nil, nil
	}
	for _, ref := range []*HTLCRef{s.BTCLeg, s.M1Leg, s.EVMLeg} {
		if ref != nil && ref != first {
			counters = append(counters, *ref)
		}
	}
	return first, counters
}
