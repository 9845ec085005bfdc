package swap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowswap/flowswap-engine/metrics"
	"github.com/flowswap/flowswap-engine/swaperr"
	"github.com/lightningnetwork/lnd/clock"
)

// CompletingTimeout bounds how long the orchestrator will keep retrying
// a stuck leg claim before raising OperatorAlert instead of silently
// declaring the swap completed. The window starts when the swap enters
// claimed_downstream.
const CompletingTimeout = 10 * time.Minute

// LegClaimer is the narrow interface the orchestrator needs from each
// ledger adapter (btchtlc, m1rail, evmhtlc) to propagate a claim once
// secrets are known. Each adapter package exposes a concrete type that
// satisfies this by wrapping its RPC/contract client and the swap's
// stored HTLCRef.
type LegClaimer interface {
	ClaimLeg(ctx context.Context, ref *HTLCRef, secrets SecretTriple) error
}

// Store is the persistence contract the orchestrator depends on; the
// store package provides the concrete JSON-file-backed implementation.
type Store interface {
	SaveSwap(s *Swap) error
	LoadOpenSwaps() ([]*Swap, error)
}

// Orchestrator owns the in-memory swap table and drives the state
// machine. One Orchestrator exists per running daemon.
type Orchestrator struct {
	mu       sync.Mutex
	swaps    map[string]*Swap
	limits   *SessionLimits
	store    Store
	clock    clock.Clock
	claimers map[Ledger]LegClaimer
	watcher  Watcher
}

func NewOrchestrator(store Store, limits *SessionLimits, claimers map[Ledger]LegClaimer) *Orchestrator {
	return &Orchestrator{
		swaps:    make(map[string]*Swap),
		limits:   limits,
		store:    store,
		clock:    clock.NewDefaultClock(),
		claimers: claimers,
	}
}

// UseClock overrides the wall clock, for deterministic tests.
func (o *Orchestrator) UseClock(c clock.Clock) {
	o.clock = c
}

// SetWatcher wires the claim-reveal watcher so OnCounterLocked can arm
// observation immediately instead of waiting for Reactor.Resume on the
// next restart.
func (o *Orchestrator) SetWatcher(w Watcher) {
	o.watcher = w
}

// Initiate creates a new swap bound to a fresh hashlock triple,
// enforcing quote freshness, the timelock cascade, and per-session
// limits before any HTLC is ever created.
func (o *Orchestrator) Initiate(q Quote, callerToken string, hashlocks HashlockTriple, timelocks CascadeTimelocks) (*Swap, error) {
	now := o.clock.Now()
	if err := q.RequireFresh(now); err != nil {
		return nil, err
	}
	if err := ValidateCascade(q.Direction, timelocks); err != nil {
		return nil, err
	}
	if err := o.limits.Reserve(callerToken, q.FromAsset, q.FromAmount); err != nil {
		return nil, err
	}

	s := &Swap{
		ID:          NewSwapID(),
		Direction:   q.Direction,
		QuoteID:     q.ID,
		FromAsset:   q.FromAsset,
		ToAsset:     q.ToAsset,
		FromAmount:  q.FromAmount,
		ToAmount:    q.ToAmount,
		CallerToken: callerToken,
		Hashlocks:   hashlocks,
		State:       AwaitingDeposit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	o.mu.Lock()
	o.swaps[s.ID] = s
	o.mu.Unlock()
	metrics.SwapsByState.WithLabelValues(AwaitingDeposit.String()).Inc()

	if err := o.store.SaveSwap(s); err != nil {
		log.Errorf("persist new swap %s: %v", s.ID, err)
	}
	return s, nil
}

// transition looks up the swap, applies the whitelisted transition,
// persists, and returns the swap. The orchestrator lock is held only for
// the duration of the call; a caller that mutates further fields of the
// returned swap does so after the lock is released.
func (o *Orchestrator) transition(id string, to State) (*Swap, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.swaps[id]
	if !ok {
		return nil, fmt.Errorf("unknown swap %s", id)
	}
	from := s.State
	if err := s.Transition(to); err != nil {
		return nil, err
	}
	s.UpdatedAt = o.clock.Now()
	if err := o.store.SaveSwap(s); err != nil {
		log.Errorf("persist swap %s after transition to %s: %v", id, to, err)
	}
	metrics.SwapsByState.WithLabelValues(from.String()).Dec()
	metrics.SwapsByState.WithLabelValues(to.String()).Inc()
	return s, nil
}

// OnDepositSeen and OnDepositConfirmed drive the early funding states;
// OnCounterLocked records the LP's counter-leg creation.
func (o *Orchestrator) OnDepositSeen(id string, ref HTLCRef) (*Swap, error) {
	o.mu.Lock()
	s, ok := o.swaps[id]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown swap %s", id)
	}
	switch ref.Ledger {
	case LedgerBTC:
		s.BTCLeg = &ref
	case LedgerM1:
		s.M1Leg = &ref
	}
	return o.transition(id, DepositSeen)
}

func (o *Orchestrator) OnDepositConfirmed(id string) (*Swap, error) {
	return o.transition(id, DepositConfirmed)
}

func (o *Orchestrator) OnCounterLocked(id string, ref HTLCRef) (*Swap, error) {
	o.mu.Lock()
	s, ok := o.swaps[id]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown swap %s", id)
	}
	switch ref.Ledger {
	case LedgerBTC:
		s.BTCLeg = &ref
	case LedgerM1:
		s.M1Leg = &ref
	case LedgerEVM:
		s.EVMLeg = &ref
	}
	s, err := o.transition(id, CounterLocked)
	if err != nil {
		return nil, err
	}
	o.armWatch(s)
	return s, nil
}

// armWatch registers the swap's reveal-source leg for observation as
// soon as that leg is known, together with whichever counter legs are
// known at that moment. A nil
// watcher (e.g. in tests that exercise the state machine without a
// live poller) is a no-op.
func (o *Orchestrator) armWatch(s *Swap) {
	if o.watcher == nil {
		return
	}
	first, counters := s.firstAndCounterLegs()
	if first == nil {
		return
	}
	if err := o.watcher.Track(s.ID, *first, s.Hashlocks, counters); err != nil {
		log.Errorf("arm watch for swap %s: %v", s.ID, err)
	}
}

// OnRevealed is invoked by the watcher once it has extracted a
// RevealedSecrets from a spend of the first-claimed leg. It moves the
// swap into claimed_downstream and kicks off claim propagation.
func (o *Orchestrator) OnRevealed(ctx context.Context, id string, reveal RevealedSecrets) error {
	if !reveal.Source.IsConfirmedBlock() {
		return swaperr.ErrUnsafeRevealSource
	}

	o.mu.Lock()
	s, ok := o.swaps[id]
	if ok {
		s.Reveal = &reveal
		s.Secrets = &reveal.Secrets
	}
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown swap %s", id)
	}

	if _, err := o.transition(id, ClaimedDownstream); err != nil {
		return err
	}
	return o.propagateClaim(ctx, s)
}

// propagateClaim invokes claim on every remaining leg independently, retrying
// failures, and only marks the swap completed once every leg reports
// claimed. A leg already resolved by the reveal itself (the
// first-claimed leg) is skipped.
func (o *Orchestrator) propagateClaim(ctx context.Context, s *Swap) error {
	// UpdatedAt still holds the time of the move into claimed_downstream.
	deadline := s.UpdatedAt.Add(CompletingTimeout)
	if _, err := o.transition(s.ID, Completing); err != nil {
		return err
	}

	remaining := o.remainingLegs(s)
	// The leg whose spend revealed the secrets is already claimed by
	// the counterparty that revealed them — only the other leg(s) ever
	// need a propagated claim.
	if first, _ := s.firstAndCounterLegs(); first != nil {
		var filtered []*HTLCRef
		for _, ref := range remaining {
			if ref != first {
				filtered = append(filtered, ref)
			}
		}
		remaining = filtered
	}

	for len(remaining) > 0 {
		var stillRemaining []*HTLCRef
		for _, ref := range remaining {
			claimer, ok := o.claimers[ref.Ledger]
			if !ok {
				log.Errorf("no leg claimer registered for %s leg of swap %s", ref.Ledger, s.ID)
				stillRemaining = append(stillRemaining, ref)
				continue
			}
			if err := claimer.ClaimLeg(ctx, ref, *s.Secrets); err != nil {
				log.Warnf("claim %s leg of swap %s failed, will retry: %v", ref.Ledger, s.ID, err)
				stillRemaining = append(stillRemaining, ref)
				continue
			}
			ref.Status = "claimed"
			metrics.ClaimsPropagated.WithLabelValues(ref.Ledger.String()).Inc()
		}
		remaining = stillRemaining

		if len(remaining) == 0 {
			break
		}
		if o.clock.Now().After(deadline) {
			o.mu.Lock()
			s.OperatorAlert = true
			o.mu.Unlock()
			if err := o.store.SaveSwap(s); err != nil {
				log.Errorf("persist operator alert for swap %s: %v", s.ID, err)
			}
			return fmt.Errorf("%w: swap %s has %d leg(s) unclaimed after %s",
				swaperr.ErrConfirmationTimeout, s.ID, len(remaining), CompletingTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	s.CompletedAt = o.clock.Now()
	_, err := o.transition(s.ID, Completed)
	if err == nil {
		o.limits.Release(s.CallerToken)
	}
	return err
}

func (o *Orchestrator) remainingLegs(s *Swap) []*HTLCRef {
	var refs []*HTLCRef
	for _, ref := range []*HTLCRef{s.BTCLeg, s.M1Leg, s.EVMLeg} {
		if ref != nil && ref.Status != "claimed" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Refund marks a swap refunded after the caller (typically the watcher
// or a CLI maintenance command) has confirmed a refund transaction
// landed on at least one leg.
func (o *Orchestrator) Refund(id string) (*Swap, error) {
	s, err := o.transition(id, Refunded)
	if err != nil {
		return nil, err
	}
	o.limits.Release(s.CallerToken)
	return s, nil
}

// Fail marks a swap permanently failed.
func (o *Orchestrator) Fail(id string, cause error) (*Swap, error) {
	log.Errorf("swap %s failed: %v", id, cause)
	s, err := o.transition(id, Failed)
	if err != nil {
		return nil, err
	}
	o.limits.Release(s.CallerToken)
	return s, nil
}

// Get returns the in-memory swap by id, if loaded.
func (o *Orchestrator) Get(id string) (*Swap, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.swaps[id]
	return s, ok
}
