package watcher

import (
	"context"
	"time"

	"github.com/flowswap/flowswap-engine/metrics"
	"github.com/flowswap/flowswap-engine/swap"
	"github.com/lightningnetwork/lnd/ticker"
)

// DefaultPollInterval is the default poll cadence for every tracked leg.
const DefaultPollInterval = 30 * time.Second

// RevealHandler is invoked once per newly-observed reveal; typically
// bound to Orchestrator.OnRevealed. It must be fast and non-blocking —
// heavy work is queued by the caller — since the watcher itself does
// not enforce that.
type RevealHandler func(ctx context.Context, swapID string, rs swap.RevealedSecrets) error

// RefundHandler is invoked once checkExpiryLeg reports a tracked HTLC
// (BTC, M1 or EVM leg) as expired; typically bound to
// Orchestrator.Refund.
type RefundHandler func(ctx context.Context, swapID string) error

// Watcher polls every tracked HTLC for a reveal, dispatching by ledger
// to the BTC or EVM source, and checks BTC, M1 and EVM legs for expiry.
// A single Watcher serves all ledgers.
type Watcher struct {
	reg      *registry
	btc      *BTCSource
	evm      *EVMSource
	m1       *M1Source
	interval time.Duration
	onReveal RevealHandler
	onExpiry RefundHandler
}

func NewWatcher(btc *BTCSource, onReveal RevealHandler) *Watcher {
	return &Watcher{
		reg:      newRegistry(),
		btc:      btc,
		interval: DefaultPollInterval,
		onReveal: onReveal,
	}
}

// SetEVMSource wires the EVM-leg reveal path, required for
// Reverse-direction swaps whose first claim lands on the EVM contract
// rather than on a UTXO script. Without one set, EVM-leg tracked
// HTLCs are silently never polled.
func (w *Watcher) SetEVMSource(e *EVMSource) {
	w.evm = e
}

// SetM1Source wires the native-rail refund path. Without one set, a
// tracked M1-leg HTLC (reachable during early-state startup recovery
// of a Reverse-direction swap, see Reactor.resumeOne) is never
// refunded automatically.
func (w *Watcher) SetM1Source(m *M1Source) {
	w.m1 = m
}

// SetRefundHandler wires the automatic-refund callback. Without one
// set, the watcher does not check tracked HTLCs for expiry at all.
func (w *Watcher) SetRefundHandler(h RefundHandler) {
	w.onExpiry = h
}

// SetPollInterval overrides the default 30s cadence, for tests or
// operator tuning.
func (w *Watcher) SetPollInterval(d time.Duration) {
	w.interval = d
}

// Track registers (or re-registers, on startup recovery) an HTLC for
// observation. It satisfies swap.Watcher.
func (w *Watcher) Track(swapID string, ref swap.HTLCRef, hashlocks swap.HashlockTriple, counterRefs []swap.HTLCRef) error {
	w.reg.put(&TrackedHTLC{
		SwapID:      swapID,
		Ref:         ref,
		Hashlocks:   hashlocks,
		CounterRefs: counterRefs,
	})
	return nil
}

// Untrack stops observing a swap, typically once it reaches a terminal
// state.
func (w *Watcher) Untrack(swapID string) {
	w.reg.remove(swapID)
}

// MayClaimCounterLeg is the atomicity gate: a counter-leg
// claim may only be auto-submitted for a reveal sourced from a
// confirmed block. A mempool reveal could still be evicted by an
// RBF-replaced or never-mined funding transaction, so propagating it
// would risk stranding the counter-leg claim on an invalidated
// preimage.
func MayClaimCounterLeg(rs swap.RevealedSecrets) bool {
	return rs.Source.IsConfirmedBlock()
}

// Run starts the poll loop and blocks until ctx is canceled. Tracked
// HTLCs are dispatched to BTCSource or EVMSource by their ledger; the
// M1 leg is never tracked as a reveal source since its claim RPC takes
// secrets as plaintext parameters rather than revealing them through
// on-chain data a third party can observe (see
// swap.Swap.firstAndCounterLegs).
func (w *Watcher) Run(ctx context.Context) error {
	t := ticker.New(w.interval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Ticks():
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	for _, tracked := range w.reg.snapshot() {
		rs, err := w.pollLeg(ctx, tracked)
		if err != nil {
			log.Warnf("poll tracked htlc for swap %s: %v", tracked.SwapID, err)
			continue
		}
		if rs == nil {
			w.checkExpiry(ctx, tracked)
			continue
		}
		metrics.RevealsObserved.WithLabelValues(sourceLabel(rs.Source)).Inc()

		if !MayClaimCounterLeg(*rs) {
			// Recorded for visibility only: a mempool-sourced
			// reveal must never trigger a counter-leg claim, since the
			// funding transaction could still be evicted or
			// RBF-replaced before confirming. Re-polled next cycle; once
			// it confirms the block-sourced path below fires.
			metrics.RevealsGated.Inc()
			log.Infof("reveal for swap %s observed in mempool only; withholding auto-propagation", tracked.SwapID)
			continue
		}

		if err := w.onReveal(ctx, tracked.SwapID, *rs); err != nil {
			log.Errorf("handling reveal for swap %s: %v", tracked.SwapID, err)
			continue
		}
		if rs.Source.IsConfirmedBlock() {
			w.Untrack(tracked.SwapID)
		}
	}
}

// pollLeg routes a tracked HTLC to the source implementation for its
// ledger. The M1 leg is never registered as a reveal source (see
// Run), so it has no case here; a tracked HTLC somehow carrying it is
// treated as a no-op poll rather than an error.
func (w *Watcher) pollLeg(ctx context.Context, tracked *TrackedHTLC) (*swap.RevealedSecrets, error) {
	switch tracked.Ref.Ledger {
	case swap.LedgerBTC:
		return w.btc.Poll(tracked)
	case swap.LedgerEVM:
		if w.evm == nil {
			return nil, nil
		}
		return w.evm.Poll(ctx, tracked)
	default:
		return nil, nil
	}
}

// checkExpiry implements the watcher-side half of automatic refunding:
// attempt a refund once an HTLC's timelock plus grace has passed and
// its funding output is still unspent, rather than waiting for an
// operator or counterparty to trigger one. The actual refund
// submission (where the ledger needs one) happens inside the
// per-ledger CheckExpiry call itself; onExpiry only updates swap state.
func (w *Watcher) checkExpiry(ctx context.Context, tracked *TrackedHTLC) {
	if w.onExpiry == nil {
		return
	}
	expired, err := w.checkExpiryLeg(ctx, tracked)
	if err != nil {
		log.Warnf("check expiry for swap %s: %v", tracked.SwapID, err)
		return
	}
	if !expired {
		return
	}
	if err := w.onExpiry(ctx, tracked.SwapID); err != nil {
		log.Errorf("refund swap %s: %v", tracked.SwapID, err)
		return
	}
	w.Untrack(tracked.SwapID)
}

// checkExpiryLeg routes a tracked HTLC's expiry/refund check to the
// source implementation for its ledger, mirroring pollLeg. An unset
// EVM or M1 source makes that ledger's leg a no-op here rather than an
// error, matching pollLeg's treatment of an unset EVM source.
func (w *Watcher) checkExpiryLeg(ctx context.Context, tracked *TrackedHTLC) (bool, error) {
	switch tracked.Ref.Ledger {
	case swap.LedgerBTC:
		return w.btc.CheckExpiry(tracked)
	case swap.LedgerM1:
		if w.m1 == nil {
			return false, nil
		}
		return w.m1.CheckExpiry(tracked)
	case swap.LedgerEVM:
		if w.evm == nil {
			return false, nil
		}
		return w.evm.CheckExpiry(ctx, tracked)
	default:
		return false, nil
	}
}

func sourceLabel(s swap.RevealSource) string {
	switch s {
	case swap.SourceBTCBlock:
		return "btc_block"
	case swap.SourceBTCMempool:
		return "btc_mempool"
	case swap.SourceNativeRailBlock:
		return "m1_block"
	case swap.SourceNativeRailMempool:
		return "m1_mempool"
	case swap.SourceEVMBlock:
		return "evm_block"
	default:
		return "unknown"
	}
}
