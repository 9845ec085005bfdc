package watcher

import (
	"errors"

	"github.com/flowswap/flowswap-engine/m1rail"
	"github.com/flowswap/flowswap-engine/swap"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// M1Source implements the refund half of spend detection for the
// native-rail leg. The M1 leg is never a reveal source (its claim RPC
// takes secrets as plaintext parameters, so a third party can never
// learn them from it), so M1Source has no Poll method — only the
// expiry/refund path a tracked M1 leg can reach during early-state
// startup recovery (see Reactor.resumeOne).
type M1Source struct {
	client *m1rail.Client
}

func NewM1Source(client *m1rail.Client) *M1Source {
	return &M1Source{client: client}
}

// CheckExpiry attempts the native rail's refund directly rather than
// separating detection from broadcast the way BTCSource.CheckExpiry
// does: htlc3s_refund is itself idempotent and timelock-gated
// node-side, so calling RefundIfExpired unconditionally and treating
// ErrTimelockNotExpired as "not yet eligible" costs nothing extra on
// the common case of polling too early.
func (m *M1Source) CheckExpiry(t *TrackedHTLC) (bool, error) {
	if t.Ref.Ledger != swap.LedgerM1 {
		return false, nil
	}
	_, err := m.client.RefundIfExpired(t.Ref.Identifier)
	if err != nil {
		if errors.Is(err, swaperr.ErrTimelockNotExpired) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
