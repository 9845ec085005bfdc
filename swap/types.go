// Package swap implements the per-swap state machine: quoting,
// timelock cascade validation, per-session concurrency limits, claim
// propagation across legs, and startup recovery.
package swap

import (
	"time"

	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/google/uuid"
)

// Direction names which asset moves first: Forward locks BTC and pays
// out USDC, Reverse locks USDC and pays out BTC.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Ledger identifies one of the three legs a swap can touch.
type Ledger int

const (
	LedgerBTC Ledger = iota
	LedgerM1
	LedgerEVM
)

func (l Ledger) String() string {
	switch l {
	case LedgerBTC:
		return "btc"
	case LedgerM1:
		return "m1"
	case LedgerEVM:
		return "evm"
	default:
		return "unknown"
	}
}

// State enumerates the ten swap states
type State int

const (
	AwaitingDeposit State = iota
	DepositSeen
	DepositConfirmed
	CounterLocked
	ClaimedDownstream
	Completing
	Completed
	Refunded
	Expired
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingDeposit:
		return "awaiting_deposit"
	case DepositSeen:
		return "deposit_seen"
	case DepositConfirmed:
		return "deposit_confirmed"
	case CounterLocked:
		return "counter_locked"
	case ClaimedDownstream:
		return "claimed_downstream"
	case Completing:
		return "completing"
	case Completed:
		return "completed"
	case Refunded:
		return "refunded"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether a swap in this state will never transition
// again absent administrator purge.
func (s State) IsTerminal() bool {
	switch s {
	case Completed, Refunded, Expired, Failed:
		return true
	default:
		return false
	}
}

// HashlockTriple and SecretTriple are the ledger-agnostic 3-hashlock /
// 3-secret pairs shared across a swap's three legs.
type HashlockTriple struct {
	User crypto.Hashlock
	Lp1  crypto.Hashlock
	Lp2  crypto.Hashlock
}

type SecretTriple struct {
	User crypto.Secret
	Lp1  crypto.Secret
	Lp2  crypto.Secret
}

// RevealSource tags where a RevealedSecrets was observed, a
// first-class concept the watcher and orchestrator gate on.
type RevealSource int

const (
	SourceUnknown RevealSource = iota
	SourceBTCBlock
	SourceBTCMempool
	SourceNativeRailBlock
	SourceNativeRailMempool
	SourceEVMBlock
)

func (s RevealSource) IsConfirmedBlock() bool {
	switch s {
	case SourceBTCBlock, SourceNativeRailBlock, SourceEVMBlock:
		return true
	default:
		return false
	}
}

// RevealedSecrets is the authenticated output of a successful witness
// or event extraction, carrying enough provenance for the atomicity
// gate to make its decision.
type RevealedSecrets struct {
	Secrets     SecretTriple
	Source      RevealSource
	LedgerTxID  string
	BlockHeight int64 // 0 if not yet confirmed
}

// HTLCRef is a swap's per-leg pointer into the ledger-specific HTLC
// record: an outpoint string for UTXO/native-rail legs, a hex bytes32
// id for the EVM leg.
type HTLCRef struct {
	Ledger     Ledger
	Identifier string
	Amount     int64
	Timelock   int64  // block height for UTXO/M1, unix seconds for EVM
	Status     string
	Script     []byte // redeem script bytes; only meaningful for the BTC leg
	PkScript   []byte // witness program scriptPubKey; only meaningful for the BTC leg
}

// Quote is a time-bounded, non-transferable price commitment. Only a
// non-expired quote may be used to initiate a swap.
type Quote struct {
	ID          string
	Direction   Direction
	FromAsset   string
	ToAsset     string
	FromAmount  int64
	ToAmount    int64
	Rate        float64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (q Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// Swap is the orchestrator's persisted unit of work.
type Swap struct {
	ID             string
	Direction      Direction
	QuoteID        string
	FromAsset      string
	ToAsset        string
	FromAmount     int64
	ToAmount       int64
	CallerToken    string
	Hashlocks      HashlockTriple
	Secrets        *SecretTriple // nil until generated/revealed
	BTCLeg         *HTLCRef
	M1Leg          *HTLCRef
	EVMLeg         *HTLCRef
	State          State
	Reveal         *RevealedSecrets
	OperatorAlert  bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    time.Time
	ExpiresAt      time.Time
}

// NewSwapID generates a fresh swap identifier.
func NewSwapID() string {
	return uuid.NewString()
}
