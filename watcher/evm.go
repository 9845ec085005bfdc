package watcher

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/flowswap/flowswap-engine/evmhtlc"
	"github.com/flowswap/flowswap-engine/swap"
)

// EVMRecentBlocks bounds how many confirmed blocks behind the chain
// head EVMSource searches for a claim transaction before waiting for
// the next poll cycle to extend the range.
const EVMRecentBlocks = 50

// EVMSource implements spend detection and refund submission for the
// EVM leg, the reveal path a Reverse-direction swap's cascade relies
// on since the user's deposit (and first claim) lands on the EVM
// contract rather than on a UTXO script. refundKey signs the refund()
// transaction CheckExpiry submits once canRefund reports a tracked
// HTLC eligible — the same operating key the engine uses to claim,
// since refund() carries no more caller restriction than claim() does.
type EVMSource struct {
	client    *evmhtlc.Client
	refundKey *ecdsa.PrivateKey
}

func NewEVMSource(client *evmhtlc.Client, refundKey *ecdsa.PrivateKey) *EVMSource {
	return &EVMSource{client: client, refundKey: refundKey}
}

// Poll checks one tracked EVM HTLC and returns a RevealedSecrets once
// its on-chain claimed flag is set and the claiming transaction has
// been located, or nil if it is still outstanding.
func (e *EVMSource) Poll(ctx context.Context, t *TrackedHTLC) (*swap.RevealedSecrets, error) {
	htlcID, err := parseHTLCID(t.Ref.Identifier)
	if err != nil {
		return nil, err
	}

	info, err := e.client.GetHTLC(ctx, htlcID)
	if err != nil {
		return nil, fmt.Errorf("get htlc %s: %w", t.Ref.Identifier, err)
	}
	if info == nil || !info.Claimed {
		return nil, nil
	}

	current, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block number: %w", err)
	}

	from := uint64(0)
	if current > EVMRecentBlocks {
		from = current - EVMRecentBlocks
	}
	if t.lastCheckedHeight > 0 && uint64(t.lastCheckedHeight) > from {
		from = uint64(t.lastCheckedHeight)
	}
	if from > current {
		from = current
	}

	claim, height, txHash, found, err := e.client.FindClaim(ctx, htlcID, from, current)
	if err != nil {
		return nil, fmt.Errorf("scan for claim tx: %w", err)
	}
	t.lastCheckedHeight = int64(current)
	if !found {
		// The contract already reports this HTLC claimed but the
		// claiming transaction has not surfaced in the scanned range
		// yet (reorg-adjacent node, or the claim is older than
		// EVMRecentBlocks on first sight). Re-polled next cycle.
		return nil, nil
	}

	return &swap.RevealedSecrets{
		Secrets: swap.SecretTriple{
			User: crypto.Secret(claim.SUser),
			Lp1:  crypto.Secret(claim.SLp1),
			Lp2:  crypto.Secret(claim.SLp2),
		},
		Source:      swap.SourceEVMBlock,
		LedgerTxID:  txHash.Hex(),
		BlockHeight: int64(height),
	}, nil
}

// CheckExpiry asks the contract itself whether the tracked EVM HTLC is
// past its timelock and still unclaimed and, if so, submits refund()
// directly — there is no separate detect-then-broadcast split the way
// BTCSource has, since canRefund already encodes the exact boundary
// the contract enforces on-chain.
func (e *EVMSource) CheckExpiry(ctx context.Context, t *TrackedHTLC) (bool, error) {
	if t.Ref.Ledger != swap.LedgerEVM {
		return false, nil
	}
	htlcID, err := parseHTLCID(t.Ref.Identifier)
	if err != nil {
		return false, err
	}

	eligible, err := e.client.CanRefund(ctx, htlcID)
	if err != nil {
		return false, fmt.Errorf("check canRefund for %s: %w", t.Ref.Identifier, err)
	}
	if !eligible {
		return false, nil
	}
	if e.refundKey == nil {
		return false, fmt.Errorf("evm htlc %s is refund-eligible but no refund key is configured", t.Ref.Identifier)
	}

	if _, err := e.client.Refund(ctx, e.refundKey, htlcID); err != nil {
		return false, fmt.Errorf("submit refund for %s: %w", t.Ref.Identifier, err)
	}
	return true, nil
}

func parseHTLCID(identifier string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(identifier, "0x"))
	if err != nil {
		return id, fmt.Errorf("decode htlc id %q: %w", identifier, err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("htlc id %q is %d bytes, want 32", identifier, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
