package evmhtlc

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/flowswap/flowswap-engine/swap"
)

// LegClaimer adapts Client to swap.LegClaimer, submitting claim()
// transactions through a ClaimQueue so concurrent reveals never race
// each other's nonce allocation.
type LegClaimer struct {
	queue *ClaimQueue
	key   *ecdsa.PrivateKey
}

// NewLegClaimer starts a claim queue bound to client and signs every
// submitted claim with key, the LP's on-chain claiming identity.
func NewLegClaimer(client *Client, key *ecdsa.PrivateKey) *LegClaimer {
	return &LegClaimer{queue: NewClaimQueue(client), key: key}
}

func (c *LegClaimer) ClaimLeg(ctx context.Context, ref *swap.HTLCRef, secrets swap.SecretTriple) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(ref.Identifier, "0x"))
	if err != nil {
		return fmt.Errorf("decode htlc id %q: %w", ref.Identifier, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("htlc id %q is %d bytes, want 32", ref.Identifier, len(raw))
	}
	var htlcID [32]byte
	copy(htlcID[:], raw)

	done := make(chan error, 1)
	c.queue.Submit(ClaimRequest{
		Key:    c.key,
		HTLCID: htlcID,
		SUser:  secrets.User,
		SLp1:   secrets.Lp1,
		SLp2:   secrets.Lp2,
		Done:   done,
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the underlying claim queue's worker goroutine.
func (c *LegClaimer) Stop() {
	c.queue.Stop()
}
