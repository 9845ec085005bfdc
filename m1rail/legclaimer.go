package m1rail

import (
	"context"
	"encoding/hex"

	"github.com/flowswap/flowswap-engine/swap"
)

// LegClaimer adapts Client to swap.LegClaimer: the native rail's Claim
// RPC takes the three secrets as plaintext hex parameters rather than
// a witness script, so no presigning step is needed here the way the
// BTC leg requires one.
type LegClaimer struct {
	client *Client
}

func NewLegClaimer(client *Client) *LegClaimer {
	return &LegClaimer{client: client}
}

func (c *LegClaimer) ClaimLeg(ctx context.Context, ref *swap.HTLCRef, secrets swap.SecretTriple) error {
	_, err := c.client.Claim(
		ref.Identifier,
		hex.EncodeToString(secrets.User[:]),
		hex.EncodeToString(secrets.Lp1[:]),
		hex.EncodeToString(secrets.Lp2[:]),
	)
	return err
}
