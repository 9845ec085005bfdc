package m1rail

import "github.com/flowswap/flowswap-engine/swaperr"

// RefundIfExpired enforces the refund-timing guard client-side before
// even attempting htlc3s_refund, surfacing ErrTimelockNotExpired
// instead of retrying. The rail also rejects an early refund itself
// (caught by classifyRPCError's string match as a fallback), but
// checking height locally first avoids a wasted RPC round trip on the
// common case of a caller polling too early.
func (c *Client) RefundIfExpired(htlcOutpoint string) (*ClaimResult, error) {
	rec, err := c.GetHTLC(htlcOutpoint)
	if err != nil {
		return nil, err
	}

	height, err := c.BlockCount()
	if err != nil {
		return nil, err
	}

	if height < rec.ExpiryHeight {
		return nil, swaperr.ErrTimelockNotExpired
	}

	return c.Refund(htlcOutpoint)
}
