package m1rail

import (
	"context"
	"fmt"
	"time"

	"github.com/flowswap/flowswap-engine/swaperr"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// receiptPollInterval and receiptPollAttempts reproduce the
	// Python reference client's ensure_receipt_available loop exactly:
	// 12 attempts at a 10-second cadence, ~120s total, expressed as a
	// ticker-driven loop instead of time.sleep.
	receiptPollInterval = 10 * time.Second
	receiptPollAttempts = 12
)

// EnsureReceipt guarantees a receipt of value >= amountSats is
// available to fund an HTLC: scan existing receipts first, and only
// call lock() when none is large enough, then block (bounded) until
// the resulting receipt appears.
func (c *Client) EnsureReceipt(ctx context.Context, amountSats int64) (string, error) {
	if outpoint, ok, err := c.findReceipt(amountSats); err != nil {
		return "", err
	} else if ok {
		return outpoint, nil
	}

	free, err := c.freeBalance()
	if err != nil {
		return "", err
	}
	if free < amountSats {
		return "", fmt.Errorf("%w: need %d sats, have %d", swaperr.ErrInsufficientFunds, amountSats, free)
	}

	lockTxID, err := c.lock(amountSats)
	if err != nil {
		return "", err
	}
	expected := lockTxID + ":1"

	log.Infof("waiting for lock tx %s to be confirmed as receipt %s", lockTxID, expected)

	t := ticker.New(receiptPollInterval)
	t.Resume()
	defer t.Stop()

	for attempt := 0; attempt < receiptPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.Ticks():
			recs, err := c.listReceipts()
			if err != nil {
				continue
			}
			for _, r := range recs {
				if r.Outpoint == expected {
					log.Infof("lock tx %s confirmed as receipt after %s",
						lockTxID, time.Duration(attempt+1)*receiptPollInterval)
					return expected, nil
				}
			}
		}
	}

	return "", fmt.Errorf("%w: lock tx %s not confirmed as a receipt after %s",
		swaperr.ErrConfirmationTimeout, lockTxID, receiptPollAttempts*receiptPollInterval)
}

func (c *Client) findReceipt(amountSats int64) (string, bool, error) {
	recs, err := c.listReceipts()
	if err != nil {
		return "", false, err
	}
	for _, r := range recs {
		if r.Amount >= amountSats {
			return r.Outpoint, true, nil
		}
	}
	return "", false, nil
}
