package btchtlc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// FundingSource tags where a deposit was observed, mirroring the
// watcher's RevealedSecrets.Source tagging for the funding side of the
// protocol: a confirmed UTXO is strictly stronger evidence than a
// mempool-only sighting and the two are never conflated.
type FundingSource int

const (
	FundingNotFound FundingSource = iota
	FundingConfirmed
	FundingMempool
)

// FundingStatus reports whether and how an HTLC's funding output has
// been observed, following the Python reference client's
// check_htlc_funded: first check the confirmed UTXO set via
// scantxoutset, and only fall back to a mempool scan (gated by
// VerifyZeroConfSafe) when nothing confirmed is found.
type FundingStatus struct {
	Source FundingSource
	UTXO   UTXO
	Height int64 // chain height as of the scan, for confirmation counting
}

// CheckFunded looks for redeemScript's P2WSH output, first among
// confirmed UTXOs and then, if absent, among 0-conf mempool
// transactions whose funding output is judged safe by
// VerifyZeroConfSafe. A mempool sighting that fails the safety check is
// reported as FundingNotFound rather than FundingMempool: an unsafe
// 0-conf deposit must never advance swap state.
func (c *Client) CheckFunded(redeemScript []byte, expectedAmount btcutil.Amount) (*FundingStatus, error) {
	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, fmt.Errorf("derive htlc pkscript: %w", err)
	}

	utxo, height, err := c.ScanUTXO(pkScript)
	if err != nil {
		return nil, err
	}
	if utxo != nil {
		return &FundingStatus{Source: FundingConfirmed, UTXO: *utxo, Height: height}, nil
	}

	txids, err := c.MempoolTxIDs()
	if err != nil {
		return nil, err
	}

	for _, txid := range txids {
		tx, err := c.MempoolTx(txid)
		if err != nil {
			continue
		}

		for vout, out := range tx.TxOut {
			if out.Value != int64(expectedAmount) || !bytesEqual(out.PkScript, pkScript) {
				continue
			}

			safety, err := VerifyZeroConfSafe(c, tx, pkScript, expectedAmount)
			if err != nil || !safety.Safe {
				return &FundingStatus{Source: FundingNotFound}, nil
			}

			return &FundingStatus{
				Source: FundingMempool,
				UTXO: UTXO{
					TxID:   *txid,
					Vout:   uint32(vout),
					Amount: expectedAmount,
				},
			}, nil
		}
	}

	return &FundingStatus{Source: FundingNotFound}, nil
}
