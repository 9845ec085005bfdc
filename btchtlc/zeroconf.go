package btchtlc

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// MinZeroConfFeeRateSatPerVByte is the floor fee rate a mempool-only
// deposit must clear to be considered safe to act on before
// confirmation. Grounded on the Python reference client's
// verify_tx_safe_for_0conf fee-rate floor.
const MinZeroConfFeeRateSatPerVByte = 1.0

// ZeroConfCheck is the outcome of VerifyZeroConfSafe: Safe is false
// whenever any individual check fails. When a check cannot be evaluated
// (RPC error) no ZeroConfCheck is returned at all; VerifyZeroConfSafe
// fails closed with swaperr.ErrUnsafeRevealSource instead.
type ZeroConfCheck struct {
	Safe           bool
	RBFSignaled    bool
	FeeRateTooLow  bool
	OutputMismatch bool
}

// VerifyZeroConfSafe re-implements the Python reference client's
// verify_tx_safe_for_0conf: a deposit seen only in the mempool may only
// be treated as funding evidence (state deposit_seen, never
// deposit_confirmed) if none of the following hold:
//
//   - the transaction or any of its inputs signal BIP-125 replaceability
//     (any input sequence < 0xFFFFFFFE)
//   - its mempool fee rate is below MinZeroConfFeeRateSatPerVByte
//   - the expected output (pkScript, amount) is not actually present
//
// Any RPC error while evaluating these checks is treated as unsafe
// (fail-closed), returning swaperr.ErrUnsafeRevealSource rather than a
// bare RPC error, so callers always have a single sentinel to branch on
// for "do not act on this 0-conf deposit".
func VerifyZeroConfSafe(c *Client, tx *wire.MsgTx, expectedPkScript []byte, expectedAmount btcutil.Amount) (*ZeroConfCheck, error) {
	check := &ZeroConfCheck{}

	for _, in := range tx.TxIn {
		if in.Sequence < wire.MaxTxInSequenceNum-1 {
			check.RBFSignaled = true
			break
		}
	}

	txid := tx.TxHash()
	entry, err := c.MempoolEntry(&txid)
	if err != nil {
		return nil, swaperr.ErrUnsafeRevealSource
	}
	if entry.BIP125Replaceable {
		check.RBFSignaled = true
	}
	if entry.FeeRateSatPerVByte < MinZeroConfFeeRateSatPerVByte {
		check.FeeRateTooLow = true
	}

	check.OutputMismatch = true
	for _, out := range tx.TxOut {
		if out.Value == int64(expectedAmount) && bytesEqual(out.PkScript, expectedPkScript) {
			check.OutputMismatch = false
			break
		}
	}

	check.Safe = !check.RBFSignaled && !check.FeeRateTooLow && !check.OutputMismatch
	return check, nil
}

// ErrFromCheck converts a failed ZeroConfCheck into the most specific
// swaperr sentinel, for callers that want a single error rather than
// the raw flags.
func (z *ZeroConfCheck) ErrFromCheck() error {
	switch {
	case z.Safe:
		return nil
	case z.RBFSignaled:
		return swaperr.ErrRBFSignaled
	case z.FeeRateTooLow:
		return swaperr.ErrFeeRateTooLow
	default:
		return swaperr.ErrUnsafeRevealSource
	}
}
