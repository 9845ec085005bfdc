package evmhtlc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// ExtractHTLCID recovers the htlcId returned by a mined create()
// transaction. The primary path reads topic₁ of the contract's first
// log entry, matching the Python reference client exactly. A fallback
// handles the case where no usable log is present (a proxy or relayer
// that strips logs, or a contract that does not emit one): re-simulate
// the original call via eth_call against the state just before the
// transaction, and decode its return value directly. The Python
// reference client does not have this fallback; it is added here for
// robustness against log-stripping intermediaries.
func (c *Client) ExtractHTLCID(ctx context.Context, receipt *types.Receipt, createCallData []byte, blockNumberBeforeTx *uint64) ([32]byte, error) {
	for _, l := range receipt.Logs {
		if l.Address != c.contractAddress {
			continue
		}
		if len(l.Topics) < 2 {
			continue
		}
		return l.Topics[1], nil
	}

	log.Warnf("no htlcId log found in receipt %s, falling back to eth_call re-simulation",
		receipt.TxHash.Hex())

	return c.simulateCreateForHTLCID(ctx, createCallData, blockNumberBeforeTx)
}

// simulateCreateForHTLCID re-runs the create() call as an eth_call
// against the block immediately before the transaction was mined, and
// decodes the return value the way a successful transaction's return
// data would have been decoded had it been captured.
func (c *Client) simulateCreateForHTLCID(ctx context.Context, createCallData []byte, blockNumber *uint64) ([32]byte, error) {
	var zero [32]byte

	var atBlock *big.Int
	if blockNumber != nil {
		atBlock = new(big.Int).SetUint64(*blockNumber)
	}

	msg := ethereum.CallMsg{To: &c.contractAddress, Data: createCallData}
	out, err := swaperr.RetryValue("evm", "eth_call", func() ([]byte, error) {
		out, err := c.eth.CallContract(ctx, msg, atBlock)
		if err != nil {
			return nil, fmt.Errorf("%w: eth_call re-simulation for htlcId: %v", swaperr.ErrNodeRPCError, err)
		}
		return out, nil
	})
	if err != nil {
		return zero, err
	}

	vals, err := htlc3sABI.Unpack("create", out)
	if err != nil || len(vals) == 0 {
		return zero, fmt.Errorf("%w: could not extract htlcId from logs or re-simulation",
			swaperr.ErrContractMismatch)
	}

	id, ok := vals[0].([32]byte)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected htlcId return type", swaperr.ErrContractMismatch)
	}
	return id, nil
}
