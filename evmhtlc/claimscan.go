package evmhtlc

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// DecodedClaim holds the arguments of a claim() call recovered from a
// mined transaction's input data.
type DecodedClaim struct {
	HTLCID, SUser, SLp1, SLp2 [32]byte
}

// DecodeClaimInput matches data against the claim() selector and, on a
// match, unpacks its arguments. It reports ok=false for any
// transaction that is not a claim() call, including other HTLC3S
// methods, rather than treating a decode mismatch as an error — most
// transactions to the contract scanned by FindClaim will not be
// claims.
func DecodeClaimInput(data []byte) (DecodedClaim, bool) {
	method := htlc3sABI.Methods["claim"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return DecodedClaim{}, false
	}
	vals, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(vals) != 4 {
		return DecodedClaim{}, false
	}
	htlcID, ok1 := vals[0].([32]byte)
	sUser, ok2 := vals[1].([32]byte)
	sLp1, ok3 := vals[2].([32]byte)
	sLp2, ok4 := vals[3].([32]byte)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return DecodedClaim{}, false
	}
	return DecodedClaim{HTLCID: htlcID, SUser: sUser, SLp1: sLp1, SLp2: sLp2}, true
}

// FindClaim scans blocks [fromBlock, toBlock] for a claim() transaction
// against htlcID addressed to this client's contract, returning the
// revealed secrets and the containing block's height. It returns
// found=false, not an error, when no matching transaction appears in
// the scanned range — the caller is expected to widen the range or
// retry next poll.
func (c *Client) FindClaim(ctx context.Context, htlcID [32]byte, fromBlock, toBlock uint64) (claim DecodedClaim, blockHeight uint64, txHash common.Hash, found bool, err error) {
	for h := fromBlock; h <= toBlock; h++ {
		block, blockErr := swaperr.RetryValue("evm", "eth_getBlockByNumber", func() (*types.Block, error) {
			block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(h))
			if err != nil {
				return nil, fmt.Errorf("%w: get block %d: %v", swaperr.ErrNodeRPCError, h, err)
			}
			return block, nil
		})
		if blockErr != nil {
			return DecodedClaim{}, 0, common.Hash{}, false, blockErr
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != c.contractAddress {
				continue
			}
			decoded, ok := decodeAndMatch(tx, htlcID)
			if !ok {
				continue
			}
			return decoded, h, tx.Hash(), true, nil
		}
	}
	return DecodedClaim{}, 0, common.Hash{}, false, nil
}

func decodeAndMatch(tx *types.Transaction, htlcID [32]byte) (DecodedClaim, bool) {
	decoded, ok := DecodeClaimInput(tx.Data())
	if !ok || decoded.HTLCID != htlcID {
		return DecodedClaim{}, false
	}
	return decoded, true
}
