package watcher

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/btchtlc"
	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/flowswap/flowswap-engine/swap"
)

// RecentBlocks is the default K: how many of the
// most recent blocks are searched for a spend before falling back to
// the mempool.
const RecentBlocks = 6

// BTCSource implements spend detection against the UTXO ledger's
// witness-script HTLCs, using the Python reference client's
// block-then-mempool search order.
type BTCSource struct {
	client *btchtlc.Client
}

func NewBTCSource(client *btchtlc.Client) *BTCSource {
	return &BTCSource{client: client}
}

func parseOutpoint(identifier string) (chainhash.Hash, uint32, error) {
	parts := strings.SplitN(identifier, ":", 2)
	if len(parts) != 2 {
		return chainhash.Hash{}, 0, fmt.Errorf("malformed outpoint %q", identifier)
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return chainhash.Hash{}, 0, fmt.Errorf("parse txid: %w", err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return chainhash.Hash{}, 0, fmt.Errorf("parse vout: %w", err)
	}
	return *hash, uint32(vout), nil
}

// Poll checks one tracked BTC HTLC and returns a RevealedSecrets if a
// matching spend was found this cycle, or nil if the funding UTXO is
// still present or no matching spend has appeared yet.
func (b *BTCSource) Poll(t *TrackedHTLC) (*swap.RevealedSecrets, error) {
	txid, vout, err := parseOutpoint(t.Ref.Identifier)
	if err != nil {
		return nil, err
	}

	utxo, _, err := b.client.ScanUTXO(t.Ref.PkScript)
	if err != nil {
		return nil, fmt.Errorf("scan utxo: %w", err)
	}
	if utxo != nil {
		// Funding output is still unspent; nothing to do this cycle.
		return nil, nil
	}

	current, err := b.client.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("get block count: %w", err)
	}

	from := current - RecentBlocks + 1
	if t.lastCheckedHeight > from {
		from = t.lastCheckedHeight
	}
	if from < 0 {
		from = 0
	}

	for h := from; h <= current; h++ {
		block, err := b.client.BlockAtHeight(h)
		if err != nil {
			log.Warnf("read block %d while searching for spend of %s: %v", h, t.Ref.Identifier, err)
			continue
		}
		if rs := findSpendInTxs(block.Transactions, txid, vout, t); rs != nil {
			t.lastCheckedHeight = current
			rs.Source = swap.SourceBTCBlock
			return rs, nil
		}
	}
	t.lastCheckedHeight = current

	mempoolIDs, err := b.client.MempoolTxIDs()
	if err != nil {
		return nil, fmt.Errorf("get mempool txids: %w", err)
	}
	var mempoolTxs []*wire.MsgTx
	for _, id := range mempoolIDs {
		tx, err := b.client.MempoolTx(id)
		if err != nil {
			continue
		}
		mempoolTxs = append(mempoolTxs, tx)
	}
	if rs := findSpendInTxs(mempoolTxs, txid, vout, t); rs != nil {
		rs.Source = swap.SourceBTCMempool
		return rs, nil
	}

	return nil, nil
}

// GraceBlocks is added on top of an HTLC's absolute timelock before the
// watcher will treat it as eligible for an automatic refund, the
// safest of the choices refund-path open question names.
const GraceBlocks = 6

// CheckExpiry reports whether t's BTC-leg funding output is still
// unspent past its timelock plus GraceBlocks, meaning a refund
// transaction can be safely broadcast.
func (b *BTCSource) CheckExpiry(t *TrackedHTLC) (bool, error) {
	if t.Ref.Ledger != swap.LedgerBTC {
		return false, nil
	}
	current, err := b.client.BlockCount()
	if err != nil {
		return false, fmt.Errorf("get block count: %w", err)
	}
	if current < t.Ref.Timelock+GraceBlocks {
		return false, nil
	}
	utxo, _, err := b.client.ScanUTXO(t.Ref.PkScript)
	if err != nil {
		return false, fmt.Errorf("scan utxo: %w", err)
	}
	return utxo != nil, nil
}

func findSpendInTxs(txs []*wire.MsgTx, txid chainhash.Hash, vout uint32, t *TrackedHTLC) *swap.RevealedSecrets {
	for _, tx := range txs {
		for _, in := range tx.TxIn {
			if in.PreviousOutPoint.Hash != txid || in.PreviousOutPoint.Index != vout {
				continue
			}
			if len(in.Witness) == 0 {
				continue
			}
			if !bytes.Equal(in.Witness[len(in.Witness)-1], t.Ref.Script) {
				continue
			}
			extracted, err := btchtlc.ParseClaimWitness(in.Witness)
			if err != nil {
				continue
			}
			if err := btchtlc.VerifyPreimagesAgainstScript(t.Ref.Script,
				extracted.SUser, extracted.SLp1, extracted.SLp2); err != nil {
				continue
			}
			if !crypto.Verify(extracted.SUser, t.Hashlocks.User) ||
				!crypto.Verify(extracted.SLp1, t.Hashlocks.Lp1) ||
				!crypto.Verify(extracted.SLp2, t.Hashlocks.Lp2) {
				continue
			}
			return &swap.RevealedSecrets{
				Secrets: swap.SecretTriple{
					User: extracted.SUser,
					Lp1:  extracted.SLp1,
					Lp2:  extracted.SLp2,
				},
				LedgerTxID: tx.TxHash().String(),
			}
		}
	}
	return nil
}
