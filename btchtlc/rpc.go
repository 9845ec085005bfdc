package btchtlc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// Client wraps a btcd/bitcoind JSON-RPC connection with the exact verb
// surface the watcher and swap components need: block/mempool reads for
// the watcher's polling loop, UTXO scanning for deposit detection, and
// raw transaction submission for claims and refunds.
type Client struct {
	rpc *rpcclient.Client
}

// NewClient dials a JSON-RPC endpoint using HTTP POST mode (no
// websocket notifications — the watcher polls instead).
func NewClient(host, user, pass string, useTLS bool, certPEM []byte) (*Client, error) {
	cfg := &rpcclient.ConnConfig{
		Host:         host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   !useTLS,
		Certificates: certPEM,
	}

	rpc, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", swaperr.ErrNodeRPCError, err)
	}

	return &Client{rpc: rpc}, nil
}

// Shutdown tears down the underlying RPC connection.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// BlockCount returns the current chain tip height.
func (c *Client) BlockCount() (int64, error) {
	return swaperr.RetryValue("btc", "getblockcount", func() (int64, error) {
		h, err := c.rpc.GetBlockCount()
		if err != nil {
			return 0, fmt.Errorf("%w: getblockcount: %v", swaperr.ErrNodeRPCError, err)
		}
		return h, nil
	})
}

// BlockAtHeight returns the full block (txs included) at a given
// height, used by the watcher to scan confirmed blocks for reveals.
func (c *Client) BlockAtHeight(height int64) (*wire.MsgBlock, error) {
	return swaperr.RetryValue("btc", "getblock", func() (*wire.MsgBlock, error) {
		hash, err := c.rpc.GetBlockHash(height)
		if err != nil {
			return nil, fmt.Errorf("%w: getblockhash: %v", swaperr.ErrNodeRPCError, err)
		}
		block, err := c.rpc.GetBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("%w: getblock: %v", swaperr.ErrNodeRPCError, err)
		}
		return block, nil
	})
}

// MempoolTxIDs returns the raw mempool's transaction IDs.
func (c *Client) MempoolTxIDs() ([]*chainhash.Hash, error) {
	return swaperr.RetryValue("btc", "getrawmempool", func() ([]*chainhash.Hash, error) {
		ids, err := c.rpc.GetRawMempool()
		if err != nil {
			return nil, fmt.Errorf("%w: getrawmempool: %v", swaperr.ErrNodeRPCError, err)
		}
		return ids, nil
	})
}

// MempoolTx fetches a single mempool (or recently confirmed) transaction.
func (c *Client) MempoolTx(txid *chainhash.Hash) (*wire.MsgTx, error) {
	return swaperr.RetryValue("btc", "getrawtransaction", func() (*wire.MsgTx, error) {
		tx, err := c.rpc.GetRawTransaction(txid)
		if err != nil {
			return nil, fmt.Errorf("%w: getrawtransaction: %v", swaperr.ErrNodeRPCError, err)
		}
		return tx.MsgTx(), nil
	})
}

// MempoolEntry is the subset of getmempoolentry used for RBF and
// fee-rate safety gating.
type MempoolEntry struct {
	FeeRateSatPerVByte float64
	BIP125Replaceable  bool
}

func (c *Client) MempoolEntry(txid *chainhash.Hash) (*MempoolEntry, error) {
	return swaperr.RetryValue("btc", "getmempoolentry", func() (*MempoolEntry, error) {
		raw, err := c.rpc.RawRequest("getmempoolentry", []json.RawMessage{
			mustMarshal(txid.String()),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: getmempoolentry: %v", swaperr.ErrNodeRPCError, err)
		}

		var resp struct {
			Fees struct {
				Base float64 `json:"base"`
			} `json:"fees"`
			VSize         int64 `json:"vsize"`
			BIP125Replace bool  `json:"bip125-replaceable"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("%w: decode getmempoolentry: %v", swaperr.ErrNodeRPCError, err)
		}

		var feeRate float64
		if resp.VSize > 0 {
			feeRate = (resp.Fees.Base * 1e8) / float64(resp.VSize)
		}

		return &MempoolEntry{
			FeeRateSatPerVByte: feeRate,
			BIP125Replaceable:  resp.BIP125Replace,
		}, nil
	})
}

// ScanUTXO looks up a single P2WSH descriptor via scantxoutset, used to
// detect confirmed HTLC funding deposits (the confirmed-UTXO path
// alongside the mempool 0-conf path in FundingStatus).
func (c *Client) ScanUTXO(pkScript []byte) (*UTXO, int64, error) {
	desc := fmt.Sprintf("raw(%x)", pkScript)

	type scanResult struct {
		utxo   *UTXO
		height int64
	}
	res, err := swaperr.RetryValue("btc", "scantxoutset", func() (scanResult, error) {
		raw, err := c.rpc.RawRequest("scantxoutset", []json.RawMessage{
			mustMarshal("start"),
			mustMarshal([]string{desc}),
		})
		if err != nil {
			return scanResult{}, fmt.Errorf("%w: scantxoutset: %v", swaperr.ErrNodeRPCError, err)
		}

		var resp struct {
			Success  bool  `json:"success"`
			Height   int64 `json:"height"`
			Unspents []struct {
				TxID   string  `json:"txid"`
				Vout   uint32  `json:"vout"`
				Amount float64 `json:"amount"`
			} `json:"unspents"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return scanResult{}, fmt.Errorf("%w: decode scantxoutset: %v", swaperr.ErrNodeRPCError, err)
		}
		if !resp.Success || len(resp.Unspents) == 0 {
			return scanResult{height: resp.Height}, nil
		}

		u := resp.Unspents[0]
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return scanResult{}, fmt.Errorf("%w: bad txid from scantxoutset: %v", swaperr.ErrNodeRPCError, err)
		}

		amount, err := btcAmountFromFloat(u.Amount)
		if err != nil {
			return scanResult{}, fmt.Errorf("%w: bad amount from scantxoutset: %v", swaperr.ErrNodeRPCError, err)
		}

		return scanResult{utxo: &UTXO{TxID: *hash, Vout: u.Vout, Amount: amount}, height: resp.Height}, nil
	})
	return res.utxo, res.height, err
}

// Broadcast submits a fully-witnessed transaction. "Already in
// mempool/chain" responses from the node are treated as success
// (idempotent claim/refund submission), not an error.
func (c *Client) Broadcast(tx *wire.MsgTx) (*chainhash.Hash, error) {
	return swaperr.RetryValue("btc", "sendrawtransaction", func() (*chainhash.Hash, error) {
		txid, err := c.rpc.SendRawTransaction(tx, false)
		if err != nil {
			if isAlreadyKnown(err) {
				h := tx.TxHash()
				return &h, nil
			}
			return nil, fmt.Errorf("%w: sendrawtransaction: %v", swaperr.ErrNodeRPCError, err)
		}
		return txid, nil
	})
}

// SignRefundWithWallet asks the node's own wallet to sign a refund
// transaction, the fallback path used when the engine does not hold the
// refund private key directly (the Python reference client's
// _sign_refund_3s_wallet, invoked via signrawtransactionwithwallet).
func (c *Client) SignRefundWithWallet(tx *wire.MsgTx) (*wire.MsgTx, bool, error) {
	type signResult struct {
		tx       *wire.MsgTx
		complete bool
	}
	res, err := swaperr.RetryValue("btc", "signrawtransactionwithwallet", func() (signResult, error) {
		signed, complete, err := c.rpc.SignRawTransactionWithWallet(tx)
		if err != nil {
			return signResult{}, fmt.Errorf("%w: signrawtransactionwithwallet: %v", swaperr.ErrNodeRPCError, err)
		}
		return signResult{tx: signed, complete: complete}, nil
	})
	return res.tx, res.complete, err
}

// NewAddress requests a fresh address from the node wallet, used for
// LP-side refund/claim destinations when no externally supplied address
// is configured.
func (c *Client) NewAddress() (string, error) {
	return swaperr.RetryValue("btc", "getnewaddress", func() (string, error) {
		addr, err := c.rpc.GetNewAddress("")
		if err != nil {
			return "", fmt.Errorf("%w: getnewaddress: %v", swaperr.ErrNodeRPCError, err)
		}
		return addr.String(), nil
	})
}

// isAlreadyKnown recognizes the node's "already have transaction" /
// "already in block chain" rejections as a successful idempotent
// resubmission rather than a failure. Matched on message
// text since bitcoind surfaces these as the generic -27/-26 RPC error
// codes with a descriptive string rather than a dedicated code.
func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already have transaction") ||
		strings.Contains(msg, "already in block chain") ||
		strings.Contains(msg, "txn-already-known") ||
		strings.Contains(msg, "txn-already-in-mempool")
}

// btcAmountFromFloat converts a JSON-RPC BTC-denominated float (as
// returned by scantxoutset) into btcutil.Amount satoshis.
func btcAmountFromFloat(btc float64) (btcutil.Amount, error) {
	return btcutil.NewAmount(btc)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
