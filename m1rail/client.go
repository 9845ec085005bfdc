// Package m1rail adapts the native settlement rail's htlc3s_* JSON-RPC
// surface to the 3-secret swap protocol: HTLC creation with optional
// covenant destination, idempotent claim/refund, and receipt sourcing
// that converts free balance into a spendable receipt on demand.
package m1rail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// Client wraps a JSON-RPC connection to the settlement rail node. The
// rail's RPC transport is the same HTTP-POST JSON-RPC 1.0 style as a
// bitcoind node, so the client reuses rpcclient's connection and raw
// request machinery rather than hand-rolling an HTTP client, exactly
// as btchtlc.Client does for the UTXO leg.
type Client struct {
	rpc *rpcclient.Client
}

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

func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// call marshals params and issues the JSON-RPC request, retrying
// Node-class failures (dropped connection, node timeout, momentarily
// unfunded wallet) with bounded jittered backoff before surfacing an
// error to the caller.
func (c *Client) call(method string, params ...interface{}) (json.RawMessage, error) {
	raw := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal %s param %d: %w", method, i, err)
		}
		raw[i] = b
	}

	return swaperr.RetryValue("m1", method, func() (json.RawMessage, error) {
		resp, err := c.rpc.RawRequest(method, raw)
		if err != nil {
			if isAlreadyClaimedOrRefunded(err) {
				return nil, nil
			}
			return nil, classifyRPCError(method, err)
		}
		return resp, nil
	})
}

func classifyRPCError(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient"):
		return fmt.Errorf("%w: %s: %v", swaperr.ErrInsufficientFunds, method, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %s: %v", swaperr.ErrNodeTimeout, method, err)
	case strings.Contains(msg, "not expired") || strings.Contains(msg, "timelock"):
		return fmt.Errorf("%w: %s: %v", swaperr.ErrTimelockNotExpired, method, err)
	default:
		return fmt.Errorf("%w: %s: %v", swaperr.ErrNodeRPCError, method, err)
	}
}

// isAlreadyClaimedOrRefunded recognizes the rail's idempotent-op
// rejection text and treats it as success: the reveal already
// happened, which is what the protocol cares about.
func isAlreadyClaimedOrRefunded(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already claimed") || strings.Contains(msg, "already refunded")
}

// CreateHTLC calls htlc3s_create, locking receiptOutpoint into a
// 3-hashlock HTLC. When covenant is non-nil the HTLC is covenanted: the
// claimed output is forced to CovenantDestAddress.
func (c *Client) CreateHTLC(receiptOutpoint, hUser, hLp1, hLp2, claimAddress string,
	expiryBlocks int64, covenant *CovenantParams) (*CreateResult, error) {

	params := []interface{}{receiptOutpoint, hUser, hLp1, hLp2, claimAddress, expiryBlocks}
	if covenant != nil {
		params = append(params, covenant.TemplateCommitment, covenant.CovenantDestAddress)
	}

	raw, err := c.call("htlc3s_create", params...)
	if err != nil {
		return nil, err
	}

	var res CreateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode htlc3s_create: %v", swaperr.ErrNodeRPCError, err)
	}
	return &res, nil
}

// Claim calls htlc3s_claim with the three preimages. A node-reported
// "already claimed" is treated as success (result is nil, err is nil);
// callers must not treat a nil result as a hard failure.
func (c *Client) Claim(htlcOutpoint, sUser, sLp1, sLp2 string) (*ClaimResult, error) {
	raw, err := c.call("htlc3s_claim", htlcOutpoint, sUser, sLp1, sLp2)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var res ClaimResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode htlc3s_claim: %v", swaperr.ErrNodeRPCError, err)
	}
	return &res, nil
}

// Refund calls htlc3s_refund. The rail itself enforces the expiry
// check and surfaces it as a timelock error, which classifyRPCError
// maps to swaperr.ErrTimelockNotExpired so the caller can distinguish
// "too early" from a generic RPC failure without retrying.
func (c *Client) Refund(htlcOutpoint string) (*ClaimResult, error) {
	raw, err := c.call("htlc3s_refund", htlcOutpoint)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var res ClaimResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: decode htlc3s_refund: %v", swaperr.ErrNodeRPCError, err)
	}
	return &res, nil
}

// GetHTLC calls htlc3s_get.
func (c *Client) GetHTLC(htlcOutpoint string) (*Record, error) {
	raw, err := c.call("htlc3s_get", htlcOutpoint)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode htlc3s_get: %v", swaperr.ErrNodeRPCError, err)
	}
	rec.Outpoint = htlcOutpoint
	return &rec, nil
}

// ListHTLCs calls htlc3s_list, optionally filtered by status
// ("active", "claimed", "refunded"); an empty status lists all.
func (c *Client) ListHTLCs(status string) ([]Record, error) {
	var raw json.RawMessage
	var err error
	if status == "" {
		raw, err = c.call("htlc3s_list")
	} else {
		raw, err = c.call("htlc3s_list", status)
	}
	if err != nil {
		return nil, err
	}

	var recs []Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("%w: decode htlc3s_list: %v", swaperr.ErrNodeRPCError, err)
	}
	return recs, nil
}

// receipt is the subset of list_m1_receipts used by EnsureReceipt.
type receipt struct {
	Outpoint string `json:"outpoint"`
	Amount   int64  `json:"amount"`
}

func (c *Client) listReceipts() ([]receipt, error) {
	raw, err := c.call("list_m1_receipts")
	if err != nil {
		return nil, err
	}

	var recs []receipt
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("%w: decode list_m1_receipts: %v", swaperr.ErrNodeRPCError, err)
	}
	return recs, nil
}

// freeBalance calls getbalance and returns the spendable M0 balance,
// in sats, net of anything already locked.
func (c *Client) freeBalance() (int64, error) {
	raw, err := c.call("getbalance")
	if err != nil {
		return 0, err
	}

	var resp struct {
		M0     int64 `json:"m0"`
		Locked int64 `json:"locked"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		// getbalance may return a bare integer instead of an object.
		var flat int64
		if err2 := json.Unmarshal(raw, &flat); err2 != nil {
			return 0, fmt.Errorf("%w: decode getbalance: %v", swaperr.ErrNodeRPCError, err)
		}
		return flat, nil
	}
	return resp.M0 - resp.Locked, nil
}

// lock calls lock(amount), converting M0 into a spendable M1 receipt.
func (c *Client) lock(amountSats int64) (string, error) {
	raw, err := c.call("lock", amountSats)
	if err != nil {
		return "", err
	}

	var resp struct {
		TxID string `json:"txid"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode lock: %v", swaperr.ErrNodeRPCError, err)
	}
	if resp.TxID == "" {
		return "", fmt.Errorf("%w: lock returned no txid", swaperr.ErrNodeRPCError)
	}
	return resp.TxID, nil
}

// BlockCount calls getblockcount, used by the refund-timing guard and
// the watcher's expiry checks on the native rail.
func (c *Client) BlockCount() (int64, error) {
	raw, err := c.call("getblockcount")
	if err != nil {
		return 0, err
	}
	var height int64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, fmt.Errorf("%w: decode getblockcount: %v", swaperr.ErrNodeRPCError, err)
	}
	return height, nil
}
