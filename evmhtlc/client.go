// Package evmhtlc is the client for the EVM leg's 3-secret HTLC
// contract: ERC-20 allowance management, permissionless claim,
// timelock-gated refund, and htlcId extraction from a create
// transaction's receipt.
package evmhtlc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// GasBufferNumerator/Denominator reproduce the Python reference client's
// `gas_price = int(w3.eth.gas_price * 1.1)` replacement buffer applied
// to every transaction the engine submits.
const (
	GasBufferNumerator   = 11
	GasBufferDenominator = 10

	approveGasLimit = 100_000
	createGasLimit  = 350_000
	claimGasLimit   = 200_000
	refundGasLimit  = 150_000

	maxApproval = "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

// Client wraps an ethclient connection scoped to one deployed HTLC3S
// contract. It holds no signing key: every transaction-submitting
// method takes the key to sign with, so one Client serves creates,
// claims and refunds alike. Unlike a
// stateful per-session client, this engine keeps per-swap state in
// swap.Swap and treats Client as a stateless RPC façade.
type Client struct {
	eth             *ethclient.Client
	contractAddress common.Address
	chainID         *big.Int
}

func NewClient(ctx context.Context, rpcURL string, contractAddress common.Address, chainID *big.Int) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial evm rpc: %v", swaperr.ErrNodeRPCError, err)
	}
	return &Client{eth: eth, contractAddress: contractAddress, chainID: chainID}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// BlockNumber returns the current chain head height, used by the
// watcher to bound how far back it scans for a claim transaction.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return swaperr.RetryValue("evm", "eth_blockNumber", func() (uint64, error) {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: eth_blockNumber: %v", swaperr.ErrNodeRPCError, err)
		}
		return n, nil
	})
}

func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	base, err := swaperr.RetryValue("evm", "eth_gasPrice", func() (*big.Int, error) {
		base, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: suggest gas price: %v", swaperr.ErrNodeRPCError, err)
		}
		return base, nil
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Div(new(big.Int).Mul(base, big.NewInt(GasBufferNumerator)), big.NewInt(GasBufferDenominator)), nil
}

func (c *Client) pendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return swaperr.RetryValue("evm", "eth_getTransactionCount", func() (uint64, error) {
		nonce, err := c.eth.PendingNonceAt(ctx, addr)
		if err != nil {
			return 0, fmt.Errorf("%w: pending nonce: %v", swaperr.ErrNodeRPCError, err)
		}
		return nonce, nil
	})
}

// signAndSend builds, signs, and submits a legacy transaction using a
// bind.TransactOpts the same way an abigen-generated contract binding
// would, even though this client packs call data from the raw ABI
// itself rather than from generated Go method stubs.
func (c *Client) signAndSend(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.pendingNonce(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: build transactor: %v", swaperr.ErrKeyUnavailable, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := auth.Signer(from, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: sign tx: %v", swaperr.ErrKeyUnavailable, err)
	}

	err = swaperr.Retry("evm", "eth_sendRawTransaction", func() error {
		if err := c.eth.SendTransaction(ctx, signed); err != nil {
			return fmt.Errorf("%w: send tx: %v", swaperr.ErrNodeRPCError, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (c *Client) call(ctx context.Context, data []byte) ([]byte, error) {
	return swaperr.RetryValue("evm", "eth_call", func() ([]byte, error) {
		msg := ethereum.CallMsg{To: &c.contractAddress, Data: data}
		out, err := c.eth.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: eth_call: %v", swaperr.ErrNodeRPCError, err)
		}
		return out, nil
	})
}

// EnsureAllowance checks the ERC-20 allowance the HTLC contract holds
// over owner's tokens and, only if it is insufficient, submits an
// approve transaction for the maximum approval amount — matching the
// Python reference client's `if allowance < amount_wei: approve(...)`
// gate, which avoids a redundant approve transaction on every create
// call.
func (c *Client) EnsureAllowance(ctx context.Context, token common.Address, key *ecdsa.PrivateKey, amount *big.Int) error {
	owner := crypto.PubkeyToAddress(key.PublicKey)

	data, err := erc20ABI.Pack("allowance", owner, c.contractAddress)
	if err != nil {
		return fmt.Errorf("pack allowance: %w", err)
	}
	out, err := c.callAt(ctx, token, data)
	if err != nil {
		return err
	}

	vals, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return fmt.Errorf("unpack allowance: %w", err)
	}
	allowance := vals[0].(*big.Int)

	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	maxAmount, _ := new(big.Int).SetString(maxApproval[2:], 16)
	approveData, err := erc20ABI.Pack("approve", c.contractAddress, maxAmount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	tx, err := c.signAndSend(ctx, key, token, approveData, approveGasLimit)
	if err != nil {
		return err
	}

	log.Infof("submitted erc20 approve tx %s", tx.Hash().Hex())
	return nil
}

func (c *Client) callAt(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return swaperr.RetryValue("evm", "eth_call", func() ([]byte, error) {
		msg := ethereum.CallMsg{To: &to, Data: data}
		out, err := c.eth.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: eth_call: %v", swaperr.ErrNodeRPCError, err)
		}
		return out, nil
	})
}

// Create submits the HTLC3S create() transaction. token's allowance is
// checked (and topped up if needed) first via EnsureAllowance.
func (c *Client) Create(ctx context.Context, key *ecdsa.PrivateKey, recipient, token common.Address,
	amount *big.Int, hUser, hLp1, hLp2 [32]byte, timelock *big.Int) (*types.Transaction, error) {

	if err := c.EnsureAllowance(ctx, token, key, amount); err != nil {
		return nil, err
	}

	data, err := htlc3sABI.Pack("create", recipient, token, amount, hUser, hLp1, hLp2, timelock)
	if err != nil {
		return nil, fmt.Errorf("pack create: %w", err)
	}

	return c.signAndSend(ctx, key, c.contractAddress, data, createGasLimit)
}

// Claim submits claim(), which is permissionless: key need not belong
// to the HTLC's stored recipient, only to whoever is willing to pay
// gas to reveal the secrets.
func (c *Client) Claim(ctx context.Context, key *ecdsa.PrivateKey, htlcID, sUser, sLp1, sLp2 [32]byte) (*types.Transaction, error) {
	data, err := htlc3sABI.Pack("claim", htlcID, sUser, sLp1, sLp2)
	if err != nil {
		return nil, fmt.Errorf("pack claim: %w", err)
	}
	return c.signAndSend(ctx, key, c.contractAddress, data, claimGasLimit)
}

// Refund submits refund(); the contract itself enforces the timelock.
func (c *Client) Refund(ctx context.Context, key *ecdsa.PrivateKey, htlcID [32]byte) (*types.Transaction, error) {
	data, err := htlc3sABI.Pack("refund", htlcID)
	if err != nil {
		return nil, fmt.Errorf("pack refund: %w", err)
	}
	return c.signAndSend(ctx, key, c.contractAddress, data, refundGasLimit)
}

// HTLCInfo mirrors getHTLC's return tuple.
type HTLCInfo struct {
	Sender    common.Address
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
	HUser     [32]byte
	HLp1      [32]byte
	HLp2      [32]byte
	Timelock  *big.Int
	Claimed   bool
	Refunded  bool
}

func (c *Client) GetHTLC(ctx context.Context, htlcID [32]byte) (*HTLCInfo, error) {
	data, err := htlc3sABI.Pack("getHTLC", htlcID)
	if err != nil {
		return nil, fmt.Errorf("pack getHTLC: %w", err)
	}
	out, err := c.call(ctx, data)
	if err != nil {
		return nil, err
	}

	vals, err := htlc3sABI.Unpack("getHTLC", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getHTLC: %w", err)
	}

	info := &HTLCInfo{
		Sender:    vals[0].(common.Address),
		Recipient: vals[1].(common.Address),
		Token:     vals[2].(common.Address),
		Amount:    vals[3].(*big.Int),
		HUser:     vals[4].([32]byte),
		HLp1:      vals[5].([32]byte),
		HLp2:      vals[6].([32]byte),
		Timelock:  vals[7].(*big.Int),
		Claimed:   vals[8].(bool),
		Refunded:  vals[9].(bool),
	}
	if info.Sender == (common.Address{}) {
		return nil, nil
	}
	return info, nil
}

func (c *Client) CanClaim(ctx context.Context, htlcID, sUser, sLp1, sLp2 [32]byte) (bool, error) {
	data, err := htlc3sABI.Pack("canClaim", htlcID, sUser, sLp1, sLp2)
	if err != nil {
		return false, fmt.Errorf("pack canClaim: %w", err)
	}
	out, err := c.call(ctx, data)
	if err != nil {
		return false, err
	}
	vals, err := htlc3sABI.Unpack("canClaim", out)
	if err != nil {
		return false, fmt.Errorf("unpack canClaim: %w", err)
	}
	return vals[0].(bool), nil
}

func (c *Client) CanRefund(ctx context.Context, htlcID [32]byte) (bool, error) {
	data, err := htlc3sABI.Pack("canRefund", htlcID)
	if err != nil {
		return false, fmt.Errorf("pack canRefund: %w", err)
	}
	out, err := c.call(ctx, data)
	if err != nil {
		return false, err
	}
	vals, err := htlc3sABI.Unpack("canRefund", out)
	if err != nil {
		return false, fmt.Errorf("unpack canRefund: %w", err)
	}
	return vals[0].(bool), nil
}
