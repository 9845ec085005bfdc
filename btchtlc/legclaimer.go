package btchtlc

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/flowswap/flowswap-engine/swap"
)

// LegClaimer adapts Client to swap.LegClaimer. Unlike the native-rail
// and EVM legs, claiming the BTC leg requires presigning a witness
// transaction against the tracked redeem script before broadcast.
type LegClaimer struct {
	client       *Client
	claimPrivKey *btcec.PrivateKey
	destination  []byte
	feeRate      int64
}

func NewLegClaimer(client *Client, claimPrivKey *btcec.PrivateKey, destination []byte, feeRateSatPerVByte int64) *LegClaimer {
	return &LegClaimer{
		client:       client,
		claimPrivKey: claimPrivKey,
		destination:  destination,
		feeRate:      feeRateSatPerVByte,
	}
}

func (c *LegClaimer) ClaimLeg(ctx context.Context, ref *swap.HTLCRef, secrets swap.SecretTriple) error {
	txid, vout, err := parseOutpoint(ref.Identifier)
	if err != nil {
		return fmt.Errorf("parse btc leg outpoint %q: %w", ref.Identifier, err)
	}

	utxo := UTXO{TxID: txid, Vout: vout, Amount: btcutil.Amount(ref.Amount)}
	presigned, err := PresignClaim(utxo, ref.Script, c.destination, c.claimPrivKey, c.feeRate)
	if err != nil {
		return fmt.Errorf("presign btc claim: %w", err)
	}

	tx, err := AssembleAndBroadcast(presigned, secrets.User, secrets.Lp1, secrets.Lp2)
	if err != nil {
		return fmt.Errorf("assemble btc claim: %w", err)
	}

	_, err = c.client.Broadcast(tx)
	return err
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
