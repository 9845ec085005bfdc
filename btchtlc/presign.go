package btchtlc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/flowswap/flowswap-engine/swaperr"
)

// UTXO identifies a funding output to spend.
type UTXO struct {
	TxID   chainhash.Hash
	Vout   uint32
	Amount btcutil.Amount
}

func (u UTXO) outPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxID, Index: u.Vout}
}

// PresignedClaim is the output of PresignClaim: an unsigned-witness
// claim transaction plus the signature that commits to it, computed
// before any of the three secrets are known. The same
// PresignedClaim.Signature is produced regardless of which secret
// triple eventually fills the witness, because the segwit v0 sighash
// does not cover the witness stack.
type PresignedClaim struct {
	Tx           *wire.MsgTx
	Signature    []byte
	RedeemScript []byte
	PkScript     []byte
	Amount       btcutil.Amount
}

// PresignClaim builds the claim transaction's single output and input,
// and signs it with claimPrivKey. The resulting transaction carries no
// witness yet; AssembleAndBroadcast fills it in once the three secrets
// are available. Grounded on the Python reference client's
// presign_claim_3s, adapted from python-bitcoinlib's SignatureHash to
// txscript's RawTxInWitnessSignature.
func PresignClaim(utxo UTXO, redeemScript []byte, destination []byte,
	claimPrivKey *btcec.PrivateKey, feeRateSatPerVByte int64) (*PresignedClaim, error) {

	outAmount, ok := ClaimOutputAmount(utxo.Amount, redeemScript, feeRateSatPerVByte)
	if !ok {
		return nil, fmt.Errorf("%w: claim output %d", swaperr.ErrDust, outAmount)
	}

	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, fmt.Errorf("derive htlc pkscript: %w", err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: utxo.TxID, Index: utxo.Vout}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(outAmount), destination))

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, int64(utxo.Amount))
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, 0, int64(utxo.Amount), redeemScript,
		txscript.SigHashAll, claimPrivKey,
	)
	if err != nil {
		return nil, fmt.Errorf("sign claim tx: %w", err)
	}

	return &PresignedClaim{
		Tx:           tx,
		Signature:    sig,
		RedeemScript: redeemScript,
		PkScript:     pkScript,
		Amount:       utxo.Amount,
	}, nil
}

// AssembleAndBroadcast fills in the witness of a PresignedClaim using
// the now-known secret triple, after re-verifying the secrets against
// the embedded redeem script (VerifyPreimagesAgainstScript) so a
// corrupted secret set fails closed before touching the network. It
// returns the fully-witnessed transaction ready for submission; the
// caller is responsible for the actual RPC broadcast (see Client.Broadcast).
func AssembleAndBroadcast(p *PresignedClaim, sUser, sLp1, sLp2 crypto.Secret) (*wire.MsgTx, error) {
	if err := VerifyPreimagesAgainstScript(p.RedeemScript, sUser, sLp1, sLp2); err != nil {
		return nil, fmt.Errorf("refuse to assemble claim: %w", err)
	}

	witness := BuildClaimWitness(p.Signature, sUser, sLp1, sLp2, p.RedeemScript)
	p.Tx.TxIn[0].Witness = witness

	return p.Tx, nil
}

// RefundSequence enables OP_CHECKLOCKTIMEVERIFY evaluation:
// every refund input uses nSequence = 0xFFFFFFFE.
const RefundSequence = wire.MaxTxInSequenceNum - 1

// PrepareRefundTx constructs (but does not sign) a refund transaction:
// nLockTime set to the HTLC's absolute timelock, and the sole input's
// sequence set to RefundSequence so CLTV is honored.
func PrepareRefundTx(utxo UTXO, redeemScript []byte, destination []byte,
	timelock uint32, feeRateSatPerVByte int64) (*wire.MsgTx, error) {

	outAmount, ok := RefundOutputAmount(utxo.Amount, redeemScript, feeRateSatPerVByte)
	if !ok {
		return nil, fmt.Errorf("%w: refund output %d", swaperr.ErrDust, outAmount)
	}

	tx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(&wire.OutPoint{Hash: utxo.TxID, Index: utxo.Vout}, nil, nil)
	txIn.Sequence = RefundSequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(outAmount), destination))
	tx.LockTime = timelock

	return tx, nil
}

// SignRefundTx signs a refund transaction built by PrepareRefundTx with
// the direct WIF-equivalent private key path (the Python reference
// client's _sign_refund_3s). A node-wallet signing fallback
// (_sign_refund_3s_wallet in that client, used when no raw key is
// configured) belongs to the RPC adapter layer, since it calls
// signrawtransactionwithwallet rather than signing locally — see
// Client.SignRefundWithWallet.
func SignRefundTx(tx *wire.MsgTx, utxo UTXO, redeemScript []byte, refundPrivKey *btcec.PrivateKey) error {
	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return fmt.Errorf("derive htlc pkscript: %w", err)
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, int64(utxo.Amount))
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, 0, int64(utxo.Amount), redeemScript,
		txscript.SigHashAll, refundPrivKey,
	)
	if err != nil {
		return fmt.Errorf("sign refund tx: %w", err)
	}

	tx.TxIn[0].Witness = BuildRefundWitness(sig, redeemScript)
	return nil
}
