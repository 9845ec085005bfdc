// Package btchtlc builds and spends the 3-hashlock P2WSH HTLC used on
// the UTXO leg of a swap: redeem-script construction, witness assembly
// and parsing, pre-signed claims, refunds, funding scans, and fee/dust
// estimation.
package btchtlc

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/flowswap/flowswap-engine/crypto"
)

// Fixed byte offsets within the redeem script, per the canonical
// layout: each hashlock push is preceded by OP_SHA256 (1 byte) and a
// PUSH32 length byte (1 byte), so the 32-byte hash begins 2 bytes after
// the branch's OP_SHA256 and the EQUALVERIFY follows immediately after.
const (
	offHUserStart = 3
	offHUserEnd   = 35
	offHLp1Start  = 38
	offHLp1End    = 70
	offHLp2Start  = 73
	offHLp2End    = 105

	minScriptLen = 105

	pubKeyCompressedLen = 33
)

// Params describes the inputs needed to build a 3-hashlock redeem
// script, mirroring the Python reference client's HTLC3SParams.
type Params struct {
	HUser           crypto.Hashlock
	HLp1            crypto.Hashlock
	HLp2            crypto.Hashlock
	RecipientPubKey []byte // 33-byte compressed pubkey, claim path
	RefundPubKey    []byte // 33-byte compressed pubkey, refund path
	Timelock        int64  // absolute block height
}

// BuildRedeemScript constructs the 3-hashlock redeem script in the
// canonical byte layout:
//
//	OP_IF
//	    OP_SHA256 <H_user> OP_EQUALVERIFY
//	    OP_SHA256 <H_lp1>  OP_EQUALVERIFY
//	    OP_SHA256 <H_lp2>  OP_EQUALVERIFY
//	    <recipient_pubkey> OP_CHECKSIG
//	OP_ELSE
//	    <timelock> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    <refund_pubkey> OP_CHECKSIG
//	OP_ENDIF
//
// The claim branch verifies S_user first, then S_lp1, then S_lp2 — the
// inverse of the witness push order; callers assembling a claim
// witness must push in LIFO order accordingly.
func BuildRedeemScript(p Params) ([]byte, error) {
	if len(p.RecipientPubKey) != pubKeyCompressedLen {
		return nil, fmt.Errorf("recipient pubkey must be %d bytes, got %d",
			pubKeyCompressedLen, len(p.RecipientPubKey))
	}
	if len(p.RefundPubKey) != pubKeyCompressedLen {
		return nil, fmt.Errorf("refund pubkey must be %d bytes, got %d",
			pubKeyCompressedLen, len(p.RefundPubKey))
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(p.HUser[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(p.HLp1[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)

	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(p.HLp2[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)

	builder.AddData(p.RecipientPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(p.Timelock)
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(p.RefundPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)

	script, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("build redeem script: %w", err)
	}

	// Sanity-check our own byte-offset assumptions before handing the
	// script back: the witness parser and VerifyPreimagesAgainstScript
	// both depend on these exact positions.
	if len(script) < minScriptLen {
		return nil, fmt.Errorf("built script shorter than expected (%d bytes)",
			len(script))
	}

	return script, nil
}

// WitnessProgram returns SHA256(redeem_script), the 32-byte witness
// program underlying the HTLC's P2WSH address.
func WitnessProgram(redeemScript []byte) [32]byte {
	return crypto.Sha256(redeemScript)
}

// WitnessScriptHash returns the P2WSH scriptPubKey (`OP_0 <32-byte
// program>`) for redeemScript.
func WitnessScriptHash(redeemScript []byte) ([]byte, error) {
	program := WitnessProgram(redeemScript)

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(program[:])
	return builder.Script()
}

// Address derives the bech32 P2WSH address for redeemScript on the
// given network ("mainnet", "testnet", or "signet" — testnet and
// signet share the "tb" HRP per the Python reference client).
func Address(redeemScript []byte, network string) (string, error) {
	program := WitnessProgram(redeemScript)
	hrp := crypto.Bech32HRP(network)
	return crypto.EncodeWitnessAddress(hrp, 0, program[:])
}

// VerifyPreimagesAgainstScript re-derives H_user/H_lp1/H_lp2 from the
// fixed byte offsets in redeemScript and checks SHA256(secret) against
// each, failing closed before any witness is ever assembled or
// broadcast. Grounded on the Python reference client's
// _verify_preimages_match_script.
func VerifyPreimagesAgainstScript(redeemScript []byte, sUser, sLp1, sLp2 crypto.Secret) error {
	if len(redeemScript) < minScriptLen {
		return fmt.Errorf("redeem script too short for 3-secret HTLC: %d bytes",
			len(redeemScript))
	}

	hUserScript := redeemScript[offHUserStart:offHUserEnd]
	hLp1Script := redeemScript[offHLp1Start:offHLp1End]
	hLp2Script := redeemScript[offHLp2Start:offHLp2End]

	if got := crypto.Sha256(sUser[:]); !bytesEqual(got[:], hUserScript) {
		return fmt.Errorf("S_user does not match H_user embedded in script")
	}
	if got := crypto.Sha256(sLp1[:]); !bytesEqual(got[:], hLp1Script) {
		return fmt.Errorf("S_lp1 does not match H_lp1 embedded in script")
	}
	if got := crypto.Sha256(sLp2[:]); !bytesEqual(got[:], hLp2Script) {
		return fmt.Errorf("S_lp2 does not match H_lp2 embedded in script")
	}

	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
