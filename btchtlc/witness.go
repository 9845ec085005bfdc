package btchtlc

import (
	"fmt"

	"github.com/flowswap/flowswap-engine/crypto"
)

// claimBranchSelector and refundBranchSelector select the OP_IF / OP_ELSE
// branch of the redeem script; the claim witness's selector occupies
// stack position 4 counting from the signature at position 0.
var (
	claimBranchSelector  = []byte{0x01}
	refundBranchSelector = []byte{}
)

const (
	claimWitnessLen = 6
	secretLen       = crypto.SecretSize
)

// BuildClaimWitness assembles the claim witness stack in the exact
// order required by the redeem script's verification order: the script
// pops S_user first, so the witness must push S_user last. The
// final stack (bottom to top / index 0 to 5) is:
//
//	[sig, S_lp2, S_lp1, S_user, 0x01, redeem_script]
func BuildClaimWitness(sig []byte, sUser, sLp1, sLp2 crypto.Secret, redeemScript []byte) [][]byte {
	return [][]byte{
		sig,
		sLp2[:],
		sLp1[:],
		sUser[:],
		claimBranchSelector,
		redeemScript,
	}
}

// BuildRefundWitness assembles the refund witness: `[sig, 0x (empty),
// redeem_script]`. The spending transaction's nLockTime must equal the
// HTLC's absolute timelock and its input sequence must be
// 0xFFFFFFFE to enable CLTV evaluation; BuildRefundWitness only builds
// the witness stack, the caller is responsible for those transaction
// fields (see PrepareRefundTx).
func BuildRefundWitness(sig []byte, redeemScript []byte) [][]byte {
	return [][]byte{
		sig,
		refundBranchSelector,
		redeemScript,
	}
}

// ExtractedSecrets holds the three preimages recovered from a claim
// witness.
type ExtractedSecrets struct {
	SUser crypto.Secret
	SLp1  crypto.Secret
	SLp2  crypto.Secret
}

// ErrNotClaimWitness is returned by ParseClaimWitness when the witness
// stack is shaped like a refund (or is otherwise not a 3-secret claim),
// which is an expected, non-error outcome for the caller: refund
// witnesses are recognized and silently skipped.
var ErrNotClaimWitness = fmt.Errorf("btchtlc: not a 3-secret claim witness")

// ParseClaimWitness parses a serialized spending input's witness stack
// per BIP-144 and the claim witness's fixed layout. It returns ErrNotClaimWitness
// (not a hard error) when the stack is a refund witness or otherwise
// doesn't match the claim shape; when the stack looks like a claim but a
// secret is not 32 bytes, the error wraps ErrNotClaimWitness and names
// the lengths.
func ParseClaimWitness(witness [][]byte) (*ExtractedSecrets, error) {
	if len(witness) != claimWitnessLen {
		return nil, ErrNotClaimWitness
	}

	selector := witness[4]
	switch {
	case len(selector) == 1 && selector[0] == 0x01:
		// Claim branch; continue below.
	case len(selector) == 0:
		// Refund branch (ELSE) — not an error, just not a claim.
		return nil, ErrNotClaimWitness
	default:
		return nil, ErrNotClaimWitness
	}

	sLp2, sLp1, sUser := witness[1], witness[2], witness[3]
	if len(sUser) != secretLen || len(sLp1) != secretLen || len(sLp2) != secretLen {
		return nil, fmt.Errorf("%w: secret length mismatch (user=%d lp1=%d lp2=%d)",
			ErrNotClaimWitness, len(sUser), len(sLp1), len(sLp2))
	}

	var out ExtractedSecrets
	copy(out.SUser[:], sUser)
	copy(out.SLp1[:], sLp1)
	copy(out.SLp2[:], sLp2)

	return &out, nil
}
