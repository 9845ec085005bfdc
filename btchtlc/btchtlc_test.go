package btchtlc

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) (Params, crypto.Secret, crypto.Secret, crypto.Secret) {
	t.Helper()

	sUser, hUser, err := crypto.GenSecret()
	require.NoError(t, err)
	sLp1, hLp1, err := crypto.GenSecret()
	require.NoError(t, err)
	sLp2, hLp2, err := crypto.GenSecret()
	require.NoError(t, err)

	_, recipientPub := btcec.PrivKeyFromBytes([]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
		0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20,
	})
	_, refundPub := btcec.PrivKeyFromBytes([]byte{
		0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28,
		0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f, 0x30,
		0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38,
		0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f, 0x40,
	})

	return Params{
		HUser:           hUser,
		HLp1:            hLp1,
		HLp2:            hLp2,
		RecipientPubKey: recipientPub.SerializeCompressed(),
		RefundPubKey:    refundPub.SerializeCompressed(),
		Timelock:        800000,
	}, sUser, sLp1, sLp2
}

// Byte-offset layout must exactly match the fixed redeem-script
// format: this golden-vector test catches any accidental
// script-builder drift that would silently break
// VerifyPreimagesAgainstScript and the witness parser.
func TestBuildRedeemScriptByteLayout(t *testing.T) {
	params, _, _, _ := testParams(t)

	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	require.Equal(t, byte(txscript.OP_IF), script[0])
	require.Equal(t, byte(txscript.OP_SHA256), script[1])
	require.Equal(t, byte(0x20), script[2])
	require.Equal(t, params.HUser[:], script[offHUserStart:offHUserEnd])
	require.Equal(t, byte(txscript.OP_EQUALVERIFY), script[offHUserEnd])

	require.Equal(t, byte(txscript.OP_SHA256), script[36])
	require.Equal(t, byte(0x20), script[37])
	require.Equal(t, params.HLp1[:], script[offHLp1Start:offHLp1End])
	require.Equal(t, byte(txscript.OP_EQUALVERIFY), script[offHLp1End])

	require.Equal(t, byte(txscript.OP_SHA256), script[71])
	require.Equal(t, byte(0x20), script[72])
	require.Equal(t, params.HLp2[:], script[offHLp2Start:offHLp2End])
	require.Equal(t, byte(txscript.OP_EQUALVERIFY), script[offHLp2End])

	require.Equal(t, byte(pubKeyCompressedLen), script[106])
	require.Equal(t, params.RecipientPubKey, script[107:140])
	require.Equal(t, byte(txscript.OP_CHECKSIG), script[140])
	require.Equal(t, byte(txscript.OP_ELSE), script[141])
}

func TestVerifyPreimagesAgainstScript(t *testing.T) {
	params, sUser, sLp1, sLp2 := testParams(t)

	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	require.NoError(t, VerifyPreimagesAgainstScript(script, sUser, sLp1, sLp2))

	wrong, _, err := crypto.GenSecret()
	require.NoError(t, err)
	err = VerifyPreimagesAgainstScript(script, wrong, sLp1, sLp2)
	require.Error(t, err)
}

// R2: build -> parse witness round trip recovers the original secrets.
func TestClaimWitnessRoundTrip(t *testing.T) {
	params, sUser, sLp1, sLp2 := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	sig := []byte{0x30, 0x44, 0x02, 0x20} // placeholder DER-shaped sig bytes
	witness := BuildClaimWitness(sig, sUser, sLp1, sLp2, script)

	extracted, err := ParseClaimWitness(witness)
	require.NoError(t, err)
	require.Equal(t, sUser, extracted.SUser)
	require.Equal(t, sLp1, extracted.SLp1)
	require.Equal(t, sLp2, extracted.SLp2)

	require.NoError(t, VerifyPreimagesAgainstScript(script, extracted.SUser, extracted.SLp1, extracted.SLp2))
}

func TestParseClaimWitnessRejectsRefundShape(t *testing.T) {
	params, _, _, _ := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	sig := []byte{0x30, 0x44}
	refundWitness := BuildRefundWitness(sig, script)

	_, err = ParseClaimWitness(refundWitness)
	require.ErrorIs(t, err, ErrNotClaimWitness)
}

func TestParseClaimWitnessRejectsBadSecretLength(t *testing.T) {
	params, sUser, sLp1, _ := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	witness := [][]byte{
		{0x30}, sLp1[:8], sLp1[:], sUser[:], {0x01}, script,
	}
	_, err = ParseClaimWitness(witness)
	require.Error(t, err)
}

// The same claim signature is valid regardless of which secret
// triple eventually fills the witness, since the segwit v0 sighash
// never covers witness data.
func TestPresignSignatureIndependentOfSecrets(t *testing.T) {
	params, sUser, sLp1, sLp2 := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	claimKey, _ := btcec.PrivKeyFromBytes(bytesOfByte(0x55))

	var txid wire.MsgTx
	txid.Version = 2
	hash := txid.TxHash()

	utxo := UTXO{TxID: hash, Vout: 0, Amount: 100000}
	dest, err := WitnessScriptHash(script)
	require.NoError(t, err)

	presigned, err := PresignClaim(utxo, script, dest, claimKey, 10)
	require.NoError(t, err)

	tx1, err := AssembleAndBroadcast(presigned, sUser, sLp1, sLp2)
	require.NoError(t, err)
	sigBefore := append([]byte{}, presigned.Signature...)

	presigned2, err := PresignClaim(utxo, script, dest, claimKey, 10)
	require.NoError(t, err)
	tx2, err := AssembleAndBroadcast(presigned2, sUser, sLp1, sLp2)
	require.NoError(t, err)

	require.Equal(t, sigBefore, presigned2.Signature)
	require.Equal(t, tx1.TxIn[0].Witness[0], tx2.TxIn[0].Witness[0])
}

func TestAssembleRefusesWrongSecrets(t *testing.T) {
	params, _, sLp1, sLp2 := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	claimKey, _ := btcec.PrivKeyFromBytes(bytesOfByte(0x77))
	var tx wire.MsgTx
	tx.Version = 2
	hash := tx.TxHash()
	utxo := UTXO{TxID: hash, Vout: 0, Amount: 100000}
	dest, err := WitnessScriptHash(script)
	require.NoError(t, err)

	presigned, err := PresignClaim(utxo, script, dest, claimKey, 10)
	require.NoError(t, err)

	wrong, _, err := crypto.GenSecret()
	require.NoError(t, err)

	_, err = AssembleAndBroadcast(presigned, wrong, sLp1, sLp2)
	require.Error(t, err)
}

// Scenario 6: a claim on an input too small to clear the dust threshold
// after fees must be refused before any signature is produced.
func TestPresignClaimRefusesDustOutput(t *testing.T) {
	params, _, _, _ := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	claimKey, _ := btcec.PrivKeyFromBytes(bytesOfByte(0x99))
	var tx wire.MsgTx
	tx.Version = 2
	hash := tx.TxHash()

	// Tiny UTXO: fee alone exceeds the amount, let alone dust.
	utxo := UTXO{TxID: hash, Vout: 0, Amount: btcutil.Amount(100)}
	dest, err := WitnessScriptHash(script)
	require.NoError(t, err)

	_, err = PresignClaim(utxo, script, dest, claimKey, 10)
	require.Error(t, err)
}

func TestPrepareRefundTxSetsLockTimeAndSequence(t *testing.T) {
	params, _, _, _ := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	var tx wire.MsgTx
	tx.Version = 2
	hash := tx.TxHash()
	utxo := UTXO{TxID: hash, Vout: 0, Amount: 100000}
	dest, err := WitnessScriptHash(script)
	require.NoError(t, err)

	refundTx, err := PrepareRefundTx(utxo, script, dest, uint32(params.Timelock), 10)
	require.NoError(t, err)
	require.Equal(t, uint32(params.Timelock), refundTx.LockTime)
	require.Equal(t, RefundSequence, refundTx.TxIn[0].Sequence)
}

func TestEstimateFeesMatchFormula(t *testing.T) {
	script := make([]byte, 148)
	require.Equal(t, int64(180+148/4), EstimateClaimVSize(script))
	require.Equal(t, int64(120+148/4), EstimateRefundVSize(script))
}

func TestAddressRoundTrip(t *testing.T) {
	params, _, _, _ := testParams(t)
	script, err := BuildRedeemScript(params)
	require.NoError(t, err)

	addr, err := Address(script, "testnet")
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	hrp, version, program, err := crypto.DecodeWitnessAddress(addr)
	require.NoError(t, err)
	require.Equal(t, "tb", hrp)
	require.Equal(t, byte(0), version)

	expected := WitnessProgram(script)
	require.Equal(t, expected[:], program)
}

func bytesOfByte(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}
