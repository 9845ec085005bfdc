package watcher

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/flowswap/flowswap-engine/btchtlc"
	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/flowswap/flowswap-engine/swap"
	"github.com/stretchr/testify/require"
)

func buildTestRedeemScript(t *testing.T) (btchtlc.Params, crypto.Secret, crypto.Secret, crypto.Secret, []byte) {
	t.Helper()

	sUser, hUser, err := crypto.GenSecret()
	require.NoError(t, err)
	sLp1, hLp1, err := crypto.GenSecret()
	require.NoError(t, err)
	sLp2, hLp2, err := crypto.GenSecret()
	require.NoError(t, err)

	params := btchtlc.Params{
		HUser:           hUser,
		HLp1:            hLp1,
		HLp2:            hLp2,
		RecipientPubKey: make([]byte, 33),
		RefundPubKey:    make([]byte, 33),
		Timelock:        800000,
	}
	params.RecipientPubKey[0] = 0x02
	params.RefundPubKey[0] = 0x02

	script, err := btchtlc.BuildRedeemScript(params)
	require.NoError(t, err)

	return params, sUser, sLp1, sLp2, script
}

func TestParseOutpoint(t *testing.T) {
	txid, vout, err := parseOutpoint("0000000000000000000000000000000000000000000000000000000000000001:3")
	require.NoError(t, err)
	require.Equal(t, uint32(3), vout)
	require.NotEqual(t, chainhash.Hash{}, txid)

	_, _, err = parseOutpoint("not-an-outpoint")
	require.Error(t, err)
}

// A confirmed-block spend with a matching witness and redeem
// script is recognized and the secrets extracted and verified.
func TestFindSpendInTxsRecognizesClaim(t *testing.T) {
	_, sUser, sLp1, sLp2, script := buildTestRedeemScript(t)

	var fundingTx wire.MsgTx
	fundingTx.Version = 2
	fundingTxid := fundingTx.TxHash()

	spendingTx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(&wire.OutPoint{Hash: fundingTxid, Index: 0}, nil, nil)
	txIn.Witness = btchtlc.BuildClaimWitness([]byte{0x30, 0x44}, sUser, sLp1, sLp2, script)
	spendingTx.AddTxIn(txIn)

	tracked := &TrackedHTLC{
		Ref: swap.HTLCRef{Script: script},
		Hashlocks: swap.HashlockTriple{
			User: crypto.Sha256(sUser[:]),
			Lp1:  crypto.Sha256(sLp1[:]),
			Lp2:  crypto.Sha256(sLp2[:]),
		},
	}

	rs := findSpendInTxs([]*wire.MsgTx{spendingTx}, fundingTxid, 0, tracked)
	require.NotNil(t, rs)
	require.Equal(t, sUser, rs.Secrets.User)
	require.Equal(t, sLp1, rs.Secrets.Lp1)
	require.Equal(t, sLp2, rs.Secrets.Lp2)
}

// A refund-shaped witness on the same outpoint must never be
// mistaken for a 3-secret claim.
func TestFindSpendInTxsIgnoresRefundWitness(t *testing.T) {
	_, sUser, sLp1, sLp2, script := buildTestRedeemScript(t)

	var fundingTx wire.MsgTx
	fundingTxid := fundingTx.TxHash()

	spendingTx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(&wire.OutPoint{Hash: fundingTxid, Index: 0}, nil, nil)
	txIn.Witness = btchtlc.BuildRefundWitness([]byte{0x30, 0x44}, script)
	spendingTx.AddTxIn(txIn)

	tracked := &TrackedHTLC{
		Ref: swap.HTLCRef{Script: script},
		Hashlocks: swap.HashlockTriple{
			User: crypto.Sha256(sUser[:]),
			Lp1:  crypto.Sha256(sLp1[:]),
			Lp2:  crypto.Sha256(sLp2[:]),
		},
	}

	rs := findSpendInTxs([]*wire.MsgTx{spendingTx}, fundingTxid, 0, tracked)
	require.Nil(t, rs)
}

func TestFindSpendInTxsRejectsScriptMismatch(t *testing.T) {
	_, sUser, sLp1, sLp2, script := buildTestRedeemScript(t)
	_, _, _, _, otherScript := buildTestRedeemScript(t)

	var fundingTx wire.MsgTx
	fundingTxid := fundingTx.TxHash()

	spendingTx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(&wire.OutPoint{Hash: fundingTxid, Index: 0}, nil, nil)
	// Witness carries the wrong redeem script as its final element.
	txIn.Witness = btchtlc.BuildClaimWitness([]byte{0x30, 0x44}, sUser, sLp1, sLp2, otherScript)
	spendingTx.AddTxIn(txIn)

	tracked := &TrackedHTLC{Ref: swap.HTLCRef{Script: script}}
	rs := findSpendInTxs([]*wire.MsgTx{spendingTx}, fundingTxid, 0, tracked)
	require.Nil(t, rs)
}

func TestMayClaimCounterLegGatesOnConfirmedBlock(t *testing.T) {
	require.True(t, MayClaimCounterLeg(swap.RevealedSecrets{Source: swap.SourceBTCBlock}))
	require.False(t, MayClaimCounterLeg(swap.RevealedSecrets{Source: swap.SourceBTCMempool}))
	require.False(t, MayClaimCounterLeg(swap.RevealedSecrets{Source: swap.SourceUnknown}))
}

func TestRegistryTrackAndUntrack(t *testing.T) {
	reg := newRegistry()
	reg.put(&TrackedHTLC{SwapID: "swap-1"})
	reg.put(&TrackedHTLC{SwapID: "swap-2"})
	require.Len(t, reg.snapshot(), 2)

	reg.remove("swap-1")
	snap := reg.snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "swap-2", snap[0].SwapID)
}
