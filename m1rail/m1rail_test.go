package m1rail

import (
	"encoding/json"
	"testing"

	"github.com/flowswap/flowswap-engine/swaperr"
	"github.com/stretchr/testify/require"
)

func TestIsAlreadyClaimedOrRefunded(t *testing.T) {
	require.True(t, isAlreadyClaimedOrRefunded(errString("htlc already claimed")))
	require.True(t, isAlreadyClaimedOrRefunded(errString("HTLC Already Refunded")))
	require.False(t, isAlreadyClaimedOrRefunded(errString("insufficient balance")))
}

func TestClassifyRPCError(t *testing.T) {
	require.ErrorIs(t, classifyRPCError("lock", errString("insufficient balance")), swaperr.ErrInsufficientFunds)
	require.ErrorIs(t, classifyRPCError("htlc3s_refund", errString("timelock not expired")), swaperr.ErrTimelockNotExpired)
	require.ErrorIs(t, classifyRPCError("htlc3s_create", errString("connection timeout")), swaperr.ErrNodeTimeout)
	require.ErrorIs(t, classifyRPCError("htlc3s_get", errString("unknown outpoint")), swaperr.ErrNodeRPCError)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := Record{
		Outpoint:     "abc:0",
		HashlockUser: "aa",
		HashlockLp1:  "bb",
		HashlockLp2:  "cc",
		Amount:       100000,
		ClaimAddress: "m1addr1",
		ExpiryHeight: 120,
		Status:       "active",
		HasCovenant:  true,
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, rec, decoded)
}

type errString string

func (e errString) Error() string { return string(e) }
