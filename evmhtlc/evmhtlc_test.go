package evmhtlc

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestABIsParseAtInit(t *testing.T) {
	require.NotNil(t, htlc3sABI.Methods["create"])
	require.NotNil(t, htlc3sABI.Methods["claim"])
	require.NotNil(t, htlc3sABI.Methods["refund"])
	require.NotNil(t, htlc3sABI.Methods["canClaim"])
	require.NotNil(t, htlc3sABI.Methods["canRefund"])
	require.NotNil(t, htlc3sABI.Methods["getHTLC"])
	require.NotNil(t, erc20ABI.Methods["approve"])
	require.NotNil(t, erc20ABI.Methods["allowance"])
}

func TestPackCreateArguments(t *testing.T) {
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	var hUser, hLp1, hLp2 [32]byte
	hUser[0] = 0xaa
	hLp1[0] = 0xbb
	hLp2[0] = 0xcc

	data, err := htlc3sABI.Pack("create", recipient, token, big.NewInt(1000000),
		hUser, hLp1, hLp2, big.NewInt(1790000000))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	method, err := htlc3sABI.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "create", method.Name)
}

func TestPackClaimArguments(t *testing.T) {
	var htlcID, sUser, sLp1, sLp2 [32]byte
	htlcID[0] = 0x01

	data, err := htlc3sABI.Pack("claim", htlcID, sUser, sLp1, sLp2)
	require.NoError(t, err)

	method, err := htlc3sABI.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "claim", method.Name)
}

func TestUnpackGetHTLC(t *testing.T) {
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")
	recipient := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token := common.HexToAddress("0x5555555555555555555555555555555555555555")
	var hUser, hLp1, hLp2 [32]byte

	packed, err := htlc3sABI.Methods["getHTLC"].Outputs.Pack(
		sender, recipient, token, big.NewInt(5000000),
		hUser, hLp1, hLp2, big.NewInt(1790000000), false, false,
	)
	require.NoError(t, err)

	vals, err := htlc3sABI.Unpack("getHTLC", packed)
	require.NoError(t, err)
	require.Equal(t, sender, vals[0].(common.Address))
	require.Equal(t, recipient, vals[1].(common.Address))
	require.False(t, vals[8].(bool))
	require.False(t, vals[9].(bool))
}

func TestGasBufferMatchesFormula(t *testing.T) {
	base := big.NewInt(1_000_000_000)
	buffered := new(big.Int).Div(new(big.Int).Mul(base, big.NewInt(GasBufferNumerator)), big.NewInt(GasBufferDenominator))
	require.Equal(t, big.NewInt(1_100_000_000), buffered)
}

func TestDecodeClaimInputRoundTrip(t *testing.T) {
	var htlcID, sUser, sLp1, sLp2 [32]byte
	htlcID[0] = 0x01
	sUser[0] = 0x02
	sLp1[0] = 0x03
	sLp2[0] = 0x04

	data, err := htlc3sABI.Pack("claim", htlcID, sUser, sLp1, sLp2)
	require.NoError(t, err)

	decoded, ok := DecodeClaimInput(data)
	require.True(t, ok)
	require.Equal(t, htlcID, decoded.HTLCID)
	require.Equal(t, sUser, decoded.SUser)
	require.Equal(t, sLp1, decoded.SLp1)
	require.Equal(t, sLp2, decoded.SLp2)
}

func TestDecodeClaimInputRejectsOtherMethods(t *testing.T) {
	var htlcID [32]byte
	data, err := htlc3sABI.Pack("refund", htlcID)
	require.NoError(t, err)

	_, ok := DecodeClaimInput(data)
	require.False(t, ok)

	_, ok = DecodeClaimInput([]byte{0x01, 0x02})
	require.False(t, ok)
}
