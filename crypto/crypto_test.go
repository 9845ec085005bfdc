package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// R1: a freshly generated secret always verifies against its own hashlock.
func TestGenSecretRoundTrip(t *testing.T) {
	t.Parallel()

	secret, hashlock, err := GenSecret()
	require.NoError(t, err)
	require.True(t, Verify(secret, hashlock))

	var other Secret
	copy(other[:], secret[:])
	other[0] ^= 0xff
	require.False(t, Verify(other, hashlock))
}

func TestVerifyRejectsWrongHashlock(t *testing.T) {
	t.Parallel()

	_, hashlockA, err := GenSecret()
	require.NoError(t, err)
	secretB, _, err := GenSecret()
	require.NoError(t, err)

	require.False(t, Verify(secretB, hashlockA))
}

// R3: bech32 encode/decode round trips for every 32-byte witness program.
func TestBech32RoundTrip(t *testing.T) {
	t.Parallel()

	programs := [][]byte{
		make([]byte, 32),
		{
			0x75, 0x1e, 0x76, 0xe8, 0x19, 0x91, 0x96, 0xd4,
			0x54, 0x94, 0x1c, 0x45, 0xd1, 0xb3, 0xa3, 0x23,
			0xf1, 0x43, 0x3b, 0xd6, 0x01, 0x02, 0x03, 0x04,
			0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c,
		},
	}

	for _, program := range programs {
		addr, err := EncodeWitnessAddress("tb", 0, program)
		require.NoError(t, err)

		hrp, version, decoded, err := DecodeWitnessAddress(addr)
		require.NoError(t, err)
		require.Equal(t, "tb", hrp)
		require.Equal(t, byte(0), version)
		require.Equal(t, program, decoded)
	}
}

func TestBech32HRP(t *testing.T) {
	t.Parallel()

	require.Equal(t, "bc", Bech32HRP("mainnet"))
	require.Equal(t, "tb", Bech32HRP("testnet"))
	require.Equal(t, "tb", Bech32HRP("signet"))
}

func TestCompactSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{252, []byte{0xfc}},
		{253, []byte{0xfd, 0xfd, 0x00}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CompactSize(c.n))
	}
}

func TestPushData(t *testing.T) {
	t.Parallel()

	small := make([]byte, 10)
	got := PushData(small)
	require.Equal(t, byte(10), got[0])
	require.Len(t, got, 11)

	medium := make([]byte, 0x4c)
	got = PushData(medium)
	require.Equal(t, []byte{0x4c, 0x4c}, got[:2])
}

func TestPushInt(t *testing.T) {
	t.Parallel()

	require.Equal(t, []byte{0x00}, PushInt(0))
	require.Equal(t, []byte{0x51}, PushInt(1))
	require.Equal(t, []byte{0x60}, PushInt(16))

	got := PushInt(500000)
	require.NotEmpty(t, got)
	require.Greater(t, len(got), 1)
}
