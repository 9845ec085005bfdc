package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowswap/flowswap-engine/swap"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	return s
}

func TestSaveAndLoadSwapRoundTrip(t *testing.T) {
	s := openTestStore(t)

	sw := &swap.Swap{
		ID:         "swap-1",
		Direction:  swap.Forward,
		FromAsset:  "BTC",
		ToAsset:    "USDC",
		FromAmount: 10_000,
		State:      swap.AwaitingDeposit,
		CreatedAt:  time.Unix(1_700_000_000, 0).UTC(),
	}
	require.NoError(t, s.SaveSwap(sw))

	loaded, err := s.LoadSwap("swap-1")
	require.NoError(t, err)
	require.Equal(t, sw.ID, loaded.ID)
	require.Equal(t, sw.State, loaded.State)
	require.Equal(t, sw.FromAmount, loaded.FromAmount)
}

func TestLoadOpenSwapsExcludesTerminal(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveSwap(&swap.Swap{ID: "open-1", State: swap.DepositSeen}))
	require.NoError(t, s.SaveSwap(&swap.Swap{ID: "done-1", State: swap.Completed}))
	require.NoError(t, s.SaveSwap(&swap.Swap{ID: "open-2", State: swap.CounterLocked}))

	open, err := s.LoadOpenSwaps()
	require.NoError(t, err)
	require.Len(t, open, 2)

	ids := map[string]bool{}
	for _, sw := range open {
		ids[sw.ID] = true
	}
	require.True(t, ids["open-1"])
	require.True(t, ids["open-2"])
	require.False(t, ids["done-1"])
}

func TestSaveSwapIsAtomic(t *testing.T) {
	s := openTestStore(t)
	sw := &swap.Swap{ID: "swap-atomic", State: swap.AwaitingDeposit}
	require.NoError(t, s.SaveSwap(sw))

	entries, err := os.ReadDir(filepath.Join(s.root, swapsDir))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}

func TestTrackedHTLCRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := TrackedHTLCRecord{
		SwapID: "swap-1",
		Ref:    swap.HTLCRef{Ledger: swap.LedgerBTC, Identifier: "txid:0"},
		Hashlocks: swap.HashlockTriple{
			User: [32]byte{0x01},
			Lp1:  [32]byte{0x02},
			Lp2:  [32]byte{0x03},
		},
	}
	require.NoError(t, s.SaveTrackedHTLC(rec))

	loaded, err := s.LoadTrackedHTLCs()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, rec.SwapID, loaded[0].SwapID)

	require.NoError(t, s.RemoveTrackedHTLC("swap-1"))
	loaded, err = s.LoadTrackedHTLCs()
	require.NoError(t, err)
	require.Len(t, loaded, 0)
}

func TestIdentityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	missing, err := s.LoadIdentity()
	require.NoError(t, err)
	require.Nil(t, missing)

	id := Identity{BTCRefundAddress: "tb1qexample", EVMAddress: "0xabc"}
	require.NoError(t, s.SaveIdentity(id))

	loaded, err := s.LoadIdentity()
	require.NoError(t, err)
	require.Equal(t, id, *loaded)
}
