package swap

import (
	"context"
	"testing"
	"time"

	"github.com/flowswap/flowswap-engine/crypto"
	"github.com/flowswap/flowswap-engine/swaperr"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func TestWhitelistedTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{AwaitingDeposit, DepositSeen, true},
		{AwaitingDeposit, DepositConfirmed, false}, // skip
		{DepositSeen, AwaitingDeposit, false},      // backward
		{Completing, Completed, true},
		{Completed, AwaitingDeposit, false}, // out of terminal
		{Refunded, Completing, false},
		{DepositConfirmed, CounterLocked, true},
		{CounterLocked, ClaimedDownstream, true},
		{ClaimedDownstream, Completing, true},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, CanTransition(c.from, c.to), "%v -> %v", c.from, c.to)
	}
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	s := &Swap{State: AwaitingDeposit}
	err := s.Transition(Completed)
	require.ErrorIs(t, err, swaperr.ErrInvalidTransition)
	require.Equal(t, AwaitingDeposit, s.State)
}

func TestValidateCascadeForward(t *testing.T) {
	now := int64(1_700_000_000)
	good := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: now + 3600*3, BTCNowUnix: now}
	require.NoError(t, ValidateCascade(Forward, good))

	bad := CascadeTimelocks{BTCHeight: 200, M1Height: 100, USDCUnix: now + 3600*3, BTCNowUnix: now}
	err := ValidateCascade(Forward, bad)
	require.Error(t, err)
}

func TestValidateCascadeReverse(t *testing.T) {
	now := int64(1_700_000_000)
	good := CascadeTimelocks{USDCUnix: now + 3600, M1Height: 180, BTCHeight: 300, BTCNowUnix: now}
	require.NoError(t, ValidateCascade(Reverse, good))
}

func TestBuildQuoteBTCToM1IsOneToOne(t *testing.T) {
	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(time.Unix(1_700_000_000, 0), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)
	require.InDelta(t, 0.995, q.Rate, 1e-9) // 1.0 * (1 - 0.5/100)
	require.Equal(t, int64(9950), q.ToAmount)
}

func TestQuoteExpiry(t *testing.T) {
	cfg := DefaultQuoteConfig()
	created := time.Unix(1_700_000_000, 0)
	q, err := cfg.BuildQuote(created, Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)

	require.NoError(t, q.RequireFresh(created.Add(30*time.Second)))
	require.Error(t, q.RequireFresh(created.Add(120*time.Second)))
}

func TestSessionLimitsEnforced(t *testing.T) {
	limits := NewSessionLimits(2, map[string]int64{"BTC": 1000})
	require.NoError(t, limits.Reserve("alice", "BTC", 5000))
	require.NoError(t, limits.Reserve("alice", "BTC", 5000))
	require.Error(t, limits.Reserve("alice", "BTC", 5000))

	limits.Release("alice")
	require.NoError(t, limits.Reserve("alice", "BTC", 5000))

	require.Error(t, limits.Reserve("bob", "BTC", 500))
}

type memStore struct {
	swaps map[string]*Swap
}

func newMemStore() *memStore { return &memStore{swaps: map[string]*Swap{}} }

func (m *memStore) SaveSwap(s *Swap) error {
	cp := *s
	m.swaps[s.ID] = &cp
	return nil
}

func (m *memStore) LoadOpenSwaps() ([]*Swap, error) {
	var out []*Swap
	for _, s := range m.swaps {
		if !s.State.IsTerminal() {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeClaimer struct {
	calls int
	failN int
}

func (f *fakeClaimer) ClaimLeg(ctx context.Context, ref *HTLCRef, secrets SecretTriple) error {
	f.calls++
	if f.calls <= f.failN {
		return context.DeadlineExceeded
	}
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *clock.TestClock) {
	tc := clock.NewTestClock(time.Unix(1_700_000_000, 0))
	o := NewOrchestrator(newMemStore(), NewSessionLimits(10, nil), map[Ledger]LegClaimer{
		LedgerM1:  &fakeClaimer{},
		LedgerEVM: &fakeClaimer{},
	})
	o.UseClock(tc)
	return o, tc
}

func buildHashlocks(t *testing.T) (HashlockTriple, SecretTriple) {
	su, hu, err := crypto.GenSecret()
	require.NoError(t, err)
	sl1, hl1, err := crypto.GenSecret()
	require.NoError(t, err)
	sl2, hl2, err := crypto.GenSecret()
	require.NoError(t, err)
	return HashlockTriple{User: hu, Lp1: hl1, Lp2: hl2}, SecretTriple{User: su, Lp1: sl1, Lp2: sl2}
}

func TestInitiateRejectsExpiredQuote(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	hashlocks, _ := buildHashlocks(t)

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)

	tc.SetTime(tc.Now().Add(2 * time.Minute))

	timelocks := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: tc.Now().Unix() + 3*3600, BTCNowUnix: tc.Now().Unix()}
	_, err = o.Initiate(q, "alice", hashlocks, timelocks)
	require.Error(t, err)
}

func TestInitiateRejectsCascadeViolation(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	hashlocks, _ := buildHashlocks(t)

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)

	timelocks := CascadeTimelocks{BTCHeight: 200, M1Height: 100, USDCUnix: tc.Now().Unix() + 3600, BTCNowUnix: tc.Now().Unix()}
	_, err = o.Initiate(q, "alice", hashlocks, timelocks)
	require.Error(t, err)
}

func TestHappyPathForwardSwapCompletes(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	hashlocks, secrets := buildHashlocks(t)

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)

	timelocks := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: tc.Now().Unix() + 3*3600, BTCNowUnix: tc.Now().Unix()}
	s, err := o.Initiate(q, "alice", hashlocks, timelocks)
	require.NoError(t, err)

	_, err = o.OnDepositSeen(s.ID, HTLCRef{Ledger: LedgerBTC, Identifier: "txid:0", Amount: 10_000})
	require.NoError(t, err)
	_, err = o.OnDepositConfirmed(s.ID)
	require.NoError(t, err)
	_, err = o.OnCounterLocked(s.ID, HTLCRef{Ledger: LedgerM1, Identifier: "outpoint:1", Amount: 10_000})
	require.NoError(t, err)
	s.EVMLeg = &HTLCRef{Ledger: LedgerEVM, Identifier: "0xabc"}

	err = o.OnRevealed(context.Background(), s.ID, RevealedSecrets{
		Secrets: secrets,
		Source:  SourceBTCBlock,
	})
	require.NoError(t, err)

	got, ok := o.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, Completed, got.State)
	require.False(t, got.OperatorAlert)
}

func TestClaimedDownstreamRejectsMempoolReveal(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	hashlocks, secrets := buildHashlocks(t)

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)
	timelocks := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: tc.Now().Unix() + 3*3600, BTCNowUnix: tc.Now().Unix()}
	s, err := o.Initiate(q, "alice", hashlocks, timelocks)
	require.NoError(t, err)

	err = o.OnRevealed(context.Background(), s.ID, RevealedSecrets{Secrets: secrets, Source: SourceBTCMempool})
	require.Error(t, err)
}

func TestCompletingTimeoutRaisesOperatorAlertNotCompleted(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	hashlocks, secrets := buildHashlocks(t)

	// Replace the m1 claimer with one that always fails.
	o.claimers[LedgerM1] = &fakeClaimer{failN: 1_000_000}

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)
	timelocks := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: tc.Now().Unix() + 3*3600, BTCNowUnix: tc.Now().Unix()}
	s, err := o.Initiate(q, "alice", hashlocks, timelocks)
	require.NoError(t, err)
	_, _ = o.OnDepositSeen(s.ID, HTLCRef{Ledger: LedgerBTC})
	_, _ = o.OnDepositConfirmed(s.ID)
	_, _ = o.OnCounterLocked(s.ID, HTLCRef{Ledger: LedgerM1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s.Reveal = &RevealedSecrets{Secrets: secrets, Source: SourceBTCBlock}
	s.Secrets = &secrets
	_, err = o.transition(s.ID, ClaimedDownstream)
	require.NoError(t, err)

	tc.SetTime(tc.Now().Add(CompletingTimeout + time.Minute))
	err = o.propagateClaim(ctx, s)
	require.Error(t, err)
	require.True(t, s.OperatorAlert)
	require.NotEqual(t, Completed, s.State)
}

type fakeWatcher struct {
	tracked []HTLCRef
}

func (f *fakeWatcher) Track(swapID string, ref HTLCRef, hashlocks HashlockTriple, counterRefs []HTLCRef) error {
	f.tracked = append(f.tracked, ref)
	return nil
}

func TestOnCounterLockedArmsWatchImmediately(t *testing.T) {
	o, tc := newTestOrchestrator(t)
	fw := &fakeWatcher{}
	o.SetWatcher(fw)
	hashlocks, _ := buildHashlocks(t)

	cfg := DefaultQuoteConfig()
	q, err := cfg.BuildQuote(tc.Now(), Forward, "BTC", "M1", 10_000)
	require.NoError(t, err)
	timelocks := CascadeTimelocks{BTCHeight: 6, M1Height: 120, USDCUnix: tc.Now().Unix() + 3*3600, BTCNowUnix: tc.Now().Unix()}
	s, err := o.Initiate(q, "alice", hashlocks, timelocks)
	require.NoError(t, err)

	_, err = o.OnDepositSeen(s.ID, HTLCRef{Ledger: LedgerBTC, Identifier: "txid:0"})
	require.NoError(t, err)
	_, err = o.OnDepositConfirmed(s.ID)
	require.NoError(t, err)
	require.Empty(t, fw.tracked, "watch must not arm before the counter leg is known")

	_, err = o.OnCounterLocked(s.ID, HTLCRef{Ledger: LedgerM1, Identifier: "outpoint:1"})
	require.NoError(t, err)

	require.Len(t, fw.tracked, 1)
	require.Equal(t, LedgerBTC, fw.tracked[0].Ledger, "forward cascade's reveal source is the BTC leg")
}
