// Command flowswapd wires the three ledger adapters, the swap
// orchestrator, the claim-reveal watcher, and the JSON store into one
// running process. It owns no business logic of its own — construction
// and lifecycle only.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flowswap/flowswap-engine/btchtlc"
	"github.com/flowswap/flowswap-engine/build"
	"github.com/flowswap/flowswap-engine/evmhtlc"
	"github.com/flowswap/flowswap-engine/m1rail"
	"github.com/flowswap/flowswap-engine/store"
	"github.com/flowswap/flowswap-engine/swap"
	"github.com/flowswap/flowswap-engine/watcher"
	"github.com/lightningnetwork/lnd/healthcheck"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := build.InitLogRotator(cfg.LogFile, 10*1024, 3); err != nil {
		return fmt.Errorf("init log rotator: %w", err)
	}
	logBTC := build.NewSubLogger("BTCH", nil)
	logM1 := build.NewSubLogger("M1RL", nil)
	logEVM := build.NewSubLogger("EVMH", nil)
	logSwap := build.NewSubLogger("SWAP", nil)
	logWatcher := build.NewSubLogger("WTCH", nil)
	build.SetLogLevel(logBTC, cfg.LogLevel)
	build.SetLogLevel(logM1, cfg.LogLevel)
	build.SetLogLevel(logEVM, cfg.LogLevel)
	build.SetLogLevel(logSwap, cfg.LogLevel)
	build.SetLogLevel(logWatcher, cfg.LogLevel)
	btchtlc.UseLogger(logBTC)
	m1rail.UseLogger(logM1)
	evmhtlc.UseLogger(logEVM)
	swap.UseLogger(logSwap)
	watcher.UseLogger(logWatcher)

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	btcClient, err := btchtlc.NewClient(cfg.BTCHost, cfg.BTCUser, cfg.BTCPass, cfg.BTCTLS, nil)
	if err != nil {
		return fmt.Errorf("connect to utxo node: %w", err)
	}
	defer btcClient.Shutdown()

	m1Client, err := m1rail.NewClient(cfg.M1Host, cfg.M1User, cfg.M1Pass, cfg.M1TLS, nil)
	if err != nil {
		return fmt.Errorf("connect to native-rail node: %w", err)
	}
	defer m1Client.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evmClient, err := evmhtlc.NewClient(ctx, cfg.EVMRPCURL,
		common.HexToAddress(cfg.EVMContractAddress), big.NewInt(cfg.EVMChainID))
	if err != nil {
		return fmt.Errorf("connect to evm node: %w", err)
	}
	defer evmClient.Close()

	wif, err := btcutil.DecodeWIF(cfg.BTCClaimPrivKeyWIF)
	if err != nil {
		return fmt.Errorf("parse btc claim wif: %w", err)
	}
	btcClaimDestination, err := hex.DecodeString(cfg.BTCClaimDestination)
	if err != nil {
		return fmt.Errorf("decode btc claim destination: %w", err)
	}

	evmClaimKey, err := crypto.HexToECDSA(cfg.EVMClaimKeyHex)
	if err != nil {
		return fmt.Errorf("parse evm claim key: %w", err)
	}

	limits := swap.NewSessionLimits(cfg.MaxConcurrentSwapsPerSession, nil)
	evmLegClaimer := evmhtlc.NewLegClaimer(evmClient, evmClaimKey)
	defer evmLegClaimer.Stop()
	claimers := map[swap.Ledger]swap.LegClaimer{
		swap.LedgerBTC: btchtlc.NewLegClaimer(btcClient, wif.PrivKey, btcClaimDestination, cfg.BTCFeeRateSatVByte),
		swap.LedgerM1:  m1rail.NewLegClaimer(m1Client),
		swap.LedgerEVM: evmLegClaimer,
	}
	orch := swap.NewOrchestrator(st, limits, claimers)

	btcSource := watcher.NewBTCSource(btcClient)
	w := watcher.NewWatcher(btcSource, orch.OnRevealed)
	w.SetEVMSource(watcher.NewEVMSource(evmClient, evmClaimKey))
	w.SetM1Source(watcher.NewM1Source(m1Client))
	w.SetPollInterval(time.Duration(cfg.WatchPollIntervalSeconds) * time.Second)
	w.SetRefundHandler(func(ctx context.Context, swapID string) error {
		_, err := orch.Refund(swapID)
		return err
	})
	orch.SetWatcher(w)

	reactor := swap.NewReactor(orch, st, w)
	if err := reactor.Resume(ctx); err != nil {
		return fmt.Errorf("resume persisted swaps: %w", err)
	}

	monitor := newHealthMonitor(btcClient, m1Client, evmClient)
	monitor.Start()
	defer monitor.Stop()

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "watcher stopped: %v\n", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh

	return nil
}

// newHealthMonitor wires one liveness probe per node connection.
func newHealthMonitor(btcClient *btchtlc.Client, m1Client *m1rail.Client, evmClient *evmhtlc.Client) *healthcheck.Monitor {
	btcCheck := healthcheck.NewObservation(
		"utxo-node",
		func() error {
			_, err := btcClient.BlockCount()
			return err
		},
		30*time.Second,
		10*time.Second,
		0,
		1,
	)
	m1Check := healthcheck.NewObservation(
		"m1-node",
		func() error {
			_, err := m1Client.BlockCount()
			return err
		},
		30*time.Second,
		10*time.Second,
		0,
		1,
	)
	evmCheck := healthcheck.NewObservation(
		"evm-node",
		func() error {
			_, err := evmClient.GetHTLC(context.Background(), [32]byte{})
			return err
		},
		30*time.Second,
		10*time.Second,
		0,
		1,
	)

	return healthcheck.NewMonitor(&healthcheck.Config{
		Checks: []*healthcheck.Observation{btcCheck, m1Check, evmCheck},
	})
}
