package main

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
)

// config mirrors lnd's flat, tag-driven config struct parsed
// directly by go-flags, scaled down to this daemon's three node
// connections plus the ambient logging/store/limits knobs.
type config struct {
	DataDir string `long:"datadir" description:"Directory holding persisted swap and tracked-HTLC state" default:"./flowswapd-data"`
	LogFile string `long:"logfile" description:"Path to the rotating log file" default:"./flowswapd-data/flowswapd.log"`
	LogLevel string `long:"loglevel" description:"Log level for all subsystems (trace, debug, info, warn, error, critical)" default:"info"`

	BTCHost string `long:"btc.host" description:"UTXO-ledger node RPC host:port" required:"true"`
	BTCUser string `long:"btc.user" description:"UTXO-ledger node RPC username"`
	BTCPass string `long:"btc.pass" description:"UTXO-ledger node RPC password"`
	BTCTLS  bool   `long:"btc.tls" description:"Use TLS for the UTXO-ledger node RPC connection"`

	M1Host string `long:"m1.host" description:"Native-rail node RPC host:port" required:"true"`
	M1User string `long:"m1.user" description:"Native-rail node RPC username"`
	M1Pass string `long:"m1.pass" description:"Native-rail node RPC password"`
	M1TLS  bool   `long:"m1.tls" description:"Use TLS for the native-rail node RPC connection"`

	EVMRPCURL         string `long:"evm.rpcurl" description:"EVM JSON-RPC endpoint" required:"true"`
	EVMContractAddress string `long:"evm.contract" description:"Deployed HTLC3S contract address" required:"true"`
	EVMChainID        int64  `long:"evm.chainid" description:"EVM chain id"`
	EVMClaimKeyHex    string `long:"evm.claimkey" description:"Hex-encoded ECDSA private key used to sign EVM-leg claim transactions" required:"true"`

	BTCClaimPrivKeyWIF  string `long:"btc.claimkey" description:"WIF-encoded private key used to sign BTC-leg claim transactions" required:"true"`
	BTCClaimDestination string `long:"btc.claimdestination" description:"scriptPubKey (hex) receiving claimed BTC-leg funds" required:"true"`
	BTCFeeRateSatVByte  int64  `long:"btc.feerate" description:"Fee rate, in sat/vByte, used when presigning BTC-leg claims" default:"10"`

	MaxConcurrentSwapsPerSession int `long:"limits.maxconcurrent" description:"Maximum concurrent swaps per caller token" default:"5"`

	WatchPollIntervalSeconds int `long:"watcher.pollseconds" description:"Watcher poll interval in seconds" default:"30"`
}

func loadConfig() (*config, error) {
	cfg := &config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}
