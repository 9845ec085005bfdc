package evmhtlc

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by evmhtlc.
func UseLogger(logger btclog.Logger) {
	log = logger
}
