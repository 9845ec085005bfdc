package btchtlc

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by btchtlc. This follows
// the same per-package logger convention as lnwallet and contractcourt
// in lnd: a package-local var overridden once at process
// startup by the logger wiring in cmd/flowswapd's run().
func UseLogger(logger btclog.Logger) {
	log = logger
}
