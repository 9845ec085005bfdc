package m1rail

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by m1rail.
func UseLogger(logger btclog.Logger) {
	log = logger
}
