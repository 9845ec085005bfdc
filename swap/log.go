package swap

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by swap.
func UseLogger(logger btclog.Logger) {
	log = logger
}
