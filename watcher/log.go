// Package watcher implements the claim-reveal poller: it tracks
// HTLC addresses for a spend, extracts the 3-secret witness once one
// appears, and gates counter-ledger auto-claim on the reveal's
// provenance.
package watcher

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by watcher.
func UseLogger(logger btclog.Logger) {
	log = logger
}
