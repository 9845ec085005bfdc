// Package metrics exposes the prometheus counters and gauges this
// repository's components increment. No HTTP handler is registered
// here — serving /metrics is a dashboard concern and out of scope; the
// registry is exported so an external collaborator's process can wire
// it into its own handler.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RevealsObserved counts every RevealedSecrets event the watcher
	// produces, labeled by source (btc_block, btc_mempool, ...).
	RevealsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowswap",
			Name:      "reveals_observed_total",
			Help:      "Number of secret-reveal events observed by the watcher, by source.",
		},
		[]string{"source"},
	)

	// RevealsGated counts reveals that were observed but rejected by
	// MayClaimCounterLeg.
	RevealsGated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowswap",
		Name:      "reveals_gated_total",
		Help:      "Number of reveals that failed the confirmed-block safety gate.",
	})

	// ClaimsPropagated counts successful counter-leg claim submissions.
	ClaimsPropagated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowswap",
			Name:      "claims_propagated_total",
			Help:      "Number of counter-leg claims successfully submitted, by ledger.",
		},
		[]string{"ledger"},
	)

	// NodeRPCRetries counts bounded-backoff retries against any node
	// RPC endpoint.
	NodeRPCRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowswap",
			Name:      "node_rpc_retries_total",
			Help:      "Number of node RPC call retries, by ledger and method.",
		},
		[]string{"ledger", "method"},
	)

	// ClaimLatency observes the time from reveal-persisted to
	// counter-leg-claim-confirmed, per ledger.
	ClaimLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowswap",
			Name:      "claim_latency_seconds",
			Help:      "Latency between a persisted reveal and a confirmed counter-leg claim.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"ledger"},
	)

	// SwapsByState gauges the number of swaps currently in each state.
	SwapsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flowswap",
			Name:      "swaps_by_state",
			Help:      "Number of swaps currently in each state.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		RevealsObserved,
		RevealsGated,
		ClaimsPropagated,
		NodeRPCRetries,
		ClaimLatency,
		SwapsByState,
	)
}
