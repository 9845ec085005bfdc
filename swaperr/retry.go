package swaperr

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flowswap/flowswap-engine/metrics"
)

// MaxNodeRPCAttempts bounds how many times Retry will call a Node-class
// RPC before giving up and surfacing the last error to the caller.
const MaxNodeRPCAttempts = 6

// IsNodeError reports whether err belongs to the Node error class: a
// transient condition (dropped connection, node-side timeout, a
// temporarily unfunded wallet) worth retrying, as opposed to a
// validation, protocol, safety-gate, or fatal error that retrying can
// never resolve.
func IsNodeError(err error) bool {
	return errors.Is(err, ErrNodeTimeout) ||
		errors.Is(err, ErrNodeRPCError) ||
		errors.Is(err, ErrInsufficientFunds)
}

// newBackOff builds the jittered exponential schedule shared by every
// ledger client: 200ms initial interval doubling each attempt, capped
// at MaxNodeRPCAttempts total tries via backoff.WithMaxRetries.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, MaxNodeRPCAttempts-1)
}

// Retry calls fn up to MaxNodeRPCAttempts times with bounded jittered
// exponential backoff whenever it returns a Node-class error,
// incrementing metrics.NodeRPCRetries (labeled by ledger and method) on
// every retry. A non-Node error — validation, protocol, safety-gate, or
// fatal — is returned immediately without retrying.
func Retry(ledger, method string, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsNodeError(err) {
			return backoff.Permanent(err)
		}
		if attempt < MaxNodeRPCAttempts {
			metrics.NodeRPCRetries.WithLabelValues(ledger, method).Inc()
		}
		return err
	}
	return backoff.Retry(op, newBackOff())
}

// RetryValue is Retry for a call that also produces a result, since
// every ledger client's RPC path returns (value, error) rather than a
// bare error.
func RetryValue[T any](ledger, method string, fn func() (T, error)) (T, error) {
	var result T
	err := Retry(ledger, method, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
