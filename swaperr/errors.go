// Package swaperr defines the error taxonomy shared by every component
// in this repository, grouped by the propagation policy attached to
// each class: validation errors abort the caller's operation, node
// errors are retried with backoff, protocol errors from an idempotent
// create are treated as success, safety-gate errors are always
// terminal, and fatal errors crash the owning subsystem.
package swaperr

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Validation errors: rejected before any side effect occurs.
var (
	ErrInvalidHashlock  = errors.New("swaperr: invalid hashlock")
	ErrInvalidPreimage  = errors.New("swaperr: preimage does not match hashlock")
	ErrInvalidTransition = errors.New("swaperr: invalid swap state transition")
	ErrQuoteExpired     = errors.New("swaperr: quote expired")
	ErrCascadeViolation = errors.New("swaperr: timelock cascade violation")
	ErrLimitExceeded    = errors.New("swaperr: per-session swap limit exceeded")
	ErrDust             = errors.New("swaperr: output below dust threshold")
	ErrBelowMinAmount   = errors.New("swaperr: amount below configured minimum")
)

// Protocol errors: surfaced by a ledger adapter reporting on-chain
// contract state rather than a local validation failure.
var (
	ErrHashlockMismatch  = errors.New("swaperr: hashlock mismatch")
	ErrTimelockNotExpired = errors.New("swaperr: timelock has not expired")
	ErrAlreadyClaimed    = errors.New("swaperr: htlc already claimed")
	ErrAlreadyRefunded   = errors.New("swaperr: htlc already refunded")
)

// Node errors: transient, ordinarily retried with bounded backoff
// before being surfaced to the caller.
var (
	ErrNodeTimeout          = errors.New("swaperr: node RPC timed out")
	ErrNodeRPCError         = errors.New("swaperr: node RPC returned an error")
	ErrInsufficientFunds    = errors.New("swaperr: insufficient funds")
	ErrConfirmationTimeout  = errors.New("swaperr: timed out waiting for confirmation")
)

// Safety-gate errors: always terminal for the current operation. The
// core never retries an unsafe path.
var (
	ErrUnsafeRevealSource = errors.New("swaperr: reveal source is not a confirmed block")
	ErrRBFSignaled        = errors.New("swaperr: funding transaction signals replace-by-fee")
	ErrFeeRateTooLow      = errors.New("swaperr: mempool fee rate below configured minimum")
)

// Fatal errors: crash the owning subsystem; require operator
// intervention.
var (
	ErrKeyUnavailable   = errors.New("swaperr: required signing key unavailable")
	ErrContractMismatch = errors.New("swaperr: on-chain contract does not match expected ABI/address")
)

// Fatal wraps err with a captured stack trace via go-errors/errors, for
// the fatal-error class that requires operator investigation. Non-fatal
// errors should be wrapped with fmt.Errorf("%w", ...) instead, matching
// lnd's convention of reserving stack-trace wrapping for the
// unexpected path.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 2)
}

// Fatalf formats a message and wraps it as a Fatal error, stack trace
// included.
func Fatalf(format string, args ...interface{}) error {
	return Fatal(fmt.Errorf(format, args...))
}
