package swap

import (
	"fmt"

	"github.com/flowswap/flowswap-engine/swaperr"
)

// Seconds-per-block used to normalize each ledger's timelock into a
// common unit before comparing the cascade.
const (
	btcSecondsPerBlock = 600
	m1SecondsPerBlock  = 60
)

// MinCascadeGap is the minimum spacing, in seconds, required between
// two adjacent legs' timelocks.
const MinCascadeGap = 3600

// CascadeTimelocks carries each leg's timelock in its native unit: the
// UTXO and M1 timelocks are block counts from the current tip, converted
// to seconds relative to BTCNowUnix; the EVM timelock is an absolute unix
// timestamp.
type CascadeTimelocks struct {
	BTCHeight  int64
	M1Height   int64
	USDCUnix   int64
	BTCNowUnix int64 // reference point used to convert BTC/M1 heights to seconds
}

func (t CascadeTimelocks) btcSeconds() int64 {
	return t.BTCNowUnix + (t.BTCHeight * btcSecondsPerBlock)
}

func (t CascadeTimelocks) m1Seconds() int64 {
	return t.BTCNowUnix + (t.M1Height * m1SecondsPerBlock)
}

// ValidateCascade enforces the single ordering predicate required for
// both directions: the leg claimable last must have the latest refund
// timelock, with every adjacent gap at least MinCascadeGap. Using one
// predicate parameterized by Direction, rather than separate forward
// and reverse checks, is the resolution of the open question
// about keeping both directions symmetrical under the same code path.
func ValidateCascade(dir Direction, t CascadeTimelocks) error {
	btc := t.btcSeconds()
	m1 := t.m1Seconds()
	usdc := t.USDCUnix

	var first, second, third int64
	var firstName, secondName, thirdName string

	switch dir {
	case Forward:
		first, second, third = btc, m1, usdc
		firstName, secondName, thirdName = "btc", "m1", "usdc"
	case Reverse:
		first, second, third = usdc, m1, btc
		firstName, secondName, thirdName = "usdc", "m1", "btc"
	default:
		return fmt.Errorf("%w: unknown direction %v", swaperr.ErrCascadeViolation, dir)
	}

	if second-first < MinCascadeGap {
		return fmt.Errorf("%w: %s->%s gap %ds below minimum %ds",
			swaperr.ErrCascadeViolation, firstName, secondName, second-first, MinCascadeGap)
	}
	if third-second < MinCascadeGap {
		return fmt.Errorf("%w: %s->%s gap %ds below minimum %ds",
			swaperr.ErrCascadeViolation, secondName, thirdName, third-second, MinCascadeGap)
	}
	return nil
}
