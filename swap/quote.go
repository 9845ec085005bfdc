package swap

import (
	"fmt"
	"time"

	"github.com/flowswap/flowswap-engine/swaperr"
)

// BTCM1Rate is the fixed BTC-satoshi/M1-unit exchange rate: 1 sat = 1 M1.
const BTCM1Rate = 1.0

// QuoteConfig holds the operator-tunable spreads, confirmation
// thresholds, timeout defaults and quote lifetime, mirroring
// SwapConfig's fields one-for-one.
type QuoteConfig struct {
	SpreadBTCM1Bid  float64 // percent, applied selling BTC for M1
	SpreadBTCM1Ask  float64 // percent, applied buying BTC with M1
	SpreadUSDCM1Bid float64
	SpreadUSDCM1Ask float64

	BTCConfirmations int64
	M1Confirmations  int64

	BTCTimeoutBlocks int64 // ~24h at 10 min/block
	M1TimeoutBlocks  int64 // ~4.8h at 1 min/block

	QuoteValiditySeconds int64

	// USDCM1Rate is the external USDC/M1 mid-price; production deploys
	// wire this from a price feed, there is none in this engine.
	USDCM1Rate float64
}

// DefaultQuoteConfig reproduces the Python reference client's
// SwapConfig defaults.
func DefaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		SpreadBTCM1Bid:       0.5,
		SpreadBTCM1Ask:       0.5,
		SpreadUSDCM1Bid:      0.5,
		SpreadUSDCM1Ask:      0.5,
		BTCConfirmations:     1,
		M1Confirmations:      1,
		BTCTimeoutBlocks:     144,
		M1TimeoutBlocks:      288,
		QuoteValiditySeconds: 60,
		USDCM1Rate:           1300.0,
	}
}

// calculateRate returns the mid rate and the spread percentage (0-100)
// to apply for the given asset pair.
func (c QuoteConfig) calculateRate(fromAsset, toAsset string) (rate, spreadPct float64, err error) {
	switch {
	case fromAsset == "BTC" && toAsset == "M1":
		return BTCM1Rate, c.SpreadBTCM1Bid, nil
	case fromAsset == "M1" && toAsset == "BTC":
		return 1.0 / BTCM1Rate, c.SpreadBTCM1Ask, nil
	case fromAsset == "USDC" && toAsset == "M1":
		return c.USDCM1Rate, c.SpreadUSDCM1Bid, nil
	case fromAsset == "M1" && toAsset == "USDC":
		return 1.0 / c.USDCM1Rate, c.SpreadUSDCM1Ask, nil
	case fromAsset == "BTC" && toAsset == "USDC":
		return BTCM1Rate / c.USDCM1Rate, c.SpreadBTCM1Bid + c.SpreadUSDCM1Ask, nil
	case fromAsset == "USDC" && toAsset == "BTC":
		return c.USDCM1Rate / BTCM1Rate, c.SpreadUSDCM1Bid + c.SpreadBTCM1Ask, nil
	default:
		return 0, 0, fmt.Errorf("unsupported asset pair %s->%s", fromAsset, toAsset)
	}
}

// BuildQuote computes a time-bounded quote for the given direction and
// amount,
func (c QuoteConfig) BuildQuote(now time.Time, dir Direction, fromAsset, toAsset string, fromAmount int64) (Quote, error) {
	mid, spreadPct, err := c.calculateRate(fromAsset, toAsset)
	if err != nil {
		return Quote{}, err
	}

	effectiveRate := mid * (1 - spreadPct/100)
	toAmount := int64(float64(fromAmount) * effectiveRate)

	return Quote{
		ID:         NewSwapID(),
		Direction:  dir,
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		FromAmount: fromAmount,
		ToAmount:   toAmount,
		Rate:       effectiveRate,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(c.QuoteValiditySeconds) * time.Second),
	}, nil
}

// RequireFresh returns ErrQuoteExpired if the quote has expired as of
// now; callers must reject swap initiation against a stale quote.
func (q Quote) RequireFresh(now time.Time) error {
	if q.Expired(now) {
		return swaperr.ErrQuoteExpired
	}
	return nil
}
