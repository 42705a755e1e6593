package pricing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// DecayWindowDays is the number of days over which the premium fetched at a
// system-market sale erodes linearly back to the floor price.
const DecayWindowDays = 90

// ElapsedDays returns the whole days between sellAt and now, floored, and
// never negative.
func ElapsedDays(sellAt, now time.Time) int64 {
	if !now.After(sellAt) {
		return 0
	}
	return int64(now.Sub(sellAt) / (24 * time.Hour))
}

// DecayedPrice returns the current buyback price for a token sold into the
// system market at sellPrice, with the premium (sellPrice - basePrice)
// decaying linearly over DecayWindowDays:
//
//	price = basePrice + (sellPrice - basePrice) * (90 - elapsedDays) / 90
//
// Multiplication happens before division so the result is bit-exact. At day
// zero the full sale price holds; once the window has elapsed the price
// clamps at basePrice and the trade remains valid at the floor — a fully
// decayed premium is a price of zero, not a failure.
func DecayedPrice(sellPrice, basePrice *big.Int, sellAt, now time.Time) (*big.Int, error) {
	if !domain.ValidAmount(sellPrice) || !domain.ValidAmount(basePrice) {
		return nil, fmt.Errorf("pricing: invalid decay inputs: %w", domain.ErrArithmetic)
	}

	premium := new(big.Int).Sub(sellPrice, basePrice)
	if premium.Sign() <= 0 {
		// Sold at or below floor: nothing decays.
		return new(big.Int).Set(basePrice), nil
	}

	elapsed := ElapsedDays(sellAt, now)
	if elapsed >= DecayWindowDays {
		return new(big.Int).Set(basePrice), nil
	}

	remaining := big.NewInt(DecayWindowDays - elapsed)
	premium.Mul(premium, remaining)
	premium.Quo(premium, big.NewInt(DecayWindowDays))
	return new(big.Int).Add(basePrice, premium), nil
}
