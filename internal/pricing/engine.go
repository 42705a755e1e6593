// Package pricing implements the dual-pool pricing engine: rarity-weighted
// base (floor) prices fixed at project confirmation, instantaneous
// system-market quotes on top of the premium pool, and the linear premium
// decay applied between a system-market sale and the matching buyback.
//
// All arithmetic is integer big.Int with floor semantics, multiplying before
// dividing so results are bit-exact across implementations.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// RarityScale is the normalized rarity range used for premium shares:
// a token's rarity is projected onto 0..RarityScale before it claims its
// proportional slice of the premium pool.
const RarityScale = 10000

var rarityScaleBig = big.NewInt(RarityScale)

// BasePrices computes the permanent floor price for every token as its
// rarity share of the project's total value:
//
//	basePrice[i] = totalValue * rarity[i] / totalRarity  (floor division)
//
// It rejects the whole computation if any resulting price is zero, since a
// zero floor would strand that token for the life of the project. Nothing
// is returned on error so no partial result can be applied.
func BasePrices(totalValue *big.Int, rarities map[int64]int64) (map[int64]*big.Int, error) {
	if !domain.ValidAmount(totalValue) || totalValue.Sign() == 0 {
		return nil, fmt.Errorf("pricing: total value must be positive: %w", domain.ErrArithmetic)
	}

	var totalRarity int64
	for tokenID, r := range rarities {
		if r <= 0 {
			return nil, fmt.Errorf("pricing: token %d has no rarity: %w", tokenID, domain.ErrRarityMissing)
		}
		totalRarity += r
	}
	if totalRarity <= 0 {
		return nil, fmt.Errorf("pricing: total rarity is zero: %w", domain.ErrRarityMissing)
	}

	totalRarityBig := big.NewInt(totalRarity)
	prices := make(map[int64]*big.Int, len(rarities))
	for tokenID, r := range rarities {
		price := new(big.Int).Mul(totalValue, big.NewInt(r))
		price.Quo(price, totalRarityBig)
		if price.Sign() == 0 {
			return nil, fmt.Errorf("pricing: token %d: %w", tokenID, domain.ErrZeroBasePrice)
		}
		prices[tokenID] = price
	}
	return prices, nil
}

// NormalizeRarity projects a raw rarity score onto the 0..RarityScale range
// relative to the project's total rarity points.
func NormalizeRarity(rarity, totalRarity int64) int64 {
	if rarity <= 0 || totalRarity <= 0 {
		return 0
	}
	return rarity * RarityScale / totalRarity
}

// SystemPrice quotes the current system-market price for a token: its fixed
// base price plus a rarity-proportional share of the premium pool.
//
// The quote reads the live, undiminished premium pool; it is advisory, not a
// reservation. Settlement must re-validate against pool state at that time.
func SystemPrice(basePrice *big.Int, rarity, totalRarity int64, premiumPool *big.Int) (*big.Int, error) {
	if !domain.ValidAmount(basePrice) {
		return nil, fmt.Errorf("pricing: invalid base price: %w", domain.ErrArithmetic)
	}
	if premiumPool == nil || premiumPool.Sign() == 0 {
		return new(big.Int).Set(basePrice), nil
	}
	if premiumPool.Sign() < 0 {
		return nil, fmt.Errorf("pricing: negative premium pool: %w", domain.ErrArithmetic)
	}

	norm := NormalizeRarity(rarity, totalRarity)
	premium := new(big.Int).Mul(premiumPool, big.NewInt(norm))
	premium.Quo(premium, rarityScaleBig)
	return new(big.Int).Add(basePrice, premium), nil
}
