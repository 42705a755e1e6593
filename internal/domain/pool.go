package domain

import (
	"math/big"
	"time"
)

// Pool is the dual-pool accounting singleton. BasePool guarantees
// floor-price buybacks, PremiumPool funds above-floor system-market pricing,
// and BasePoolTotal is the historical high-water mark of base deposits.
//
// Invariants: BasePoolTotal >= BasePool at all times, and both are
// monotonically non-decreasing. PremiumPool decreases only through the
// explicit premium-payout path during buy-from-system settlement.
// PlatformAccrued tracks fees owed to the platform treasury.
type Pool struct {
	BasePool        *big.Int
	BasePoolTotal   *big.Int
	PremiumPool     *big.Int
	PlatformAccrued *big.Int
	UpdatedAt       time.Time
}

// NewPool returns an empty pool with all balances at zero.
func NewPool() Pool {
	return Pool{
		BasePool:        new(big.Int),
		BasePoolTotal:   new(big.Int),
		PremiumPool:     new(big.Int),
		PlatformAccrued: new(big.Int),
	}
}

// Clone returns a deep copy so callers can stage mutations without touching
// the shared snapshot.
func (p Pool) Clone() Pool {
	return Pool{
		BasePool:        new(big.Int).Set(zeroIfNil(p.BasePool)),
		BasePoolTotal:   new(big.Int).Set(zeroIfNil(p.BasePoolTotal)),
		PremiumPool:     new(big.Int).Set(zeroIfNil(p.PremiumPool)),
		PlatformAccrued: new(big.Int).Set(zeroIfNil(p.PlatformAccrued)),
		UpdatedAt:       p.UpdatedAt,
	}
}

// Liquidity is the total payout capacity backing system-market buybacks.
func (p Pool) Liquidity() *big.Int {
	return new(big.Int).Add(zeroIfNil(p.BasePool), zeroIfNil(p.PremiumPool))
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
