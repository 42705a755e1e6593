// Package ledger implements the dual-pool fund ledger. A single PoolLedger
// instance owns the base pool, the premium pool, and the platform accrual;
// every mutation runs under one mutex, persists write-through before it is
// committed in memory, and publishes the new balances on the signal bus.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Scale is the fixed-point denominator for fee rates: 1000 gives 3-decimal
// fee precision (a rate of 200 is 20%).
const Scale = 1000

// Rates configures the fee-split deposit shares in per-mille of the
// deposited amount. The remainder is never retained by the ledger — routing
// it (seller proceeds, platform fee) is the caller's responsibility.
type Rates struct {
	BaseRate    int64 // share added to basePool and basePoolTotal
	PremiumRate int64 // share added to premiumPool
}

// DefaultRates is the reference 20%/20% split.
var DefaultRates = Rates{BaseRate: 200, PremiumRate: 200}

func (r Rates) validate() error {
	if r.BaseRate < 0 || r.PremiumRate < 0 || r.BaseRate+r.PremiumRate > Scale {
		return fmt.Errorf("ledger: rates %d/%d out of range: %w", r.BaseRate, r.PremiumRate, domain.ErrArithmetic)
	}
	return nil
}

// PoolLedger is the accounting core. basePool and basePoolTotal never
// decrease; premiumPool decreases only through PayPremium.
type PoolLedger struct {
	mu    sync.Mutex
	pool  domain.Pool
	rates Rates

	store  domain.PoolStore
	bus    domain.SignalBus
	logger *slog.Logger
}

// New loads the persisted pool snapshot and returns a ledger bound to it.
func New(ctx context.Context, store domain.PoolStore, bus domain.SignalBus, rates Rates, logger *slog.Logger) (*PoolLedger, error) {
	if err := rates.validate(); err != nil {
		return nil, err
	}
	pool, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load pool: %w", err)
	}
	return &PoolLedger{
		pool:   pool.Clone(),
		rates:  rates,
		store:  store,
		bus:    bus,
		logger: logger.With(slog.String("component", "pool_ledger")),
	}, nil
}

// Deposit credits the pools. With feeSplit false the full amount is a pure
// floor contribution: it is added to both basePool and basePoolTotal. With
// feeSplit true the amount is split by the configured rates; the remainder
// stays with the caller.
func (l *PoolLedger) Deposit(ctx context.Context, amount *big.Int, feeSplit bool) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	return l.apply(ctx, "deposit", func(p *domain.Pool) error {
		base := new(big.Int).Set(amount)
		if feeSplit {
			base.Mul(amount, big.NewInt(l.rates.BaseRate))
			base.Quo(base, big.NewInt(Scale))

			premium := new(big.Int).Mul(amount, big.NewInt(l.rates.PremiumRate))
			premium.Quo(premium, big.NewInt(Scale))
			p.PremiumPool.Add(p.PremiumPool, premium)
		}
		p.BasePool.Add(p.BasePool, base)
		p.BasePoolTotal.Add(p.BasePoolTotal, base)
		return nil
	})
}

// DepositPremium credits the premium pool directly, bypassing the standard
// split. Used by the peer-trade settlement path, whose pool share is 100%
// premium.
func (l *PoolLedger) DepositPremium(ctx context.Context, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.apply(ctx, "deposit_premium", func(p *domain.Pool) error {
		p.PremiumPool.Add(p.PremiumPool, amount)
		return nil
	})
}

// DepositFee applies a whole fee settlement in one atomic mutation: the
// pool share lands either via the standard split or straight in the premium
// pool, and the platform share accrues to the treasury. Either all of it is
// committed or none of it.
func (l *PoolLedger) DepositFee(ctx context.Context, poolShare *big.Int, premiumDirect bool, platformShare *big.Int) error {
	if err := checkAmount(poolShare); err != nil {
		return err
	}
	if err := checkAmount(platformShare); err != nil {
		return err
	}
	return l.apply(ctx, "deposit_fee", func(p *domain.Pool) error {
		if premiumDirect {
			p.PremiumPool.Add(p.PremiumPool, poolShare)
		} else {
			base := new(big.Int).Mul(poolShare, big.NewInt(l.rates.BaseRate))
			base.Quo(base, big.NewInt(Scale))
			premium := new(big.Int).Mul(poolShare, big.NewInt(l.rates.PremiumRate))
			premium.Quo(premium, big.NewInt(Scale))
			p.BasePool.Add(p.BasePool, base)
			p.BasePoolTotal.Add(p.BasePoolTotal, base)
			p.PremiumPool.Add(p.PremiumPool, premium)
		}
		p.PlatformAccrued.Add(p.PlatformAccrued, platformShare)
		return nil
	})
}

// PayPremium draws down the premium pool. This is the only path that
// decreases any pool balance and it is used exclusively during
// buy-from-system settlement.
func (l *PoolLedger) PayPremium(ctx context.Context, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.apply(ctx, "pay_premium", func(p *domain.Pool) error {
		if p.PremiumPool.Cmp(amount) < 0 {
			return domain.NewTradeError("pay_premium", 0, amount, new(big.Int).Set(p.PremiumPool), domain.ErrInsufficientLiquidity)
		}
		p.PremiumPool.Sub(p.PremiumPool, amount)
		return nil
	})
}

// CreditPlatform accrues a platform fee owed to the treasury.
func (l *PoolLedger) CreditPlatform(ctx context.Context, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.apply(ctx, "credit_platform", func(p *domain.Pool) error {
		p.PlatformAccrued.Add(p.PlatformAccrued, amount)
		return nil
	})
}

// Snapshot returns a copy of the current balances.
func (l *PoolLedger) Snapshot() domain.Pool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Clone()
}

// Liquidity returns basePool + premiumPool, the payout capacity backing
// system-market buybacks.
func (l *PoolLedger) Liquidity() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Liquidity()
}

// apply stages the mutation on a copy, persists it, and only then commits it
// to the in-memory state, so a failed save leaves no partial state.
func (l *PoolLedger) apply(ctx context.Context, op string, mutate func(*domain.Pool) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.pool.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()

	if err := l.store.Save(ctx, next); err != nil {
		return fmt.Errorf("ledger: %s: save pool: %w", op, err)
	}
	l.pool = next

	l.publish(ctx, op, next)
	return nil
}

// publish emits the pool-state-changed notification. Delivery failures are
// logged, never propagated: observability must not fail a settlement.
func (l *PoolLedger) publish(ctx context.Context, op string, p domain.Pool) {
	if l.bus == nil {
		return
	}
	evt, err := json.Marshal(domain.PoolEvent{
		Event:           "pool_" + op,
		BasePool:        domain.FormatAmount(p.BasePool),
		BasePoolTotal:   domain.FormatAmount(p.BasePoolTotal),
		PremiumPool:     domain.FormatAmount(p.PremiumPool),
		PlatformAccrued: domain.FormatAmount(p.PlatformAccrued),
		At:              p.UpdatedAt,
	})
	if err != nil {
		return
	}
	if pubErr := l.bus.Publish(ctx, domain.ChannelPool, evt); pubErr != nil {
		l.logger.WarnContext(ctx, "pool event publish failed",
			slog.String("op", op),
			slog.String("error", pubErr.Error()),
		)
	}
}

func checkAmount(amount *big.Int) error {
	if !domain.ValidAmount(amount) {
		return fmt.Errorf("ledger: invalid amount: %w", domain.ErrArithmetic)
	}
	return nil
}
