package service

import (
	"context"
	"math/big"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Pools is the slice of the pool ledger the services mutate and read.
// *ledger.PoolLedger satisfies it.
type Pools interface {
	Deposit(ctx context.Context, amount *big.Int, feeSplit bool) error
	DepositPremium(ctx context.Context, amount *big.Int) error
	PayPremium(ctx context.Context, amount *big.Int) error
	Snapshot() domain.Pool
	Liquidity() *big.Int
}

// FeeSettler is the slice of the fee splitter the market services settle
// through. *fees.Splitter satisfies it.
type FeeSettler interface {
	SettleSystemSale(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error)
	SettleSystemSaleBatch(ctx context.Context, grosses map[int64]*big.Int) (map[int64]domain.Receipt, error)
	SettlePeerTrade(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error)
	SettleMarketplaceTrade(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error)
}
