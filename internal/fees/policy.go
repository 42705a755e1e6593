// Package fees implements trade-fee computation and routing. Each trade
// venue carries its own named policy; the schedules differ economically
// (2.5%, 10%, 3% in the reference configuration) and are settled through
// different pool paths, so they are never unified into one rate.
package fees

import (
	"fmt"
	"math/big"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Scale is the per-mille fixed-point denominator for all fee rates.
const Scale = 1000

// PoolRoute selects how a policy's pool share reaches the pools.
type PoolRoute string

const (
	// RouteSplit runs the pool share through the ledger's standard
	// base/premium fee-split deposit.
	RouteSplit PoolRoute = "split"
	// RoutePremium credits the pool share straight to the premium pool,
	// bypassing the standard split.
	RoutePremium PoolRoute = "premium"
)

// Policy is one venue's fee schedule. All rates are per-mille of the gross
// trade amount; FeePerMille must equal PlatformPerMille + PoolPerMille.
type Policy struct {
	Name             string
	FeePerMille      int64
	PlatformPerMille int64
	PoolPerMille     int64
	Route            PoolRoute
}

// Reference schedules. SystemSale's fee never reaches the platform wallet —
// an intentional asymmetry against the peer and marketplace paths.
var (
	SystemSalePolicy = Policy{
		Name:         "system_sale",
		FeePerMille:  25,
		PoolPerMille: 25,
		Route:        RouteSplit,
	}
	PeerTradePolicy = Policy{
		Name:             "peer_trade",
		FeePerMille:      100,
		PlatformPerMille: 20,
		PoolPerMille:     80,
		Route:            RoutePremium,
	}
	MarketplacePolicy = Policy{
		Name:             "marketplace",
		FeePerMille:      30,
		PlatformPerMille: 10,
		PoolPerMille:     20,
		Route:            RouteSplit,
	}
)

// Validate checks internal consistency of a policy.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("fees: policy has no name: %w", domain.ErrArithmetic)
	}
	if p.FeePerMille < 0 || p.FeePerMille > Scale ||
		p.PlatformPerMille < 0 || p.PoolPerMille < 0 {
		return fmt.Errorf("fees: policy %s rates out of range: %w", p.Name, domain.ErrArithmetic)
	}
	if p.PlatformPerMille+p.PoolPerMille != p.FeePerMille {
		return fmt.Errorf("fees: policy %s shares do not sum to fee rate: %w", p.Name, domain.ErrArithmetic)
	}
	if p.Route != RouteSplit && p.Route != RoutePremium {
		return fmt.Errorf("fees: policy %s has unknown route %q: %w", p.Name, p.Route, domain.ErrArithmetic)
	}
	return nil
}

// Split computes the fee breakdown for a gross amount with floor division.
func (p Policy) Split(gross *big.Int) (domain.Receipt, error) {
	if !domain.ValidAmount(gross) {
		return domain.Receipt{}, fmt.Errorf("fees: policy %s: invalid gross: %w", p.Name, domain.ErrArithmetic)
	}

	scale := big.NewInt(Scale)
	fee := new(big.Int).Mul(gross, big.NewInt(p.FeePerMille))
	fee.Quo(fee, scale)
	platform := new(big.Int).Mul(gross, big.NewInt(p.PlatformPerMille))
	platform.Quo(platform, scale)
	pool := new(big.Int).Mul(gross, big.NewInt(p.PoolPerMille))
	pool.Quo(pool, scale)

	// Floor rounding can leave fee > platform + pool; the residue stays with
	// the seller rather than vanishing.
	fee = new(big.Int).Add(platform, pool)
	net := new(big.Int).Sub(gross, fee)

	return domain.Receipt{
		Gross:       new(big.Int).Set(gross),
		Fee:         fee,
		PlatformFee: platform,
		PoolFee:     pool,
		Net:         net,
	}, nil
}
