package fees

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Pools is the slice of the pool ledger the splitter needs to route fee
// shares.
type Pools interface {
	// DepositFee atomically credits the pool share (direct-premium or via
	// the standard split) together with the platform accrual.
	DepositFee(ctx context.Context, poolShare *big.Int, premiumDirect bool, platformShare *big.Int) error
}

// Splitter routes every trade fee three ways: pool share into the ledger,
// platform share to the treasury accrual, net back to the caller for the
// seller payout. A settlement either applies completely or not at all.
type Splitter struct {
	pools          Pools
	platformWallet common.Address
	policies       map[domain.TradeVenue]Policy
	logger         *slog.Logger
}

// NewSplitter validates the schedules and the platform wallet up front. The
// peer and marketplace paths pay the platform, so a zero platform wallet is
// a hard configuration failure, not a skipped transfer.
func NewSplitter(pools Pools, platformWallet common.Address, policies map[domain.TradeVenue]Policy, logger *slog.Logger) (*Splitter, error) {
	for venue, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.PlatformPerMille > 0 && platformWallet == (common.Address{}) {
			return nil, fmt.Errorf("fees: venue %s: %w", venue, domain.ErrNoPlatformWallet)
		}
	}
	return &Splitter{
		pools:          pools,
		platformWallet: platformWallet,
		policies:       policies,
		logger:         logger.With(slog.String("component", "fee_splitter")),
	}, nil
}

// DefaultPolicies maps each venue to its reference schedule.
func DefaultPolicies() map[domain.TradeVenue]Policy {
	return map[domain.TradeVenue]Policy{
		domain.VenueSystem:      SystemSalePolicy,
		domain.VenuePeer:        PeerTradePolicy,
		domain.VenueMarketplace: MarketplacePolicy,
	}
}

// PlatformWallet returns the configured treasury address.
func (s *Splitter) PlatformWallet() common.Address { return s.platformWallet }

// SettleSystemSale charges the system-market fee on a sell-to-system trade.
// The whole fee runs through the ledger's standard split deposit; no
// platform share exists on this path.
func (s *Splitter) SettleSystemSale(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error) {
	return s.settle(ctx, domain.VenueSystem, tokenID, gross)
}

// SettleSystemSaleBatch settles many sell-to-system trades at once. Each
// gross is split with the per-token floor rounding of the single-trade path,
// then the summed shares land in one atomic ledger mutation so a batch can
// never half-settle.
func (s *Splitter) SettleSystemSaleBatch(ctx context.Context, grosses map[int64]*big.Int) (map[int64]domain.Receipt, error) {
	policy, ok := s.policies[domain.VenueSystem]
	if !ok {
		return nil, fmt.Errorf("fees: no policy for venue %s: %w", domain.VenueSystem, domain.ErrNotFound)
	}

	receipts := make(map[int64]domain.Receipt, len(grosses))
	poolTotal := new(big.Int)
	platformTotal := new(big.Int)
	for tokenID, gross := range grosses {
		receipt, err := policy.Split(gross)
		if err != nil {
			return nil, fmt.Errorf("fees: token %d: %w", tokenID, err)
		}
		receipts[tokenID] = receipt
		poolTotal.Add(poolTotal, receipt.PoolFee)
		platformTotal.Add(platformTotal, receipt.PlatformFee)
	}

	if poolTotal.Sign() > 0 || platformTotal.Sign() > 0 {
		premiumDirect := policy.Route == RoutePremium
		if err := s.pools.DepositFee(ctx, poolTotal, premiumDirect, platformTotal); err != nil {
			return nil, fmt.Errorf("fees: %s batch settlement: %w", policy.Name, err)
		}
	}

	s.logger.DebugContext(ctx, "batch fee settled",
		slog.String("policy", policy.Name),
		slog.Int("trades", len(receipts)),
		slog.String("pool_share", domain.FormatAmount(poolTotal)),
		slog.String("platform_share", domain.FormatAmount(platformTotal)),
	)
	return receipts, nil
}

// SettlePeerTrade settles a direct user-to-user sale: pool share straight to
// the premium pool, platform share accrued to the treasury.
func (s *Splitter) SettlePeerTrade(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error) {
	return s.settle(ctx, domain.VenuePeer, tokenID, gross)
}

// SettleMarketplaceTrade settles a primary marketplace listing: pool share
// through the standard split, platform share accrued to the treasury.
func (s *Splitter) SettleMarketplaceTrade(ctx context.Context, tokenID int64, gross *big.Int) (domain.Receipt, error) {
	return s.settle(ctx, domain.VenueMarketplace, tokenID, gross)
}

func (s *Splitter) settle(ctx context.Context, venue domain.TradeVenue, tokenID int64, gross *big.Int) (domain.Receipt, error) {
	policy, ok := s.policies[venue]
	if !ok {
		return domain.Receipt{}, fmt.Errorf("fees: no policy for venue %s: %w", venue, domain.ErrNotFound)
	}

	receipt, err := policy.Split(gross)
	if err != nil {
		return domain.Receipt{}, err
	}

	if receipt.Fee.Sign() > 0 {
		premiumDirect := policy.Route == RoutePremium
		if err := s.pools.DepositFee(ctx, receipt.PoolFee, premiumDirect, receipt.PlatformFee); err != nil {
			return domain.Receipt{}, fmt.Errorf("fees: %s settlement: %w", policy.Name, err)
		}
	}

	s.logger.DebugContext(ctx, "fee settled",
		slog.String("policy", policy.Name),
		slog.Int64("token_id", tokenID),
		slog.String("gross", domain.FormatAmount(receipt.Gross)),
		slog.String("fee", domain.FormatAmount(receipt.Fee)),
		slog.String("net", domain.FormatAmount(receipt.Net)),
	)
	return receipt, nil
}
