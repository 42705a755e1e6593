package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/pricing"
)

const (
	tokenLockTTL = 10 * time.Second
	quoteTTL     = 30 * time.Second
)

// SystemMarketService implements the protocol-as-counterparty market: every
// confirmed token can always be sold to the system at base price plus a
// rarity-weighted share of the premium pool, and bought back at the sale
// price with the premium decaying linearly to the floor over ninety days.
type SystemMarketService struct {
	projects domain.ProjectStore
	nfts     domain.NFTStore
	orders   domain.OrderStore
	trades   domain.TradeStore
	pools    Pools
	fees     FeeSettler
	quotes   domain.QuoteCache
	locks    domain.LockManager
	breaker  *Breaker
	audit    domain.AuditStore
	bus      domain.SignalBus

	vault  common.Address
	now    func() time.Time
	logger *slog.Logger
}

// MarketDeps bundles the SystemMarketService dependencies.
type MarketDeps struct {
	Projects domain.ProjectStore
	NFTs     domain.NFTStore
	Orders   domain.OrderStore
	Trades   domain.TradeStore
	Pools    Pools
	Fees     FeeSettler
	Quotes   domain.QuoteCache
	Locks    domain.LockManager
	Breaker  *Breaker
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Vault    common.Address
	Logger   *slog.Logger
}

// NewSystemMarketService creates a SystemMarketService. The vault address
// holds custody of every token sitting in the system market.
func NewSystemMarketService(d MarketDeps) (*SystemMarketService, error) {
	if d.Vault == (common.Address{}) {
		return nil, fmt.Errorf("market: vault address: %w", domain.ErrZeroAddress)
	}
	return &SystemMarketService{
		projects: d.Projects,
		nfts:     d.NFTs,
		orders:   d.Orders,
		trades:   d.Trades,
		pools:    d.Pools,
		fees:     d.Fees,
		quotes:   d.Quotes,
		locks:    d.Locks,
		breaker:  d.Breaker,
		audit:    d.Audit,
		bus:      d.Bus,
		vault:    d.Vault,
		now:      time.Now,
		logger:   d.Logger.With(slog.String("component", "system_market")),
	}, nil
}

// WithClock overrides the time source.
func (s *SystemMarketService) WithClock(now func() time.Time) *SystemMarketService {
	s.now = now
	return s
}

// SellResult is the outcome of a sell-to-system settlement.
type SellResult struct {
	Trade   domain.TradeRecord
	Receipt domain.Receipt
}

// BuyResult is the outcome of a buy-from-system settlement. Refund is the
// overpayment owed back to the buyer.
type BuyResult struct {
	Trade  domain.TradeRecord
	Price  *big.Int
	Refund *big.Int
}

// Quote returns the advisory system-market sale price for a token: its
// fixed base price plus its rarity share of the live premium pool. A quote
// reserves nothing; the settlement price is recomputed under the token lock.
func (s *SystemMarketService) Quote(ctx context.Context, tokenID int64) (*big.Int, error) {
	if s.quotes != nil {
		if cached, err := s.quotes.GetQuote(ctx, tokenID); err == nil && cached != nil {
			return cached, nil
		}
	}

	rec, err := s.nfts.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("market: get token %d: %w", tokenID, err)
	}

	price, err := s.quoteFor(ctx, rec)
	if err != nil {
		return nil, err
	}

	if s.quotes != nil {
		if err := s.quotes.SetQuote(ctx, tokenID, price, quoteTTL); err != nil {
			s.logger.WarnContext(ctx, "quote cache write failed",
				slog.Int64("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return price, nil
}

// BuybackPrice returns the current buy-from-system price for a listed token,
// with the premium decayed for the time elapsed since the sale.
func (s *SystemMarketService) BuybackPrice(ctx context.Context, tokenID int64) (*big.Int, error) {
	rec, err := s.nfts.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("market: get token %d: %w", tokenID, err)
	}
	if !rec.InSystemMarket || rec.SellTimestamp == nil {
		return nil, fmt.Errorf("market: token %d: %w", tokenID, domain.ErrNotListed)
	}
	return pricing.DecayedPrice(rec.SellPrice, rec.BasePrice, *rec.SellTimestamp, s.now().UTC())
}

// SellToSystem sells a token into the system market at the current quote.
// Custody moves to the vault, the listing flips on, the fee settles through
// the standard split, and the seller is owed the net. All checks and the
// settlement run under the per-token lock.
func (s *SystemMarketService) SellToSystem(ctx context.Context, tokenID int64, seller common.Address) (SellResult, error) {
	if err := s.breaker.Check(); err != nil {
		return SellResult{}, err
	}
	if seller == (common.Address{}) {
		return SellResult{}, domain.ErrZeroAddress
	}
	if err := s.requireConfirmed(ctx); err != nil {
		return SellResult{}, err
	}

	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return SellResult{}, err
	}
	defer unlock()

	rec, err := s.nfts.Get(ctx, tokenID)
	if err != nil {
		return SellResult{}, fmt.Errorf("market: get token %d: %w", tokenID, err)
	}
	if err := s.checkSellable(ctx, rec, seller); err != nil {
		return SellResult{}, err
	}

	price, err := s.quoteFor(ctx, rec)
	if err != nil {
		return SellResult{}, err
	}
	if s.pools.Liquidity().Cmp(price) < 0 {
		return SellResult{}, domain.NewTradeError("sell_to_system", tokenID, price, s.pools.Liquidity(), domain.ErrInsufficientLiquidity)
	}

	now := s.now().UTC()
	if err := s.nfts.MarkInSystemMarket(ctx, tokenID, seller, s.vault, price, now); err != nil {
		return SellResult{}, fmt.Errorf("market: list token %d: %w", tokenID, err)
	}

	receipt, err := s.fees.SettleSystemSale(ctx, tokenID, price)
	if err != nil {
		// The custody flip succeeded but the fee did not settle. Undo the
		// listing so the token is not stranded in the vault.
		if rbErr := s.nfts.ClearSystemMarket(ctx, tokenID, seller); rbErr != nil {
			s.logger.ErrorContext(ctx, "sell rollback failed",
				slog.Int64("token_id", tokenID),
				slog.String("error", rbErr.Error()),
			)
			s.logAudit(ctx, "sell_rollback_failed", map[string]any{
				"token_id": tokenID,
				"error":    rbErr.Error(),
			})
		}
		return SellResult{}, fmt.Errorf("market: settle sale of token %d: %w", tokenID, err)
	}

	trade := domain.TradeRecord{
		ID:          uuid.NewString(),
		TokenID:     tokenID,
		Venue:       domain.VenueSystem,
		Side:        domain.SideSellToSystem,
		Seller:      seller,
		Buyer:       s.vault,
		Gross:       receipt.Gross,
		Fee:         receipt.Fee,
		PlatformFee: receipt.PlatformFee,
		PoolFee:     receipt.PoolFee,
		NetToSeller: receipt.Net,
		CreatedAt:   now,
	}
	s.recordTrade(ctx, trade)

	s.logger.InfoContext(ctx, "token sold to system",
		slog.Int64("token_id", tokenID),
		slog.String("seller", seller.Hex()),
		slog.String("gross", domain.FormatAmount(receipt.Gross)),
		slog.String("net", domain.FormatAmount(receipt.Net)),
	)
	return SellResult{Trade: trade, Receipt: receipt}, nil
}

// BuyFromSystem buys a listed token back out of the system market at the
// decayed price. The premium portion is drawn from the premium pool under
// settlement-time re-validation: a quote that the pool can no longer honor
// fails with ErrStalePrice rather than draining the floor.
func (s *SystemMarketService) BuyFromSystem(ctx context.Context, tokenID int64, buyer common.Address, payment *big.Int) (BuyResult, error) {
	if err := s.breaker.Check(); err != nil {
		return BuyResult{}, err
	}
	if buyer == (common.Address{}) {
		return BuyResult{}, domain.ErrZeroAddress
	}
	if !domain.ValidAmount(payment) {
		return BuyResult{}, fmt.Errorf("market: invalid payment: %w", domain.ErrArithmetic)
	}

	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return BuyResult{}, err
	}
	defer unlock()

	rec, err := s.nfts.Get(ctx, tokenID)
	if err != nil {
		return BuyResult{}, fmt.Errorf("market: get token %d: %w", tokenID, err)
	}
	if !rec.InSystemMarket || rec.SellTimestamp == nil {
		return BuyResult{}, fmt.Errorf("market: token %d: %w", tokenID, domain.ErrNotListed)
	}

	now := s.now().UTC()
	price, err := pricing.DecayedPrice(rec.SellPrice, rec.BasePrice, *rec.SellTimestamp, now)
	if err != nil {
		return BuyResult{}, err
	}
	if payment.Cmp(price) < 0 {
		return BuyResult{}, domain.NewTradeError("buy_from_system", tokenID, price, new(big.Int).Set(payment), domain.ErrInsufficientPayment)
	}

	premium := new(big.Int).Sub(price, rec.BasePrice)
	if premium.Sign() > 0 {
		if err := s.pools.PayPremium(ctx, premium); err != nil {
			if errors.Is(err, domain.ErrInsufficientLiquidity) {
				return BuyResult{}, fmt.Errorf("market: token %d premium no longer covered: %w", tokenID, domain.ErrStalePrice)
			}
			return BuyResult{}, fmt.Errorf("market: pay premium for token %d: %w", tokenID, err)
		}
	}

	if err := s.nfts.ClearSystemMarket(ctx, tokenID, buyer); err != nil {
		// Put the drawn premium back; the listing is untouched.
		if premium.Sign() > 0 {
			if rbErr := s.pools.DepositPremium(ctx, premium); rbErr != nil {
				s.logger.ErrorContext(ctx, "premium restore failed",
					slog.Int64("token_id", tokenID),
					slog.String("premium", domain.FormatAmount(premium)),
					slog.String("error", rbErr.Error()),
				)
				s.logAudit(ctx, "premium_restore_failed", map[string]any{
					"token_id": tokenID,
					"premium":  domain.FormatAmount(premium),
					"error":    rbErr.Error(),
				})
			}
		}
		return BuyResult{}, fmt.Errorf("market: delist token %d: %w", tokenID, err)
	}

	trade := domain.TradeRecord{
		ID:          uuid.NewString(),
		TokenID:     tokenID,
		Venue:       domain.VenueSystem,
		Side:        domain.SideBuyFromSystem,
		Seller:      s.vault,
		Buyer:       buyer,
		Gross:       price,
		Fee:         new(big.Int),
		PlatformFee: new(big.Int),
		PoolFee:     new(big.Int),
		NetToSeller: price,
		CreatedAt:   now,
	}
	s.recordTrade(ctx, trade)

	refund := new(big.Int).Sub(payment, price)
	s.logger.InfoContext(ctx, "token bought from system",
		slog.Int64("token_id", tokenID),
		slog.String("buyer", buyer.Hex()),
		slog.String("price", domain.FormatAmount(price)),
		slog.String("refund", domain.FormatAmount(refund)),
	)
	return BuyResult{Trade: trade, Price: price, Refund: refund}, nil
}

// BatchSellToSystem sells several tokens in one all-or-nothing settlement:
// every token is validated and priced first, the aggregate payout is checked
// against pool liquidity, and only then do the custody flips and the single
// combined fee deposit run. One bad token rejects the whole batch with no
// state change.
func (s *SystemMarketService) BatchSellToSystem(ctx context.Context, tokenIDs []int64, seller common.Address) ([]SellResult, error) {
	if err := s.breaker.Check(); err != nil {
		return nil, err
	}
	if seller == (common.Address{}) {
		return nil, domain.ErrZeroAddress
	}
	if err := s.requireConfirmed(ctx); err != nil {
		return nil, err
	}
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	// Duplicates must be rejected before locking; the second acquire for
	// the same token would fail against the batch's own lock.
	seen := make(map[int64]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		if seen[id] {
			return nil, fmt.Errorf("market: token %d repeated in batch: %w", id, domain.ErrAlreadyListed)
		}
		seen[id] = true
	}

	unlocks := make([]func(), 0, len(tokenIDs))
	defer func() {
		for _, u := range unlocks {
			u()
		}
	}()
	for _, id := range tokenIDs {
		unlock, err := s.lockToken(ctx, id)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	now := s.now().UTC()
	sales := make([]domain.SystemSale, 0, len(tokenIDs))
	grosses := make(map[int64]*big.Int, len(tokenIDs))
	total := new(big.Int)
	for _, id := range tokenIDs {
		rec, err := s.nfts.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("market: get token %d: %w", id, err)
		}
		if err := s.checkSellable(ctx, rec, seller); err != nil {
			return nil, err
		}
		price, err := s.quoteFor(ctx, rec)
		if err != nil {
			return nil, err
		}
		sales = append(sales, domain.SystemSale{TokenID: id, Owner: seller, Vault: s.vault, SellPrice: price})
		grosses[id] = price
		total.Add(total, price)
	}

	if s.pools.Liquidity().Cmp(total) < 0 {
		return nil, domain.NewTradeError("batch_sell", 0, total, s.pools.Liquidity(), domain.ErrInsufficientLiquidity)
	}

	if err := s.nfts.MarkInSystemMarketBatch(ctx, sales, now); err != nil {
		return nil, fmt.Errorf("market: batch list: %w", err)
	}

	receipts, err := s.fees.SettleSystemSaleBatch(ctx, grosses)
	if err != nil {
		buys := make([]domain.SystemBuy, len(sales))
		for i, sale := range sales {
			buys[i] = domain.SystemBuy{TokenID: sale.TokenID, NewOwner: seller}
		}
		if rbErr := s.nfts.ClearSystemMarketBatch(ctx, buys); rbErr != nil {
			s.logger.ErrorContext(ctx, "batch sell rollback failed",
				slog.Int("tokens", len(buys)),
				slog.String("error", rbErr.Error()),
			)
			s.logAudit(ctx, "batch_sell_rollback_failed", map[string]any{
				"tokens": len(buys),
				"error":  rbErr.Error(),
			})
		}
		return nil, fmt.Errorf("market: settle batch sale: %w", err)
	}

	results := make([]SellResult, 0, len(sales))
	for _, sale := range sales {
		receipt := receipts[sale.TokenID]
		trade := domain.TradeRecord{
			ID:          uuid.NewString(),
			TokenID:     sale.TokenID,
			Venue:       domain.VenueSystem,
			Side:        domain.SideSellToSystem,
			Seller:      seller,
			Buyer:       s.vault,
			Gross:       receipt.Gross,
			Fee:         receipt.Fee,
			PlatformFee: receipt.PlatformFee,
			PoolFee:     receipt.PoolFee,
			NetToSeller: receipt.Net,
			CreatedAt:   now,
		}
		s.recordTrade(ctx, trade)
		results = append(results, SellResult{Trade: trade, Receipt: receipt})
	}

	s.logger.InfoContext(ctx, "batch sold to system",
		slog.Int("tokens", len(results)),
		slog.String("seller", seller.Hex()),
		slog.String("total", domain.FormatAmount(total)),
	)
	return results, nil
}

// BatchBuyFromSystem buys several listed tokens in one all-or-nothing
// settlement. Prices are computed first, the summed premium is drawn in one
// pool mutation, and the delistings apply in one transaction.
func (s *SystemMarketService) BatchBuyFromSystem(ctx context.Context, tokenIDs []int64, buyer common.Address, payment *big.Int) ([]BuyResult, *big.Int, error) {
	if err := s.breaker.Check(); err != nil {
		return nil, nil, err
	}
	if buyer == (common.Address{}) {
		return nil, nil, domain.ErrZeroAddress
	}
	if !domain.ValidAmount(payment) {
		return nil, nil, fmt.Errorf("market: invalid payment: %w", domain.ErrArithmetic)
	}
	if len(tokenIDs) == 0 {
		return nil, new(big.Int).Set(payment), nil
	}
	// Same ordering constraint as the batch sell: reject duplicates before
	// the batch tries to take the same token lock twice.
	seen := make(map[int64]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		if seen[id] {
			return nil, nil, fmt.Errorf("market: token %d repeated in batch: %w", id, domain.ErrNotListed)
		}
		seen[id] = true
	}

	unlocks := make([]func(), 0, len(tokenIDs))
	defer func() {
		for _, u := range unlocks {
			u()
		}
	}()
	for _, id := range tokenIDs {
		unlock, err := s.lockToken(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	now := s.now().UTC()
	type leg struct {
		tokenID int64
		price   *big.Int
	}
	legs := make([]leg, 0, len(tokenIDs))
	totalPrice := new(big.Int)
	totalPremium := new(big.Int)
	for _, id := range tokenIDs {
		rec, err := s.nfts.Get(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("market: get token %d: %w", id, err)
		}
		if !rec.InSystemMarket || rec.SellTimestamp == nil {
			return nil, nil, fmt.Errorf("market: token %d: %w", id, domain.ErrNotListed)
		}
		price, err := pricing.DecayedPrice(rec.SellPrice, rec.BasePrice, *rec.SellTimestamp, now)
		if err != nil {
			return nil, nil, err
		}
		legs = append(legs, leg{tokenID: id, price: price})
		totalPrice.Add(totalPrice, price)
		totalPremium.Add(totalPremium, new(big.Int).Sub(price, rec.BasePrice))
	}

	if payment.Cmp(totalPrice) < 0 {
		return nil, nil, domain.NewTradeError("batch_buy", 0, totalPrice, new(big.Int).Set(payment), domain.ErrInsufficientPayment)
	}

	if totalPremium.Sign() > 0 {
		if err := s.pools.PayPremium(ctx, totalPremium); err != nil {
			if errors.Is(err, domain.ErrInsufficientLiquidity) {
				return nil, nil, fmt.Errorf("market: batch premium no longer covered: %w", domain.ErrStalePrice)
			}
			return nil, nil, fmt.Errorf("market: pay batch premium: %w", err)
		}
	}

	buys := make([]domain.SystemBuy, len(legs))
	for i, l := range legs {
		buys[i] = domain.SystemBuy{TokenID: l.tokenID, NewOwner: buyer}
	}
	if err := s.nfts.ClearSystemMarketBatch(ctx, buys); err != nil {
		if totalPremium.Sign() > 0 {
			if rbErr := s.pools.DepositPremium(ctx, totalPremium); rbErr != nil {
				s.logger.ErrorContext(ctx, "batch premium restore failed",
					slog.String("premium", domain.FormatAmount(totalPremium)),
					slog.String("error", rbErr.Error()),
				)
				s.logAudit(ctx, "premium_restore_failed", map[string]any{
					"premium": domain.FormatAmount(totalPremium),
					"error":   rbErr.Error(),
				})
			}
		}
		return nil, nil, fmt.Errorf("market: batch delist: %w", err)
	}

	results := make([]BuyResult, 0, len(legs))
	for _, l := range legs {
		trade := domain.TradeRecord{
			ID:          uuid.NewString(),
			TokenID:     l.tokenID,
			Venue:       domain.VenueSystem,
			Side:        domain.SideBuyFromSystem,
			Seller:      s.vault,
			Buyer:       buyer,
			Gross:       l.price,
			Fee:         new(big.Int),
			PlatformFee: new(big.Int),
			PoolFee:     new(big.Int),
			NetToSeller: l.price,
			CreatedAt:   now,
		}
		s.recordTrade(ctx, trade)
		results = append(results, BuyResult{Trade: trade, Price: l.price, Refund: new(big.Int)})
	}

	refund := new(big.Int).Sub(payment, totalPrice)
	s.logger.InfoContext(ctx, "batch bought from system",
		slog.Int("tokens", len(results)),
		slog.String("buyer", buyer.Hex()),
		slog.String("total", domain.FormatAmount(totalPrice)),
	)
	return results, refund, nil
}

// Pause trips the circuit breaker.
func (s *SystemMarketService) Pause(ctx context.Context) {
	if s.breaker.Pause() {
		s.logAudit(ctx, "market_paused", nil)
		s.publishStatus(ctx, "market_paused")
		s.logger.WarnContext(ctx, "market paused")
	}
}

// Unpause resets the circuit breaker.
func (s *SystemMarketService) Unpause(ctx context.Context) {
	if s.breaker.Unpause() {
		s.logAudit(ctx, "market_unpaused", nil)
		s.publishStatus(ctx, "market_unpaused")
		s.logger.InfoContext(ctx, "market unpaused")
	}
}

// MarketInfo is the public snapshot of market state.
type MarketInfo struct {
	Pool      domain.Pool
	Liquidity *big.Int
	Paused    bool
	Vault     common.Address
}

// Info returns the current pool balances and market status.
func (s *SystemMarketService) Info(ctx context.Context) MarketInfo {
	return MarketInfo{
		Pool:      s.pools.Snapshot(),
		Liquidity: s.pools.Liquidity(),
		Paused:    s.breaker.Paused(),
		Vault:     s.vault,
	}
}

// requireConfirmed rejects sells while the project is still in Creation.
// The per-record PriceConfirmed flag covers the same window, but the phase
// is the authoritative gate.
func (s *SystemMarketService) requireConfirmed(ctx context.Context) error {
	proj, err := s.projects.Get(ctx)
	if err != nil {
		return fmt.Errorf("market: get project: %w", err)
	}
	if proj.Phase != domain.PhaseConfirmed {
		return fmt.Errorf("market: project phase %s: %w", proj.Phase, domain.ErrWrongPhase)
	}
	return nil
}

// checkSellable verifies the preconditions for selling rec into the system
// market on behalf of seller.
func (s *SystemMarketService) checkSellable(ctx context.Context, rec domain.NFTRecord, seller common.Address) error {
	if !rec.PriceConfirmed || rec.BasePrice == nil {
		return fmt.Errorf("market: token %d: %w", rec.TokenID, domain.ErrPriceNotConfirmed)
	}
	if rec.InSystemMarket {
		return fmt.Errorf("market: token %d: %w", rec.TokenID, domain.ErrAlreadyListed)
	}
	if rec.Owner != seller {
		return fmt.Errorf("market: token %d owned by %s: %w", rec.TokenID, rec.Owner.Hex(), domain.ErrNotOwner)
	}
	// A peer listing and a system-market listing are mutually exclusive.
	if s.orders != nil {
		if _, err := s.orders.Get(ctx, rec.TokenID); err == nil {
			return fmt.Errorf("market: token %d has an open peer listing: %w", rec.TokenID, domain.ErrAlreadyListed)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("market: check peer listing for token %d: %w", rec.TokenID, err)
		}
	}
	return nil
}

// quoteFor prices rec against the live premium pool.
func (s *SystemMarketService) quoteFor(ctx context.Context, rec domain.NFTRecord) (*big.Int, error) {
	if !rec.PriceConfirmed || rec.BasePrice == nil {
		return nil, fmt.Errorf("market: token %d: %w", rec.TokenID, domain.ErrPriceNotConfirmed)
	}
	_, totalRarity, err := s.nfts.RarityTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("market: rarity totals: %w", err)
	}
	pool := s.pools.Snapshot()
	return pricing.SystemPrice(rec.BasePrice, rec.Rarity, totalRarity, pool.PremiumPool)
}

func (s *SystemMarketService) lockToken(ctx context.Context, tokenID int64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("token:%d", tokenID), tokenLockTTL)
	if err != nil {
		return nil, fmt.Errorf("market: lock token %d: %w", tokenID, err)
	}
	return unlock, nil
}

// recordTrade persists the settlement row and publishes the trade event.
// Both are observability paths: failures are logged, never propagated, so a
// completed settlement is never reported as failed.
func (s *SystemMarketService) recordTrade(ctx context.Context, t domain.TradeRecord) {
	if s.trades != nil {
		if err := s.trades.Insert(ctx, t); err != nil {
			s.logger.ErrorContext(ctx, "trade record insert failed",
				slog.String("trade_id", t.ID),
				slog.Int64("token_id", t.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(domain.TradeEvent{
		Event:   "trade_settled",
		TradeID: t.ID,
		TokenID: t.TokenID,
		Venue:   string(t.Venue),
		Side:    string(t.Side),
		Gross:   domain.FormatAmount(t.Gross),
		Net:     domain.FormatAmount(t.NetToSeller),
	})
	if err := s.bus.Publish(ctx, domain.ChannelTrades, evt); err != nil {
		s.logger.WarnContext(ctx, "trade event publish failed",
			slog.String("trade_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SystemMarketService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SystemMarketService) publishStatus(ctx context.Context, event string) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(domain.StatusEvent{Event: event, At: s.now().UTC()})
	if err := s.bus.Publish(ctx, domain.ChannelStatus, evt); err != nil {
		s.logger.WarnContext(ctx, "status publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
