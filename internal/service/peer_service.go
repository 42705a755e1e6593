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
)

// PeerMarketService implements user-to-user listings on the peer and
// marketplace venues. Listings are ephemeral rows: created on list,
// destroyed on cancel or fill. A token in the system market cannot be
// peer-listed and vice versa.
type PeerMarketService struct {
	nfts    domain.NFTStore
	orders  domain.OrderStore
	trades  domain.TradeStore
	tokens  domain.TokenLedger
	fees    FeeSettler
	locks   domain.LockManager
	breaker *Breaker
	audit   domain.AuditStore
	bus     domain.SignalBus

	now    func() time.Time
	logger *slog.Logger
}

// PeerDeps bundles the PeerMarketService dependencies.
type PeerDeps struct {
	NFTs    domain.NFTStore
	Orders  domain.OrderStore
	Trades  domain.TradeStore
	Tokens  domain.TokenLedger
	Fees    FeeSettler
	Locks   domain.LockManager
	Breaker *Breaker
	Audit   domain.AuditStore
	Bus     domain.SignalBus
	Logger  *slog.Logger
}

// NewPeerMarketService creates a PeerMarketService.
func NewPeerMarketService(d PeerDeps) *PeerMarketService {
	return &PeerMarketService{
		nfts:    d.NFTs,
		orders:  d.Orders,
		trades:  d.Trades,
		tokens:  d.Tokens,
		fees:    d.Fees,
		locks:   d.Locks,
		breaker: d.Breaker,
		audit:   d.Audit,
		bus:     d.Bus,
		now:     time.Now,
		logger:  d.Logger.With(slog.String("component", "peer_market")),
	}
}

// WithClock overrides the time source.
func (s *PeerMarketService) WithClock(now func() time.Time) *PeerMarketService {
	s.now = now
	return s
}

// List creates a listing for tokenID at price on the given venue. The token
// must have a confirmed price, belong to seller, and sit outside the system
// market.
func (s *PeerMarketService) List(ctx context.Context, tokenID int64, seller common.Address, price *big.Int, venue domain.TradeVenue) (domain.MarketOrder, error) {
	if err := s.breaker.Check(); err != nil {
		return domain.MarketOrder{}, err
	}
	if seller == (common.Address{}) {
		return domain.MarketOrder{}, domain.ErrZeroAddress
	}
	if venue != domain.VenuePeer && venue != domain.VenueMarketplace {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: venue %s cannot be listed directly: %w", venue, domain.ErrArithmetic)
	}
	if !domain.ValidAmount(price) || price.Sign() == 0 {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: price must be positive: %w", domain.ErrArithmetic)
	}

	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return domain.MarketOrder{}, err
	}
	defer unlock()

	rec, err := s.nfts.Get(ctx, tokenID)
	if err != nil {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: get token %d: %w", tokenID, err)
	}
	if !rec.PriceConfirmed {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: token %d: %w", tokenID, domain.ErrPriceNotConfirmed)
	}
	if rec.InSystemMarket {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: token %d is in the system market: %w", tokenID, domain.ErrAlreadyListed)
	}
	if rec.Owner != seller {
		return domain.MarketOrder{}, fmt.Errorf("peer_market: token %d owned by %s: %w", tokenID, rec.Owner.Hex(), domain.ErrNotOwner)
	}

	order := domain.MarketOrder{
		TokenID:   tokenID,
		Seller:    seller,
		Price:     new(big.Int).Set(price),
		Venue:     venue,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.MarketOrder{}, fmt.Errorf("peer_market: token %d: %w", tokenID, domain.ErrOrderExists)
		}
		return domain.MarketOrder{}, fmt.Errorf("peer_market: create order for token %d: %w", tokenID, err)
	}

	s.publishOrder(ctx, "order_created", order)
	s.logger.InfoContext(ctx, "token listed",
		slog.Int64("token_id", tokenID),
		slog.String("seller", seller.Hex()),
		slog.String("price", domain.FormatAmount(price)),
		slog.String("venue", string(venue)),
	)
	return order, nil
}

// Cancel removes seller's listing for tokenID.
func (s *PeerMarketService) Cancel(ctx context.Context, tokenID int64, seller common.Address) error {
	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.orders.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("peer_market: token %d: %w", tokenID, domain.ErrNotListed)
		}
		return fmt.Errorf("peer_market: get order for token %d: %w", tokenID, err)
	}
	if order.Seller != seller {
		return fmt.Errorf("peer_market: order for token %d belongs to %s: %w", tokenID, order.Seller.Hex(), domain.ErrNotOwner)
	}

	if err := s.orders.Delete(ctx, tokenID); err != nil {
		return fmt.Errorf("peer_market: delete order for token %d: %w", tokenID, err)
	}

	s.publishOrder(ctx, "order_cancelled", order)
	s.logger.InfoContext(ctx, "listing cancelled",
		slog.Int64("token_id", tokenID),
		slog.String("seller", seller.Hex()),
	)
	return nil
}

// Buy fills the listing for tokenID: custody moves with a compare-and-swap
// on the seller, the venue's fee schedule settles, and the order row is
// destroyed. The overpayment is returned as the refund.
func (s *PeerMarketService) Buy(ctx context.Context, tokenID int64, buyer common.Address, payment *big.Int) (SellResult, *big.Int, error) {
	if err := s.breaker.Check(); err != nil {
		return SellResult{}, nil, err
	}
	if buyer == (common.Address{}) {
		return SellResult{}, nil, domain.ErrZeroAddress
	}
	if !domain.ValidAmount(payment) {
		return SellResult{}, nil, fmt.Errorf("peer_market: invalid payment: %w", domain.ErrArithmetic)
	}

	unlock, err := s.lockToken(ctx, tokenID)
	if err != nil {
		return SellResult{}, nil, err
	}
	defer unlock()

	order, err := s.orders.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SellResult{}, nil, fmt.Errorf("peer_market: token %d: %w", tokenID, domain.ErrNotListed)
		}
		return SellResult{}, nil, fmt.Errorf("peer_market: get order for token %d: %w", tokenID, err)
	}
	if buyer == order.Seller {
		return SellResult{}, nil, fmt.Errorf("peer_market: token %d: self-purchase: %w", tokenID, domain.ErrNotOwner)
	}
	if payment.Cmp(order.Price) < 0 {
		return SellResult{}, nil, domain.NewTradeError("peer_buy", tokenID, order.Price, new(big.Int).Set(payment), domain.ErrInsufficientPayment)
	}

	if err := s.tokens.Transfer(ctx, tokenID, order.Seller, buyer); err != nil {
		return SellResult{}, nil, fmt.Errorf("peer_market: transfer token %d: %w", tokenID, err)
	}

	receipt, err := s.settleByVenue(ctx, order.Venue, tokenID, order.Price)
	if err != nil {
		// Undo the custody move; the listing stays open.
		if rbErr := s.tokens.Transfer(ctx, tokenID, buyer, order.Seller); rbErr != nil {
			s.logger.ErrorContext(ctx, "peer trade rollback failed",
				slog.Int64("token_id", tokenID),
				slog.String("error", rbErr.Error()),
			)
			s.logAudit(ctx, "peer_rollback_failed", map[string]any{
				"token_id": tokenID,
				"error":    rbErr.Error(),
			})
		}
		return SellResult{}, nil, fmt.Errorf("peer_market: settle token %d: %w", tokenID, err)
	}

	if err := s.orders.Delete(ctx, tokenID); err != nil {
		// The trade settled; a dangling order row is an operator cleanup,
		// not a failed trade.
		s.logger.ErrorContext(ctx, "filled order delete failed",
			slog.Int64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		s.logAudit(ctx, "order_delete_failed", map[string]any{
			"token_id": tokenID,
			"error":    err.Error(),
		})
	}

	now := s.now().UTC()
	trade := domain.TradeRecord{
		ID:          uuid.NewString(),
		TokenID:     tokenID,
		Venue:       order.Venue,
		Side:        domain.SidePeerSale,
		Seller:      order.Seller,
		Buyer:       buyer,
		Gross:       receipt.Gross,
		Fee:         receipt.Fee,
		PlatformFee: receipt.PlatformFee,
		PoolFee:     receipt.PoolFee,
		NetToSeller: receipt.Net,
		CreatedAt:   now,
	}
	s.recordTrade(ctx, trade)
	s.publishOrder(ctx, "order_filled", order)

	refund := new(big.Int).Sub(payment, order.Price)
	s.logger.InfoContext(ctx, "listing filled",
		slog.Int64("token_id", tokenID),
		slog.String("buyer", buyer.Hex()),
		slog.String("gross", domain.FormatAmount(receipt.Gross)),
		slog.String("net", domain.FormatAmount(receipt.Net)),
	)
	return SellResult{Trade: trade, Receipt: receipt}, refund, nil
}

// Orders lists open listings.
func (s *PeerMarketService) Orders(ctx context.Context, opts domain.ListOpts) ([]domain.MarketOrder, error) {
	orders, err := s.orders.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("peer_market: list orders: %w", err)
	}
	return orders, nil
}

// OrderFor returns the open listing for tokenID, if any.
func (s *PeerMarketService) OrderFor(ctx context.Context, tokenID int64) (domain.MarketOrder, error) {
	order, err := s.orders.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MarketOrder{}, fmt.Errorf("peer_market: token %d: %w", tokenID, domain.ErrNotListed)
		}
		return domain.MarketOrder{}, fmt.Errorf("peer_market: get order for token %d: %w", tokenID, err)
	}
	return order, nil
}

func (s *PeerMarketService) settleByVenue(ctx context.Context, venue domain.TradeVenue, tokenID int64, gross *big.Int) (domain.Receipt, error) {
	switch venue {
	case domain.VenuePeer:
		return s.fees.SettlePeerTrade(ctx, tokenID, gross)
	case domain.VenueMarketplace:
		return s.fees.SettleMarketplaceTrade(ctx, tokenID, gross)
	default:
		return domain.Receipt{}, fmt.Errorf("peer_market: no settlement for venue %s: %w", venue, domain.ErrNotFound)
	}
}

func (s *PeerMarketService) lockToken(ctx context.Context, tokenID int64) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("token:%d", tokenID), tokenLockTTL)
	if err != nil {
		return nil, fmt.Errorf("peer_market: lock token %d: %w", tokenID, err)
	}
	return unlock, nil
}

func (s *PeerMarketService) recordTrade(ctx context.Context, t domain.TradeRecord) {
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

func (s *PeerMarketService) publishOrder(ctx context.Context, event string, o domain.MarketOrder) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(domain.OrderEvent{
		Event:   event,
		TokenID: o.TokenID,
		Seller:  o.Seller.Hex(),
		Price:   domain.FormatAmount(o.Price),
	})
	if err := s.bus.Publish(ctx, domain.ChannelOrders, evt); err != nil {
		s.logger.WarnContext(ctx, "order event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PeerMarketService) logAudit(ctx context.Context, event string, detail map[string]any) {
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
