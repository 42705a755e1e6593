package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trade rows are
// append-only: written once at settlement, never updated.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, token_id, venue, side, seller, buyer,
	gross, fee, platform_fee, pool_fee, net_to_seller, created_at`

func scanTrade(row pgx.Row) (domain.TradeRecord, error) {
	var (
		t      domain.TradeRecord
		venue  string
		side   string
		seller string
		buyer  string
		gross  string
		fee    string
		pfFee  string
		plFee  string
		net    string
	)
	err := row.Scan(&t.ID, &t.TokenID, &venue, &side, &seller, &buyer,
		&gross, &fee, &pfFee, &plFee, &net, &t.CreatedAt)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	t.Venue = domain.TradeVenue(venue)
	t.Side = domain.TradeSide(side)
	t.Seller = common.HexToAddress(seller)
	t.Buyer = common.HexToAddress(buyer)
	if t.Gross, err = parseAmount(gross); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("gross: %w", err)
	}
	if t.Fee, err = parseAmount(fee); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("fee: %w", err)
	}
	if t.PlatformFee, err = parseAmount(pfFee); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("platform fee: %w", err)
	}
	if t.PoolFee, err = parseAmount(plFee); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("pool fee: %w", err)
	}
	if t.NetToSeller, err = parseAmount(net); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("net: %w", err)
	}
	return t, nil
}

// Insert writes one settlement row.
func (s *TradeStore) Insert(ctx context.Context, t domain.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (
			id, token_id, venue, side, seller, buyer,
			gross, fee, platform_fee, pool_fee, net_to_seller, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.TokenID, string(t.Venue), string(t.Side),
		t.Seller.Hex(), t.Buyer.Hex(),
		amountText(t.Gross), amountText(t.Fee), amountText(t.PlatformFee),
		amountText(t.PoolFee), amountText(t.NetToSeller), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, mapErr(err))
	}
	return nil
}

// ListRecent returns the newest trades, most recent first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// ListBefore returns all trades settled strictly before the given time, for
// archiving.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
