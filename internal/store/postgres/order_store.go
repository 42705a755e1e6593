package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. One row per
// token; the primary key enforces the single-active-listing invariant.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func scanOrder(row pgx.Row) (domain.MarketOrder, error) {
	var (
		o      domain.MarketOrder
		seller string
		price  string
		venue  string
	)
	if err := row.Scan(&o.TokenID, &seller, &price, &venue, &o.CreatedAt); err != nil {
		return domain.MarketOrder{}, err
	}
	o.Seller = common.HexToAddress(seller)
	o.Venue = domain.TradeVenue(venue)
	var err error
	if o.Price, err = parseAmount(price); err != nil {
		return domain.MarketOrder{}, fmt.Errorf("order price: %w", err)
	}
	return o, nil
}

// Create inserts a listing. A second listing for the same token fails with
// ErrAlreadyExists.
func (s *OrderStore) Create(ctx context.Context, o domain.MarketOrder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO market_orders (token_id, seller, price, venue, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.TokenID, o.Seller.Hex(), amountText(o.Price), string(o.Venue), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order for token %d: %w", o.TokenID, mapErr(err))
	}
	return nil
}

// Get returns the open listing for tokenID.
func (s *OrderStore) Get(ctx context.Context, tokenID int64) (domain.MarketOrder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT token_id, seller, price, venue, created_at
		FROM market_orders WHERE token_id = $1`, tokenID)
	o, err := scanOrder(row)
	if err != nil {
		return domain.MarketOrder{}, fmt.Errorf("postgres: get order for token %d: %w", tokenID, mapErr(err))
	}
	return o, nil
}

// Delete removes the listing for tokenID.
func (s *OrderStore) Delete(ctx context.Context, tokenID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_orders WHERE token_id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("postgres: delete order for token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres: order for token %d: %w", tokenID, domain.ErrNotFound)
	}
	return nil
}

// List returns open listings ordered newest first.
func (s *OrderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MarketOrder, error) {
	query := `SELECT token_id, seller, price, venue, created_at
		FROM market_orders ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.MarketOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
