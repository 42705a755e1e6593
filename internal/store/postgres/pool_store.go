package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL. The pool is a
// singleton row seeded by the initial migration, so Get never misses.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Get returns the persisted pool balances.
func (s *PoolStore) Get(ctx context.Context) (domain.Pool, error) {
	var (
		p               domain.Pool
		basePool        string
		basePoolTotal   string
		premiumPool     string
		platformAccrued string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT base_pool, base_pool_total, premium_pool, platform_accrued, updated_at
		FROM pool_state WHERE id = 1`,
	).Scan(&basePool, &basePoolTotal, &premiumPool, &platformAccrued, &p.UpdatedAt)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: get pool: %w", mapErr(err))
	}

	if p.BasePool, err = parseAmount(basePool); err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: base pool: %w", err)
	}
	if p.BasePoolTotal, err = parseAmount(basePoolTotal); err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: base pool total: %w", err)
	}
	if p.PremiumPool, err = parseAmount(premiumPool); err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: premium pool: %w", err)
	}
	if p.PlatformAccrued, err = parseAmount(platformAccrued); err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: platform accrued: %w", err)
	}
	return p, nil
}

// Save persists the pool balances.
func (s *PoolStore) Save(ctx context.Context, p domain.Pool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pool_state
		SET base_pool = $1, base_pool_total = $2, premium_pool = $3,
		    platform_accrued = $4, updated_at = $5
		WHERE id = 1`,
		amountText(p.BasePool), amountText(p.BasePoolTotal),
		amountText(p.PremiumPool), amountText(p.PlatformAccrued), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save pool: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres: save pool: %w", domain.ErrNotFound)
	}
	return nil
}
