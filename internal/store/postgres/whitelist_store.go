package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// WhitelistStore implements domain.WhitelistStore using PostgreSQL.
type WhitelistStore struct {
	pool *pgxpool.Pool
}

// NewWhitelistStore creates a new WhitelistStore backed by the given pool.
func NewWhitelistStore(pool *pgxpool.Pool) *WhitelistStore {
	return &WhitelistStore{pool: pool}
}

// Upsert writes an allowance, keeping the consumed count on update.
func (s *WhitelistStore) Upsert(ctx context.Context, e domain.WhitelistEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO whitelist (address, max_mint, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET max_mint = EXCLUDED.max_mint`,
		e.Address.Hex(), e.MaxMint, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert whitelist %s: %w", e.Address.Hex(), err)
	}
	return nil
}

// Get returns the allowance for addr.
func (s *WhitelistStore) Get(ctx context.Context, addr common.Address) (domain.WhitelistEntry, error) {
	var (
		e       domain.WhitelistEntry
		address string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT address, max_mint, minted, created_at
		FROM whitelist WHERE address = $1`, addr.Hex(),
	).Scan(&address, &e.MaxMint, &e.Minted, &e.CreatedAt)
	if err != nil {
		return domain.WhitelistEntry{}, fmt.Errorf("postgres: get whitelist %s: %w", addr.Hex(), mapErr(err))
	}
	e.Address = common.HexToAddress(address)
	return e, nil
}

// ConsumeMint increments the minted counter only while it is below the
// allowance. The guard lives in the WHERE clause so two concurrent mints
// cannot both consume the last slot.
func (s *WhitelistStore) ConsumeMint(ctx context.Context, addr common.Address) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE whitelist SET minted = minted + 1
		WHERE address = $1 AND minted < max_mint`, addr.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: consume mint for %s: %w", addr.Hex(), err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM whitelist WHERE address = $1)`, addr.Hex(),
	).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: check whitelist %s: %w", addr.Hex(), err)
	}
	if !exists {
		return fmt.Errorf("postgres: %s: %w", addr.Hex(), domain.ErrNotFound)
	}
	return fmt.Errorf("postgres: %s: %w", addr.Hex(), domain.ErrMintLimitReached)
}
