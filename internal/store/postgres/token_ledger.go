package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// TokenLedger implements domain.TokenLedger on the nft_records table.
// Transfers are compare-and-swaps on the current owner, so a stale caller
// can never move a token it no longer controls.
type TokenLedger struct {
	pool *pgxpool.Pool
}

// NewTokenLedger creates a new TokenLedger backed by the given pool.
func NewTokenLedger(pool *pgxpool.Pool) *TokenLedger {
	return &TokenLedger{pool: pool}
}

// OwnerOf returns the current owner of tokenID.
func (l *TokenLedger) OwnerOf(ctx context.Context, tokenID int64) (common.Address, error) {
	var owner string
	err := l.pool.QueryRow(ctx,
		`SELECT owner FROM nft_records WHERE token_id = $1`, tokenID,
	).Scan(&owner)
	if err != nil {
		return common.Address{}, fmt.Errorf("postgres: owner of token %d: %w", tokenID, mapErr(err))
	}
	return common.HexToAddress(owner), nil
}

// Transfer moves custody from `from` to `to`, refusing tokens parked in the
// system market: those move only through the market settlement paths.
func (l *TokenLedger) Transfer(ctx context.Context, tokenID int64, from, to common.Address) error {
	if to == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	tag, err := l.pool.Exec(ctx, `
		UPDATE nft_records SET owner = $3, updated_at = NOW()
		WHERE token_id = $1 AND owner = $2 AND in_system_market = FALSE`,
		tokenID, from.Hex(), to.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: transfer token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() != 1 {
		var owner string
		var listed bool
		scanErr := l.pool.QueryRow(ctx,
			`SELECT owner, in_system_market FROM nft_records WHERE token_id = $1`, tokenID,
		).Scan(&owner, &listed)
		if scanErr != nil {
			return fmt.Errorf("postgres: transfer token %d: %w", tokenID, mapErr(scanErr))
		}
		if listed {
			return fmt.Errorf("postgres: token %d is in the system market: %w", tokenID, domain.ErrAlreadyListed)
		}
		return fmt.Errorf("postgres: token %d owned by %s: %w", tokenID, owner, domain.ErrNotOwner)
	}
	return nil
}
