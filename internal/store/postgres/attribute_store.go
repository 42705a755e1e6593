package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// AttributeStore implements domain.AttributeStore using PostgreSQL.
type AttributeStore struct {
	pool *pgxpool.Pool
}

// NewAttributeStore creates a new AttributeStore backed by the given pool.
func NewAttributeStore(pool *pgxpool.Pool) *AttributeStore {
	return &AttributeStore{pool: pool}
}

// Replace swaps the full attribute set for a token in one transaction, so a
// rarity recomputation never observes a half-written set.
func (s *AttributeStore) Replace(ctx context.Context, tokenID int64, attrs []domain.Attribute) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin attribute tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM nft_attributes WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("postgres: clear attributes for token %d: %w", tokenID, err)
	}

	for i, a := range attrs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO nft_attributes (token_id, position, name, value)
			VALUES ($1, $2, $3, $4)`,
			tokenID, i, a.Name, a.Value,
		); err != nil {
			return fmt.Errorf("postgres: insert attribute %d for token %d: %w", i, tokenID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit attribute tx: %w", err)
	}
	return nil
}

// Get returns the attribute set for a token in insertion order.
func (s *AttributeStore) Get(ctx context.Context, tokenID int64) ([]domain.Attribute, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, value FROM nft_attributes
		WHERE token_id = $1 ORDER BY position ASC`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get attributes for token %d: %w", tokenID, err)
	}
	defer rows.Close()

	var attrs []domain.Attribute
	for rows.Next() {
		var a domain.Attribute
		if err := rows.Scan(&a.Name, &a.Value); err != nil {
			return nil, fmt.Errorf("postgres: scan attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("postgres: attributes for token %d: %w", tokenID, domain.ErrNotFound)
	}
	return attrs, nil
}
