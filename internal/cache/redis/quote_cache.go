package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// QuoteCache implements domain.QuoteCache using plain keys with a TTL.
// Quotes are advisory: expiry is the only invalidation needed because
// settlement reprices against live pool state anyway.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(tokenID int64) string {
	return fmt.Sprintf("quote:%d", tokenID)
}

// SetQuote stores the quoted price for a token with the given TTL.
func (qc *QuoteCache) SetQuote(ctx context.Context, tokenID int64, price *big.Int, ttl time.Duration) error {
	if !domain.ValidAmount(price) {
		return fmt.Errorf("redis: quote for token %d: %w", tokenID, domain.ErrArithmetic)
	}
	if err := qc.rdb.Set(ctx, quoteKey(tokenID), price.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quote for token %d: %w", tokenID, err)
	}
	return nil
}

// GetQuote returns the cached quote for a token, or ErrNotFound when no
// fresh quote exists.
func (qc *QuoteCache) GetQuote(ctx context.Context, tokenID int64) (*big.Int, error) {
	val, err := qc.rdb.Get(ctx, quoteKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get quote for token %d: %w", tokenID, err)
	}
	price, err := domain.ParseAmount(val)
	if err != nil {
		return nil, fmt.Errorf("redis: parse quote for token %d: %w", tokenID, err)
	}
	return price, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
