package domain

import (
	"context"
	"math/big"
	"time"
)

// QuoteCache stores advisory system-price quotes. Quotes are never a
// reservation: settlement re-validates against live pool state.
type QuoteCache interface {
	SetQuote(ctx context.Context, tokenID int64, price *big.Int, ttl time.Duration) error
	GetQuote(ctx context.Context, tokenID int64) (*big.Int, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. Every per-token state
// transition runs under a token lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is a single entry read back from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out and durable streams for ledger events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
