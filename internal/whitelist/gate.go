// Package whitelist gates minting: allowlist membership, the configured
// mint window, and per-address caps. It sits outside the pricing core and
// is consulted only by the mint entry point.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Config controls the gate. With Enabled false every address passes and
// only the window check applies (when a window is set).
type Config struct {
	Enabled     bool
	WindowStart time.Time
	WindowEnd   time.Time
	DefaultCap  int64 // per-address mint cap for allowlisted addresses
}

// Gate enforces mint admission.
type Gate struct {
	cfg    Config
	store  domain.WhitelistStore
	now    func() time.Time
	logger *slog.Logger
}

// NewGate creates a Gate. The now function is replaceable for tests.
func NewGate(cfg Config, store domain.WhitelistStore, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("component", "whitelist_gate")),
	}
}

// WithClock overrides the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// IsWhitelisted reports allowlist membership without consuming anything.
func (g *Gate) IsWhitelisted(ctx context.Context, addr common.Address) (bool, error) {
	if !g.cfg.Enabled {
		return true, nil
	}
	_, err := g.store.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("whitelist: lookup %s: %w", addr.Hex(), err)
	}
	return true, nil
}

// Admit checks every mint precondition for addr and consumes one mint slot.
// It fails before any consumption when a precondition does not hold.
func (g *Gate) Admit(ctx context.Context, addr common.Address) error {
	if addr == (common.Address{}) {
		return domain.ErrZeroAddress
	}

	now := g.now().UTC()
	if !g.cfg.WindowStart.IsZero() && now.Before(g.cfg.WindowStart) {
		return fmt.Errorf("whitelist: window opens %s: %w", g.cfg.WindowStart.Format(time.RFC3339), domain.ErrMintWindowClosed)
	}
	if !g.cfg.WindowEnd.IsZero() && now.After(g.cfg.WindowEnd) {
		return fmt.Errorf("whitelist: window closed %s: %w", g.cfg.WindowEnd.Format(time.RFC3339), domain.ErrMintWindowClosed)
	}

	if !g.cfg.Enabled {
		return nil
	}

	if err := g.store.ConsumeMint(ctx, addr); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("whitelist: %s: %w", addr.Hex(), domain.ErrNotWhitelisted)
		}
		return fmt.Errorf("whitelist: consume mint for %s: %w", addr.Hex(), err)
	}
	return nil
}

// Add upserts an allowance, using the default cap when maxMint is zero.
func (g *Gate) Add(ctx context.Context, addr common.Address, maxMint int64) error {
	if addr == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	if maxMint <= 0 {
		maxMint = g.cfg.DefaultCap
	}
	entry := domain.WhitelistEntry{Address: addr, MaxMint: maxMint, CreatedAt: g.now().UTC()}
	if err := g.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("whitelist: add %s: %w", addr.Hex(), err)
	}
	g.logger.InfoContext(ctx, "address whitelisted",
		slog.String("address", addr.Hex()),
		slog.Int64("max_mint", maxMint),
	)
	return nil
}
