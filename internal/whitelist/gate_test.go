package whitelist

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

type memWhitelist struct {
	entries map[common.Address]*domain.WhitelistEntry
}

func newMemWhitelist() *memWhitelist {
	return &memWhitelist{entries: make(map[common.Address]*domain.WhitelistEntry)}
}

func (m *memWhitelist) Upsert(_ context.Context, e domain.WhitelistEntry) error {
	if prev, ok := m.entries[e.Address]; ok {
		e.Minted = prev.Minted
	}
	m.entries[e.Address] = &e
	return nil
}

func (m *memWhitelist) Get(_ context.Context, addr common.Address) (domain.WhitelistEntry, error) {
	e, ok := m.entries[addr]
	if !ok {
		return domain.WhitelistEntry{}, fmt.Errorf("whitelist %s: %w", addr.Hex(), domain.ErrNotFound)
	}
	return *e, nil
}

func (m *memWhitelist) ConsumeMint(_ context.Context, addr common.Address) error {
	e, ok := m.entries[addr]
	if !ok {
		return fmt.Errorf("whitelist %s: %w", addr.Hex(), domain.ErrNotFound)
	}
	if e.Minted >= e.MaxMint {
		return fmt.Errorf("minted %d of %d: %w", e.Minted, e.MaxMint, domain.ErrMintLimitReached)
	}
	e.Minted++
	return nil
}

var minter = common.HexToAddress("0x00000000000000000000000000000000000000b1")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAdmitDisabledGate(t *testing.T) {
	g := NewGate(Config{Enabled: false}, newMemWhitelist(), slog.Default())
	assert.NoError(t, g.Admit(context.Background(), minter))
}

func TestAdmitZeroAddress(t *testing.T) {
	g := NewGate(Config{}, newMemWhitelist(), slog.Default())
	assert.ErrorIs(t, g.Admit(context.Background(), common.Address{}), domain.ErrZeroAddress)
}

func TestAdmitMintWindow(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)
	cfg := Config{WindowStart: start, WindowEnd: end}

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"before window", start.Add(-time.Minute), domain.ErrMintWindowClosed},
		{"window opens", start, nil},
		{"inside window", start.Add(24 * time.Hour), nil},
		{"after window", end.Add(time.Second), domain.ErrMintWindowClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(cfg, newMemWhitelist(), slog.Default()).WithClock(fixedClock(tt.now))
			err := g.Admit(context.Background(), minter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdmitNotWhitelisted(t *testing.T) {
	g := NewGate(Config{Enabled: true}, newMemWhitelist(), slog.Default())
	err := g.Admit(context.Background(), minter)
	assert.ErrorIs(t, err, domain.ErrNotWhitelisted)
}

func TestAdmitConsumesAllowance(t *testing.T) {
	store := newMemWhitelist()
	g := NewGate(Config{Enabled: true, DefaultCap: 2}, store, slog.Default())
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, minter, 0))

	require.NoError(t, g.Admit(ctx, minter))
	require.NoError(t, g.Admit(ctx, minter))
	assert.ErrorIs(t, g.Admit(ctx, minter), domain.ErrMintLimitReached)
	assert.Equal(t, int64(2), store.entries[minter].Minted)
}

func TestAddDefaultsAndOverridesCap(t *testing.T) {
	store := newMemWhitelist()
	g := NewGate(Config{Enabled: true, DefaultCap: 3}, store, slog.Default())
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, minter, 0))
	assert.Equal(t, int64(3), store.entries[minter].MaxMint)

	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	require.NoError(t, g.Add(ctx, other, 10))
	assert.Equal(t, int64(10), store.entries[other].MaxMint)

	assert.ErrorIs(t, g.Add(ctx, common.Address{}, 1), domain.ErrZeroAddress)
}

func TestIsWhitelisted(t *testing.T) {
	store := newMemWhitelist()
	g := NewGate(Config{Enabled: true}, store, slog.Default())
	ctx := context.Background()

	ok, err := g.IsWhitelisted(ctx, minter)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Add(ctx, minter, 1))
	ok, err = g.IsWhitelisted(ctx, minter)
	require.NoError(t, err)
	assert.True(t, ok)

	// A disabled gate admits everyone.
	open := NewGate(Config{Enabled: false}, newMemWhitelist(), slog.Default())
	ok, err = open.IsWhitelisted(ctx, minter)
	require.NoError(t, err)
	assert.True(t, ok)
}
