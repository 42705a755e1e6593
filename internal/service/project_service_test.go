package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

func TestInitialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.project.Initialize(ctx, creator, 100, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCreation, p.Phase)
	assert.Equal(t, int64(100), p.MaxSupply)
	assert.True(t, h.audit.has("project_initialized"))

	// The singleton cannot be created twice.
	_, err = h.project.Initialize(ctx, creator, 100, big.NewInt(1_000_000))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestInitializeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.project.Initialize(ctx, zeroAddr, 100, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrZeroAddress)

	_, err = h.project.Initialize(ctx, creator, 0, big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	_, err = h.project.Initialize(ctx, creator, 100, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrArithmetic)

	_, err = h.project.Initialize(ctx, creator, 100, nil)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestConfirm(t *testing.T) {
	h := newHarness(t)
	seedCreation(h, 10)
	ctx := context.Background()

	for _, rarity := range []int64{50, 30, 20} {
		rec, err := h.nfts.CreateNext(ctx, alice)
		require.NoError(t, err)
		require.NoError(t, h.nfts.SetRarity(ctx, rec.TokenID, rarity))
	}

	require.NoError(t, h.project.Confirm(ctx))

	p, err := h.project.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseConfirmed, p.Phase)
	require.NotNil(t, p.ConfirmedAt)

	// Base prices are the rarity-weighted shares of the total value.
	assert.Equal(t, big.NewInt(50_000), h.basePrice(t, 1))
	assert.Equal(t, big.NewInt(30_000), h.basePrice(t, 2))
	assert.Equal(t, big.NewInt(20_000), h.basePrice(t, 3))
	for id := int64(1); id <= 3; id++ {
		assert.True(t, h.nfts.recs[id].PriceConfirmed)
	}

	assert.True(t, h.audit.has("project_confirmed"))
	assert.Equal(t, 1, h.bus.count(domain.ChannelStatus))

	// Confirmation is one-shot.
	assert.ErrorIs(t, h.project.Confirm(ctx), domain.ErrWrongPhase)
}

func TestConfirmRequiresMints(t *testing.T) {
	h := newHarness(t)
	seedCreation(h, 10)

	err := h.project.Confirm(context.Background())
	assert.ErrorIs(t, err, domain.ErrRarityMissing)
}

func TestConfirmRequiresRarityOnEveryToken(t *testing.T) {
	h := newHarness(t)
	seedCreation(h, 10)
	ctx := context.Background()

	rec, err := h.nfts.CreateNext(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, h.nfts.SetRarity(ctx, rec.TokenID, 50))

	// Second token never gets a score.
	_, err = h.nfts.CreateNext(ctx, alice)
	require.NoError(t, err)

	err = h.project.Confirm(ctx)
	assert.ErrorIs(t, err, domain.ErrRarityMissing)

	p, err := h.project.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCreation, p.Phase)
	assert.False(t, h.nfts.recs[1].PriceConfirmed)
}

func TestConfirmRejectsZeroPrice(t *testing.T) {
	h := newHarness(t)
	seedCreation(h, 10)
	h.projects.p.TotalValue = big.NewInt(10)
	ctx := context.Background()

	// 10 * 1 / 1001 floors to zero for the common token.
	for _, rarity := range []int64{1, 1_000} {
		rec, err := h.nfts.CreateNext(ctx, alice)
		require.NoError(t, err)
		require.NoError(t, h.nfts.SetRarity(ctx, rec.TokenID, rarity))
	}

	err := h.project.Confirm(ctx)
	assert.ErrorIs(t, err, domain.ErrZeroBasePrice)

	p, err := h.project.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCreation, p.Phase)
	for id := int64(1); id <= 2; id++ {
		assert.Nil(t, h.nfts.recs[id].BasePrice)
	}
}
