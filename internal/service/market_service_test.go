package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

func TestQuoteFloorWhenPremiumEmpty(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	price, err := h.market.Quote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000), price)
}

func TestQuoteAddsRarityShareOfPremium(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))

	// Rarity 50 of 100 takes half the premium pool.
	price, err := h.market.Quote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(55_000), price)

	// Rarity 20 of 100 takes a fifth.
	price, err = h.market.Quote(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(22_000), price)
}

func TestQuoteIsCached(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	first, err := h.market.Quote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, h.quotes.sets)

	// A premium deposit between quotes is invisible while the cache holds.
	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))
	second, err := h.market.Quote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.quotes.sets)
}

func TestSellToSystem(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	res, err := h.market.SellToSystem(ctx, 1, alice)
	require.NoError(t, err)

	// 2.5% system fee on the 50000 floor quote.
	assert.Equal(t, big.NewInt(50_000), res.Receipt.Gross)
	assert.Equal(t, big.NewInt(1_250), res.Receipt.Fee)
	assert.Equal(t, big.NewInt(0), res.Receipt.PlatformFee)
	assert.Equal(t, big.NewInt(48_750), res.Receipt.Net)

	rec, err := h.nfts.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.InSystemMarket)
	assert.Equal(t, vault, rec.Owner)
	assert.Equal(t, big.NewInt(50_000), rec.SellPrice)
	require.NotNil(t, rec.SellTimestamp)

	// The 1250 fee runs through the 20/20 split.
	pool := h.ledger.Snapshot()
	assert.Equal(t, big.NewInt(100_250), pool.BasePool)
	assert.Equal(t, big.NewInt(250), pool.PremiumPool)

	require.Len(t, h.trades.rows, 1)
	trade := h.trades.rows[0]
	assert.Equal(t, domain.VenueSystem, trade.Venue)
	assert.Equal(t, domain.SideSellToSystem, trade.Side)
	assert.Equal(t, alice, trade.Seller)
	assert.Equal(t, vault, trade.Buyer)
	assert.Equal(t, 1, h.bus.count(domain.ChannelTrades))
}

func TestSellToSystemPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("not owner", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		_, err := h.market.SellToSystem(ctx, 1, bob)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("already listed", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		_, err := h.market.SellToSystem(ctx, 1, alice)
		require.NoError(t, err)
		_, err = h.market.SellToSystem(ctx, 1, alice)
		assert.ErrorIs(t, err, domain.ErrAlreadyListed)
	})

	t.Run("peer listing blocks system sale", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		_, err := h.peer.List(ctx, 1, alice, big.NewInt(60_000), domain.VenuePeer)
		require.NoError(t, err)
		_, err = h.market.SellToSystem(ctx, 1, alice)
		assert.ErrorIs(t, err, domain.ErrAlreadyListed)
	})

	t.Run("project still in creation", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		h.projects.p.Phase = domain.PhaseCreation
		_, err := h.market.SellToSystem(ctx, 1, alice)
		assert.ErrorIs(t, err, domain.ErrWrongPhase)
	})

	t.Run("price not confirmed", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		h.nfts.recs[2].PriceConfirmed = false
		_, err := h.market.SellToSystem(ctx, 2, alice)
		assert.ErrorIs(t, err, domain.ErrPriceNotConfirmed)
	})

	t.Run("zero seller", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		_, err := h.market.SellToSystem(ctx, 1, zeroAddr)
		assert.ErrorIs(t, err, domain.ErrZeroAddress)
	})

	t.Run("paused", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		h.breaker.Pause()
		_, err := h.market.SellToSystem(ctx, 1, alice)
		assert.ErrorIs(t, err, domain.ErrPaused)
	})

	t.Run("lock held", func(t *testing.T) {
		h := newHarness(t)
		h.seedConfirmed(t)
		h.locks.held["token:1"] = true
		_, err := h.market.SellToSystem(ctx, 1, alice)
		assert.ErrorIs(t, err, domain.ErrLockHeld)
	})
}

func TestSellToSystemInsufficientLiquidity(t *testing.T) {
	ctx := context.Background()
	lean := newLeanHarness(t, big.NewInt(10_000))

	_, err := lean.market.SellToSystem(ctx, 1, alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	var tradeErr *domain.TradeError
	require.ErrorAs(t, err, &tradeErr)
	assert.Equal(t, big.NewInt(50_000), tradeErr.Want)
	assert.Equal(t, big.NewInt(10_000), tradeErr.Got)

	rec, err := lean.nfts.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.InSystemMarket)
	assert.Equal(t, alice, rec.Owner)
	assert.Empty(t, lean.trades.rows)
}

func TestSellToSystemRollsBackOnSettleFailure(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	h.poolStore.saveErr = errors.New("pool save failed")

	_, err := h.market.SellToSystem(ctx, 1, alice)
	require.Error(t, err)

	rec, err := h.nfts.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.InSystemMarket)
	assert.Equal(t, alice, rec.Owner)
	assert.Empty(t, h.trades.rows)
}

func TestBuyFromSystem(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))
	_, err := h.market.SellToSystem(ctx, 1, alice) // sold at 55000
	require.NoError(t, err)

	premiumBefore := h.ledger.Snapshot().PremiumPool

	res, err := h.market.BuyFromSystem(ctx, 1, bob, big.NewInt(60_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(55_000), res.Price)
	assert.Equal(t, big.NewInt(5_000), res.Refund)

	rec, err := h.nfts.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.InSystemMarket)
	assert.Equal(t, bob, rec.Owner)
	assert.Nil(t, rec.SellPrice)

	// The 5000 above-floor premium is drawn from the premium pool.
	premiumAfter := h.ledger.Snapshot().PremiumPool
	assert.Equal(t, big.NewInt(5_000), new(big.Int).Sub(premiumBefore, premiumAfter))

	require.Len(t, h.trades.rows, 2)
	assert.Equal(t, domain.SideBuyFromSystem, h.trades.rows[1].Side)
}

func TestBuyFromSystemDecaysPremium(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	soldAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.market.WithClock(func() time.Time { return soldAt })

	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))
	_, err := h.market.SellToSystem(ctx, 1, alice) // sold at 55000, floor 50000
	require.NoError(t, err)

	// Halfway through the decay window half the premium remains.
	h.market.WithClock(func() time.Time { return soldAt.AddDate(0, 0, 45) })
	price, err := h.market.BuybackPrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(52_500), price)

	res, err := h.market.BuyFromSystem(ctx, 1, bob, big.NewInt(52_500))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(52_500), res.Price)
	assert.Zero(t, res.Refund.Sign())
}

func TestBuyFromSystemAtFloorAfterWindow(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	soldAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.market.WithClock(func() time.Time { return soldAt })

	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))
	_, err := h.market.SellToSystem(ctx, 1, alice)
	require.NoError(t, err)

	h.market.WithClock(func() time.Time { return soldAt.AddDate(0, 0, 120) })
	premiumBefore := h.ledger.Snapshot().PremiumPool

	res, err := h.market.BuyFromSystem(ctx, 1, bob, big.NewInt(50_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50_000), res.Price)

	// A floor buyback draws nothing from the premium pool.
	assert.Equal(t, premiumBefore, h.ledger.Snapshot().PremiumPool)
}

func TestBuyFromSystemStalePrice(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	require.NoError(t, h.ledger.DepositPremium(ctx, big.NewInt(10_000)))
	_, err := h.market.SellToSystem(ctx, 1, alice) // needs 5000 premium on buyback
	require.NoError(t, err)

	// Drain the premium pool below the quoted premium.
	require.NoError(t, h.ledger.PayPremium(ctx, big.NewInt(8_000)))
	premiumBefore := h.ledger.Snapshot().PremiumPool

	_, err = h.market.BuyFromSystem(ctx, 1, bob, big.NewInt(55_000))
	assert.ErrorIs(t, err, domain.ErrStalePrice)

	rec, err := h.nfts.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.InSystemMarket)
	assert.Equal(t, premiumBefore, h.ledger.Snapshot().PremiumPool)
}

func TestBuyFromSystemInsufficientPayment(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	_, err := h.market.SellToSystem(ctx, 1, alice)
	require.NoError(t, err)

	_, err = h.market.BuyFromSystem(ctx, 1, bob, big.NewInt(49_999))
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	var tradeErr *domain.TradeError
	require.ErrorAs(t, err, &tradeErr)
	assert.Equal(t, big.NewInt(50_000), tradeErr.Want)
}

func TestBuyFromSystemNotListed(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)

	_, err := h.market.BuyFromSystem(context.Background(), 1, bob, big.NewInt(50_000))
	assert.ErrorIs(t, err, domain.ErrNotListed)
}

func TestBatchSellToSystem(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	savesBefore := h.poolStore.saves
	results, err := h.market.BatchSellToSystem(ctx, []int64{1, 2}, alice)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both fees land in a single pool mutation.
	assert.Equal(t, 1, h.poolStore.saves-savesBefore)

	for _, id := range []int64{1, 2} {
		rec, err := h.nfts.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.InSystemMarket)
		assert.Equal(t, vault, rec.Owner)
	}
	assert.Len(t, h.trades.rows, 2)

	// Fees: 1250 on 50000 plus 750 on 30000, each split 20/20.
	pool := h.ledger.Snapshot()
	assert.Equal(t, big.NewInt(400), pool.PremiumPool)
	assert.Equal(t, big.NewInt(100_400), pool.BasePool)
}

func TestBatchSellAllOrNothing(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	// Token 3 belongs to bob, so the whole batch must reject untouched.
	h.nfts.recs[3].Owner = bob

	_, err := h.market.BatchSellToSystem(ctx, []int64{1, 2, 3}, alice)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	for _, id := range []int64{1, 2} {
		rec, err := h.nfts.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, rec.InSystemMarket)
		assert.Equal(t, alice, rec.Owner)
	}
	assert.Empty(t, h.trades.rows)
	assert.Equal(t, big.NewInt(0), h.ledger.Snapshot().PremiumPool)
}

func TestBatchSellRejectsDuplicateToken(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)

	_, err := h.market.BatchSellToSystem(context.Background(), []int64{1, 1}, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyListed)
}

func TestBatchBuyRejectsDuplicateToken(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	_, err := h.market.BatchSellToSystem(ctx, []int64{1}, alice)
	require.NoError(t, err)

	_, _, err = h.market.BatchBuyFromSystem(ctx, []int64{1, 1}, bob, big.NewInt(200_000))
	assert.ErrorIs(t, err, domain.ErrNotListed)
}

func TestBatchSellInsufficientLiquidity(t *testing.T) {
	lean := newLeanHarness(t, big.NewInt(60_000))
	ctx := context.Background()

	// 50000 + 30000 exceeds the 60000 pool.
	_, err := lean.market.BatchSellToSystem(ctx, []int64{1, 2}, alice)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
	assert.Empty(t, lean.trades.rows)
}

func TestBatchBuyFromSystem(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	_, err := h.market.BatchSellToSystem(ctx, []int64{1, 2}, alice)
	require.NoError(t, err)

	results, refund, err := h.market.BatchBuyFromSystem(ctx, []int64{1, 2}, bob, big.NewInt(100_000))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, big.NewInt(20_000), refund)

	for _, id := range []int64{1, 2} {
		rec, err := h.nfts.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, rec.InSystemMarket)
		assert.Equal(t, bob, rec.Owner)
	}
}

func TestBatchBuyInsufficientPayment(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	_, err := h.market.BatchSellToSystem(ctx, []int64{1, 2}, alice)
	require.NoError(t, err)

	_, _, err = h.market.BatchBuyFromSystem(ctx, []int64{1, 2}, bob, big.NewInt(79_999))
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
}

func TestPauseUnpause(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)
	ctx := context.Background()

	// Confirmation already published on the status channel.
	statusBefore := h.bus.count(domain.ChannelStatus)

	h.market.Pause(ctx)
	assert.True(t, h.market.Info(ctx).Paused)
	assert.True(t, h.audit.has("market_paused"))
	assert.Equal(t, statusBefore+1, h.bus.count(domain.ChannelStatus))

	// A second pause is a no-op.
	h.market.Pause(ctx)
	assert.Equal(t, statusBefore+1, h.bus.count(domain.ChannelStatus))

	h.market.Unpause(ctx)
	assert.False(t, h.market.Info(ctx).Paused)
	assert.True(t, h.audit.has("market_unpaused"))

	// Quotes stay available while paused.
	h.market.Pause(ctx)
	_, err := h.market.Quote(ctx, 1)
	assert.NoError(t, err)
}

func TestMarketInfo(t *testing.T) {
	h := newHarness(t)
	h.seedConfirmed(t)

	info := h.market.Info(context.Background())
	assert.Equal(t, big.NewInt(100_000), info.Liquidity)
	assert.Equal(t, vault, info.Vault)
	assert.False(t, info.Paused)
}
