package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

func eth(n int64) *big.Int {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return wei.Mul(wei, big.NewInt(n))
}

func TestBasePrices(t *testing.T) {
	// Ten tokens with mixed rarities summing to 335.
	rarities := map[int64]int64{
		1: 80, 2: 15, 3: 15, 4: 15, 5: 15,
		6: 30, 7: 30, 8: 60, 9: 60, 10: 15,
	}
	totalValue := eth(10)

	prices, err := BasePrices(totalValue, rarities)
	require.NoError(t, err)
	require.Len(t, prices, 10)

	// Floor division: 10e18 * 80 / 335.
	want := new(big.Int).Mul(totalValue, big.NewInt(80))
	want.Quo(want, big.NewInt(335))
	assert.Equal(t, want, prices[1])

	// Equal rarities get equal prices.
	assert.Equal(t, prices[2], prices[10])

	// Sum of all prices never exceeds the total value (floor semantics).
	sum := new(big.Int)
	for _, p := range prices {
		sum.Add(sum, p)
	}
	assert.LessOrEqual(t, sum.Cmp(totalValue), 0)
}

func TestBasePricesRejectsZeroPrice(t *testing.T) {
	// One token is so common next to the whale that its floor would round
	// to zero wei. The whole computation must fail, not just that token.
	rarities := map[int64]int64{
		1: 1,
		2: 1_000_000,
	}
	_, err := BasePrices(big.NewInt(10), rarities)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrZeroBasePrice))
}

func TestBasePricesRejectsMissingRarity(t *testing.T) {
	_, err := BasePrices(eth(10), map[int64]int64{1: 100, 2: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRarityMissing))
}

func TestBasePricesRejectsZeroTotalValue(t *testing.T) {
	_, err := BasePrices(big.NewInt(0), map[int64]int64{1: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArithmetic))
}

func TestNormalizeRarity(t *testing.T) {
	tests := []struct {
		name        string
		rarity      int64
		totalRarity int64
		want        int64
	}{
		{"half share", 50, 100, 5000},
		{"full share", 100, 100, 10000},
		{"floors fractional shares", 1, 3, 3333},
		{"zero rarity", 0, 100, 0},
		{"zero total", 50, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRarity(tt.rarity, tt.totalRarity))
		})
	}
}

func TestSystemPrice(t *testing.T) {
	base := eth(1)

	t.Run("empty premium pool quotes the floor", func(t *testing.T) {
		got, err := SystemPrice(base, 80, 335, big.NewInt(0))
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("premium share is rarity proportional", func(t *testing.T) {
		pool := eth(2)
		got, err := SystemPrice(base, 50, 100, pool)
		require.NoError(t, err)

		// norm = 5000/10000, premium = pool * 5000 / 10000 = 1 ether.
		want := new(big.Int).Add(base, eth(1))
		assert.Equal(t, want, got)
	})

	t.Run("rarer tokens quote higher", func(t *testing.T) {
		pool := eth(3)
		rare, err := SystemPrice(base, 80, 335, pool)
		require.NoError(t, err)
		common, err := SystemPrice(base, 15, 335, pool)
		require.NoError(t, err)
		assert.Equal(t, 1, rare.Cmp(common))
	})

	t.Run("negative pool rejected", func(t *testing.T) {
		_, err := SystemPrice(base, 50, 100, big.NewInt(-1))
		assert.Error(t, err)
	})
}
