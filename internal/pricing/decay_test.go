package pricing

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayedPrice(t *testing.T) {
	base := eth(1)
	sell := eth(2) // 1 ether of premium on a 1 ether floor
	sellAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want *big.Int
	}{
		{
			"day zero holds the full sale price",
			sellAt,
			eth(2),
		},
		{
			"partial days floor to the previous day",
			sellAt.Add(23 * time.Hour),
			eth(2),
		},
		{
			"midpoint keeps half the premium",
			sellAt.AddDate(0, 0, 45),
			new(big.Int).Add(base, new(big.Int).Quo(eth(1), big.NewInt(2))),
		},
		{
			"day 89 keeps one ninetieth",
			sellAt.AddDate(0, 0, 89),
			new(big.Int).Add(base, new(big.Int).Quo(eth(1), big.NewInt(90))),
		},
		{
			"day 90 clamps at the floor",
			sellAt.AddDate(0, 0, 90),
			eth(1),
		},
		{
			"far past the window stays at the floor",
			sellAt.AddDate(2, 0, 0),
			eth(1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecayedPrice(sell, base, sellAt, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecayedPriceMonotonic(t *testing.T) {
	base := eth(1)
	sell := eth(3)
	sellAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	prev, err := DecayedPrice(sell, base, sellAt, sellAt)
	require.NoError(t, err)
	for day := 1; day <= 95; day++ {
		cur, err := DecayedPrice(sell, base, sellAt, sellAt.AddDate(0, 0, day))
		require.NoError(t, err)
		assert.LessOrEqual(t, cur.Cmp(prev), 0, "price rose on day %d", day)
		assert.GreaterOrEqual(t, cur.Cmp(base), 0, "price fell below floor on day %d", day)
		prev = cur
	}
}

func TestDecayedPriceSoldAtFloor(t *testing.T) {
	base := eth(1)
	sellAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := DecayedPrice(eth(1), base, sellAt, sellAt.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestElapsedDays(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(0), ElapsedDays(at, at))
	assert.Equal(t, int64(0), ElapsedDays(at, at.Add(-time.Hour)))
	assert.Equal(t, int64(0), ElapsedDays(at, at.Add(23*time.Hour)))
	assert.Equal(t, int64(1), ElapsedDays(at, at.Add(24*time.Hour)))
	assert.Equal(t, int64(45), ElapsedDays(at, at.AddDate(0, 0, 45)))
}
