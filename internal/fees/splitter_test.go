package fees

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// memPools records every DepositFee call.
type memPools struct {
	calls []feeCall
	err   error
}

type feeCall struct {
	poolShare     *big.Int
	premiumDirect bool
	platformShare *big.Int
}

func (m *memPools) DepositFee(ctx context.Context, poolShare *big.Int, premiumDirect bool, platformShare *big.Int) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, feeCall{
		poolShare:     new(big.Int).Set(poolShare),
		premiumDirect: premiumDirect,
		platformShare: new(big.Int).Set(platformShare),
	})
	return nil
}

var treasury = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestSplitter(t *testing.T, pools Pools) *Splitter {
	t.Helper()
	s, err := NewSplitter(pools, treasury, DefaultPolicies(), slog.Default())
	require.NoError(t, err)
	return s
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		ok     bool
	}{
		{"system sale reference", SystemSalePolicy, true},
		{"peer trade reference", PeerTradePolicy, true},
		{"marketplace reference", MarketplacePolicy, true},
		{"shares must sum to fee", Policy{Name: "x", FeePerMille: 30, PlatformPerMille: 20, PoolPerMille: 20, Route: RouteSplit}, false},
		{"fee over scale", Policy{Name: "x", FeePerMille: 1001, PoolPerMille: 1001, Route: RouteSplit}, false},
		{"missing name", Policy{FeePerMille: 30, PoolPerMille: 30, Route: RouteSplit}, false},
		{"unknown route", Policy{Name: "x", FeePerMille: 30, PoolPerMille: 30, Route: "direct"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPolicySplit(t *testing.T) {
	// 3% marketplace schedule on a gross of 100: platform 1, pool 2, net 97.
	receipt, err := MarketplacePolicy.Split(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), receipt.Gross)
	assert.Equal(t, big.NewInt(1), receipt.PlatformFee)
	assert.Equal(t, big.NewInt(2), receipt.PoolFee)
	assert.Equal(t, big.NewInt(3), receipt.Fee)
	assert.Equal(t, big.NewInt(97), receipt.Net)
}

func TestPolicySplitFloorResidue(t *testing.T) {
	// Gross 99 under the 10% peer schedule: platform floor(99*20/1000)=1,
	// pool floor(99*80/1000)=7; floor residue stays with the seller.
	receipt, err := PeerTradePolicy.Split(big.NewInt(99))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), receipt.PlatformFee)
	assert.Equal(t, big.NewInt(7), receipt.PoolFee)
	assert.Equal(t, big.NewInt(8), receipt.Fee)
	assert.Equal(t, big.NewInt(91), receipt.Net)
}

func TestNewSplitterRequiresPlatformWallet(t *testing.T) {
	_, err := NewSplitter(&memPools{}, common.Address{}, DefaultPolicies(), slog.Default())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoPlatformWallet))

	// A schedule with no platform share is fine without a wallet.
	policies := map[domain.TradeVenue]Policy{domain.VenueSystem: SystemSalePolicy}
	_, err = NewSplitter(&memPools{}, common.Address{}, policies, slog.Default())
	assert.NoError(t, err)
}

func TestSettleSystemSale(t *testing.T) {
	pools := &memPools{}
	s := newTestSplitter(t, pools)

	receipt, err := s.SettleSystemSale(context.Background(), 1, big.NewInt(1000))
	require.NoError(t, err)

	// 2.5% schedule, all of it pool share through the standard split.
	assert.Equal(t, big.NewInt(25), receipt.Fee)
	assert.Equal(t, int64(0), receipt.PlatformFee.Int64())
	assert.Equal(t, big.NewInt(975), receipt.Net)

	require.Len(t, pools.calls, 1)
	assert.Equal(t, big.NewInt(25), pools.calls[0].poolShare)
	assert.False(t, pools.calls[0].premiumDirect)
}

func TestSettlePeerTradeRoutesPremiumDirect(t *testing.T) {
	pools := &memPools{}
	s := newTestSplitter(t, pools)

	receipt, err := s.SettlePeerTrade(context.Background(), 1, big.NewInt(1000))
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(100), receipt.Fee)
	assert.Equal(t, big.NewInt(20), receipt.PlatformFee)
	assert.Equal(t, big.NewInt(80), receipt.PoolFee)
	assert.Equal(t, big.NewInt(900), receipt.Net)

	require.Len(t, pools.calls, 1)
	assert.True(t, pools.calls[0].premiumDirect)
	assert.Equal(t, big.NewInt(20), pools.calls[0].platformShare)
}

func TestSettlePeerTradeLowRateOverride(t *testing.T) {
	// A 3%-total peer-style override: a third of the fee to the platform,
	// two thirds straight into the premium pool.
	pools := &memPools{}
	policies := DefaultPolicies()
	policies[domain.VenuePeer] = Policy{
		Name:             "peer_trade_low",
		FeePerMille:      30,
		PlatformPerMille: 10,
		PoolPerMille:     20,
		Route:            RoutePremium,
	}
	s, err := NewSplitter(pools, treasury, policies, slog.Default())
	require.NoError(t, err)

	receipt, err := s.SettlePeerTrade(context.Background(), 1, big.NewInt(10_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), receipt.Fee)
	assert.Equal(t, big.NewInt(100), receipt.PlatformFee)
	assert.Equal(t, big.NewInt(200), receipt.PoolFee)
	assert.Equal(t, big.NewInt(9_700), receipt.Net)

	require.Len(t, pools.calls, 1)
	assert.True(t, pools.calls[0].premiumDirect)
	assert.Equal(t, big.NewInt(200), pools.calls[0].poolShare)
	assert.Equal(t, big.NewInt(100), pools.calls[0].platformShare)
}

func TestSettleSystemSaleBatchSingleDeposit(t *testing.T) {
	pools := &memPools{}
	s := newTestSplitter(t, pools)

	grosses := map[int64]*big.Int{
		1: big.NewInt(1000),
		2: big.NewInt(400),
		3: big.NewInt(79), // floors to a fee of 1
	}
	receipts, err := s.SettleSystemSaleBatch(context.Background(), grosses)
	require.NoError(t, err)
	require.Len(t, receipts, 3)

	assert.Equal(t, big.NewInt(25), receipts[1].Fee)
	assert.Equal(t, big.NewInt(10), receipts[2].Fee)
	assert.Equal(t, big.NewInt(1), receipts[3].Fee)

	// Exactly one pool mutation for the whole batch.
	require.Len(t, pools.calls, 1)
	assert.Equal(t, big.NewInt(36), pools.calls[0].poolShare)
}

func TestSettleSystemSaleBatchDepositFailure(t *testing.T) {
	pools := &memPools{err: errors.New("save failed")}
	s := newTestSplitter(t, pools)

	_, err := s.SettleSystemSaleBatch(context.Background(), map[int64]*big.Int{1: big.NewInt(1000)})
	require.Error(t, err)
	assert.Empty(t, pools.calls)
}

func TestSettleUnknownVenue(t *testing.T) {
	policies := map[domain.TradeVenue]Policy{domain.VenueSystem: SystemSalePolicy}
	s, err := NewSplitter(&memPools{}, treasury, policies, slog.Default())
	require.NoError(t, err)

	_, err = s.SettlePeerTrade(context.Background(), 1, big.NewInt(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
