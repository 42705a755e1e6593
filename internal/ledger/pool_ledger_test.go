package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// memPoolStore keeps the pool in memory and can be told to fail saves.
type memPoolStore struct {
	mu      sync.Mutex
	pool    domain.Pool
	saveErr error
	saves   int
}

func newMemPoolStore() *memPoolStore {
	return &memPoolStore{pool: domain.NewPool()}
}

func (s *memPoolStore) Get(ctx context.Context) (domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Clone(), nil
}

func (s *memPoolStore) Save(ctx context.Context, p domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.pool = p.Clone()
	s.saves++
	return nil
}

func newTestLedger(t *testing.T, store domain.PoolStore) *PoolLedger {
	t.Helper()
	l, err := New(context.Background(), store, nil, DefaultRates, slog.Default())
	require.NoError(t, err)
	return l
}

func TestDepositPure(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, big.NewInt(1000), false))

	p := l.Snapshot()
	assert.Equal(t, big.NewInt(1000), p.BasePool)
	assert.Equal(t, big.NewInt(1000), p.BasePoolTotal)
	assert.Equal(t, int64(0), p.PremiumPool.Int64())
}

func TestDepositFeeSplit(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	// 20%/20% split of 1000: 200 base, 200 premium, 600 left to the caller.
	require.NoError(t, l.Deposit(ctx, big.NewInt(1000), true))

	p := l.Snapshot()
	assert.Equal(t, big.NewInt(200), p.BasePool)
	assert.Equal(t, big.NewInt(200), p.BasePoolTotal)
	assert.Equal(t, big.NewInt(200), p.PremiumPool)
}

func TestDepositFeeSplitFloors(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	// 20% of 7 floors to 1.
	require.NoError(t, l.Deposit(ctx, big.NewInt(7), true))

	p := l.Snapshot()
	assert.Equal(t, big.NewInt(1), p.BasePool)
	assert.Equal(t, big.NewInt(1), p.PremiumPool)
}

func TestPayPremium(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	require.NoError(t, l.DepositPremium(ctx, big.NewInt(500)))
	require.NoError(t, l.PayPremium(ctx, big.NewInt(300)))

	p := l.Snapshot()
	assert.Equal(t, big.NewInt(200), p.PremiumPool)
	// Base balances untouched by premium flows.
	assert.Equal(t, int64(0), p.BasePool.Int64())
}

func TestPayPremiumInsufficient(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	require.NoError(t, l.DepositPremium(ctx, big.NewInt(100)))

	err := l.PayPremium(ctx, big.NewInt(101))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientLiquidity))

	var te *domain.TradeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, big.NewInt(101), te.Want)
	assert.Equal(t, big.NewInt(100), te.Got)

	// Failed draw leaves the balance untouched.
	assert.Equal(t, big.NewInt(100), l.Snapshot().PremiumPool)
}

func TestDepositFeeAtomic(t *testing.T) {
	store := newMemPoolStore()
	l := newTestLedger(t, store)
	ctx := context.Background()

	require.NoError(t, l.DepositFee(ctx, big.NewInt(1000), false, big.NewInt(30)))

	p := l.Snapshot()
	assert.Equal(t, big.NewInt(200), p.BasePool)
	assert.Equal(t, big.NewInt(200), p.PremiumPool)
	assert.Equal(t, big.NewInt(30), p.PlatformAccrued)
	// One settlement is one save.
	assert.Equal(t, 1, store.saves)
}

func TestDepositFeePremiumDirect(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	require.NoError(t, l.DepositFee(ctx, big.NewInt(80), true, big.NewInt(20)))

	p := l.Snapshot()
	assert.Equal(t, int64(0), p.BasePool.Int64())
	assert.Equal(t, big.NewInt(80), p.PremiumPool)
	assert.Equal(t, big.NewInt(20), p.PlatformAccrued)
}

func TestSaveFailureLeavesStateUntouched(t *testing.T) {
	store := newMemPoolStore()
	l := newTestLedger(t, store)
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, big.NewInt(1000), false))

	store.saveErr = errors.New("connection reset")
	err := l.Deposit(ctx, big.NewInt(500), false)
	require.Error(t, err)

	// In-memory state still matches the last persisted state.
	assert.Equal(t, big.NewInt(1000), l.Snapshot().BasePool)
}

func TestInvalidAmounts(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	for _, amount := range []*big.Int{nil, big.NewInt(-1)} {
		assert.Error(t, l.Deposit(ctx, amount, false))
		assert.Error(t, l.DepositPremium(ctx, amount))
		assert.Error(t, l.PayPremium(ctx, amount))
	}
}

func TestLiquidity(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, big.NewInt(700), false))
	require.NoError(t, l.DepositPremium(ctx, big.NewInt(300)))

	assert.Equal(t, big.NewInt(1000), l.Liquidity())
}

func TestConcurrentDeposits(t *testing.T) {
	l := newTestLedger(t, newMemPoolStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Deposit(ctx, big.NewInt(10), false)
		}()
	}
	wg.Wait()

	assert.Equal(t, big.NewInt(500), l.Snapshot().BasePool)
}

func TestRatesValidation(t *testing.T) {
	store := newMemPoolStore()
	_, err := New(context.Background(), store, nil, Rates{BaseRate: 600, PremiumRate: 600}, slog.Default())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrArithmetic))

	_, err = New(context.Background(), store, nil, Rates{BaseRate: -1}, slog.Default())
	assert.Error(t, err)
}
