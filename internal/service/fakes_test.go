package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/fees"
	"github.com/Tinycute00/NFT-DEX/internal/ledger"
	"github.com/Tinycute00/NFT-DEX/internal/whitelist"
)

// In-memory fakes backing the service tests. The pool ledger and fee
// splitter are the real implementations over a fake PoolStore, so every
// settlement test exercises the actual accounting math.

type memPoolStore struct {
	mu      sync.Mutex
	pool    domain.Pool
	saveErr error
	saves   int
}

func (s *memPoolStore) Get(context.Context) (domain.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool.BasePool == nil {
		s.pool = domain.NewPool()
	}
	return s.pool.Clone(), nil
}

func (s *memPoolStore) Save(_ context.Context, p domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.pool = p.Clone()
	s.saves++
	return nil
}

type memProjects struct {
	p     domain.Project
	nfts  *memNFTs
	isSet bool
}

func (m *memProjects) Create(_ context.Context, p domain.Project) error {
	if m.isSet {
		return domain.ErrAlreadyExists
	}
	m.p = p
	m.isSet = true
	return nil
}

func (m *memProjects) Get(context.Context) (domain.Project, error) {
	if !m.isSet {
		return domain.Project{}, domain.ErrNotFound
	}
	return m.p, nil
}

func (m *memProjects) ConfirmPrices(_ context.Context, prices map[int64]*big.Int) error {
	for id, price := range prices {
		rec, ok := m.nfts.recs[id]
		if !ok {
			return fmt.Errorf("token %d: %w", id, domain.ErrNotFound)
		}
		rec.BasePrice = new(big.Int).Set(price)
		rec.PriceConfirmed = true
	}
	now := time.Now().UTC()
	m.p.Phase = domain.PhaseConfirmed
	m.p.ConfirmedAt = &now
	return nil
}

type memNFTs struct {
	recs     map[int64]*domain.NFTRecord
	project  *memProjects
	markErr  error
	clearErr error
}

func newMemNFTs() *memNFTs {
	return &memNFTs{recs: make(map[int64]*domain.NFTRecord)}
}

func (m *memNFTs) CreateNext(_ context.Context, to common.Address) (domain.NFTRecord, error) {
	p := &m.project.p
	if p.TotalMinted >= p.MaxSupply {
		return domain.NFTRecord{}, domain.ErrSupplyExhausted
	}
	p.TotalMinted++
	rec := &domain.NFTRecord{
		TokenID:   p.TotalMinted,
		Owner:     to,
		MintedTo:  to,
		CreatedAt: time.Now().UTC(),
	}
	m.recs[rec.TokenID] = rec
	return *rec, nil
}

func (m *memNFTs) Get(_ context.Context, tokenID int64) (domain.NFTRecord, error) {
	rec, ok := m.recs[tokenID]
	if !ok {
		return domain.NFTRecord{}, fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	return *rec, nil
}

func (m *memNFTs) List(_ context.Context, opts domain.ListOpts) ([]domain.NFTRecord, error) {
	ids := make([]int64, 0, len(m.recs))
	for id := range m.recs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.NFTRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.recs[id])
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memNFTs) SetRarity(_ context.Context, tokenID, rarity int64) error {
	rec, ok := m.recs[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Rarity = rarity
	return nil
}

func (m *memNFTs) RarityTotals(context.Context) (int64, int64, error) {
	var missing, total int64
	for _, rec := range m.recs {
		if rec.Rarity == 0 {
			missing++
			continue
		}
		total += rec.Rarity
	}
	return missing, total, nil
}

func (m *memNFTs) Rarities(context.Context) (map[int64]int64, error) {
	out := make(map[int64]int64, len(m.recs))
	for id, rec := range m.recs {
		if rec.Rarity > 0 {
			out[id] = rec.Rarity
		}
	}
	return out, nil
}

func (m *memNFTs) checkMark(tokenID int64, from common.Address) (*domain.NFTRecord, error) {
	rec, ok := m.recs[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	if rec.InSystemMarket {
		return nil, fmt.Errorf("token %d: %w", tokenID, domain.ErrAlreadyListed)
	}
	if rec.Owner != from {
		return nil, fmt.Errorf("token %d: %w", tokenID, domain.ErrNotOwner)
	}
	return rec, nil
}

func (m *memNFTs) applyMark(rec *domain.NFTRecord, vault common.Address, sellPrice *big.Int, at time.Time) {
	ts := at
	rec.Owner = vault
	rec.InSystemMarket = true
	rec.SellPrice = new(big.Int).Set(sellPrice)
	rec.SellTimestamp = &ts
}

func (m *memNFTs) MarkInSystemMarket(_ context.Context, tokenID int64, from, vault common.Address, sellPrice *big.Int, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	rec, err := m.checkMark(tokenID, from)
	if err != nil {
		return err
	}
	m.applyMark(rec, vault, sellPrice, at)
	return nil
}

func (m *memNFTs) checkClear(tokenID int64) (*domain.NFTRecord, error) {
	rec, ok := m.recs[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %d: %w", tokenID, domain.ErrNotFound)
	}
	if !rec.InSystemMarket {
		return nil, fmt.Errorf("token %d: %w", tokenID, domain.ErrNotListed)
	}
	return rec, nil
}

func (m *memNFTs) applyClear(rec *domain.NFTRecord, newOwner common.Address) {
	rec.Owner = newOwner
	rec.InSystemMarket = false
	rec.SellPrice = nil
	rec.SellTimestamp = nil
}

func (m *memNFTs) ClearSystemMarket(_ context.Context, tokenID int64, newOwner common.Address) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	rec, err := m.checkClear(tokenID)
	if err != nil {
		return err
	}
	m.applyClear(rec, newOwner)
	return nil
}

// MarkInSystemMarketBatch mirrors the transactional store: validate every
// leg before mutating anything.
func (m *memNFTs) MarkInSystemMarketBatch(_ context.Context, sales []domain.SystemSale, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	recs := make([]*domain.NFTRecord, len(sales))
	for i, sale := range sales {
		rec, err := m.checkMark(sale.TokenID, sale.Owner)
		if err != nil {
			return err
		}
		recs[i] = rec
	}
	for i, sale := range sales {
		m.applyMark(recs[i], sale.Vault, sale.SellPrice, at)
	}
	return nil
}

func (m *memNFTs) ClearSystemMarketBatch(_ context.Context, buys []domain.SystemBuy) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	recs := make([]*domain.NFTRecord, len(buys))
	for i, buy := range buys {
		rec, err := m.checkClear(buy.TokenID)
		if err != nil {
			return err
		}
		recs[i] = rec
	}
	for i, buy := range buys {
		m.applyClear(recs[i], buy.NewOwner)
	}
	return nil
}

type memOrders struct {
	orders map[int64]domain.MarketOrder
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[int64]domain.MarketOrder)}
}

func (m *memOrders) Create(_ context.Context, o domain.MarketOrder) error {
	if _, ok := m.orders[o.TokenID]; ok {
		return domain.ErrAlreadyExists
	}
	m.orders[o.TokenID] = o
	return nil
}

func (m *memOrders) Get(_ context.Context, tokenID int64) (domain.MarketOrder, error) {
	o, ok := m.orders[tokenID]
	if !ok {
		return domain.MarketOrder{}, fmt.Errorf("order for token %d: %w", tokenID, domain.ErrNotFound)
	}
	return o, nil
}

func (m *memOrders) Delete(_ context.Context, tokenID int64) error {
	if _, ok := m.orders[tokenID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.orders, tokenID)
	return nil
}

func (m *memOrders) List(_ context.Context, opts domain.ListOpts) ([]domain.MarketOrder, error) {
	ids := make([]int64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]domain.MarketOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.orders[id])
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memTrades struct {
	rows []domain.TradeRecord
}

func (m *memTrades) Insert(_ context.Context, t domain.TradeRecord) error {
	m.rows = append(m.rows, t)
	return nil
}

func (m *memTrades) ListRecent(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	out := make([]domain.TradeRecord, len(m.rows))
	copy(out, m.rows)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memTrades) ListBefore(_ context.Context, before time.Time) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for _, t := range m.rows {
		if t.CreatedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memTokens struct {
	owners      map[int64]common.Address
	transferErr error
}

func newMemTokens() *memTokens {
	return &memTokens{owners: make(map[int64]common.Address)}
}

func (m *memTokens) OwnerOf(_ context.Context, tokenID int64) (common.Address, error) {
	owner, ok := m.owners[tokenID]
	if !ok {
		return common.Address{}, domain.ErrNotFound
	}
	return owner, nil
}

func (m *memTokens) Transfer(_ context.Context, tokenID int64, from, to common.Address) error {
	if m.transferErr != nil {
		return m.transferErr
	}
	owner, ok := m.owners[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	if owner != from {
		return fmt.Errorf("token %d owned by %s: %w", tokenID, owner.Hex(), domain.ErrNotOwner)
	}
	m.owners[tokenID] = to
	return nil
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (m *memAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (m *memAudit) has(event string) bool {
	for _, e := range m.events {
		if e == event {
			return true
		}
	}
	return false
}

type busMessage struct {
	channel string
	payload []byte
}

type memBus struct {
	published []busMessage
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.published = append(m.published, busMessage{channel: channel, payload: payload})
	return nil
}

func (m *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (m *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (m *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (m *memBus) count(channel string) int {
	var n int
	for _, msg := range m.published {
		if msg.channel == channel {
			n++
		}
	}
	return n
}

type memLocks struct {
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() { delete(m.held, key) }, nil
}

type memQuotes struct {
	quotes map[int64]*big.Int
	sets   int
}

func newMemQuotes() *memQuotes {
	return &memQuotes{quotes: make(map[int64]*big.Int)}
}

func (m *memQuotes) SetQuote(_ context.Context, tokenID int64, price *big.Int, _ time.Duration) error {
	m.quotes[tokenID] = new(big.Int).Set(price)
	m.sets++
	return nil
}

func (m *memQuotes) GetQuote(_ context.Context, tokenID int64) (*big.Int, error) {
	price, ok := m.quotes[tokenID]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(price), nil
}

type memLimiter struct {
	allow bool
}

func (m *memLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return m.allow, nil
}

type memWhitelistStore struct {
	entries map[common.Address]*domain.WhitelistEntry
}

func newMemWhitelistStore() *memWhitelistStore {
	return &memWhitelistStore{entries: make(map[common.Address]*domain.WhitelistEntry)}
}

func (m *memWhitelistStore) Upsert(_ context.Context, e domain.WhitelistEntry) error {
	m.entries[e.Address] = &e
	return nil
}

func (m *memWhitelistStore) Get(_ context.Context, addr common.Address) (domain.WhitelistEntry, error) {
	e, ok := m.entries[addr]
	if !ok {
		return domain.WhitelistEntry{}, domain.ErrNotFound
	}
	return *e, nil
}

func (m *memWhitelistStore) ConsumeMint(_ context.Context, addr common.Address) error {
	e, ok := m.entries[addr]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Minted >= e.MaxMint {
		return domain.ErrMintLimitReached
	}
	e.Minted++
	return nil
}

// Shared test addresses.
var (
	zeroAddr common.Address
	creator  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	vault    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

// harness wires the full service stack over the in-memory fakes with a
// real pool ledger and fee splitter.
type harness struct {
	projects  *memProjects
	nfts      *memNFTs
	orders    *memOrders
	trades    *memTrades
	tokens    *memTokens
	audit     *memAudit
	bus       *memBus
	locks     *memLocks
	quotes    *memQuotes
	poolStore *memPoolStore
	ledger    *ledger.PoolLedger
	splitter  *fees.Splitter
	breaker   *Breaker

	market  *SystemMarketService
	peer    *PeerMarketService
	project *ProjectService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.Default()

	h := &harness{
		projects:  &memProjects{},
		nfts:      newMemNFTs(),
		orders:    newMemOrders(),
		trades:    &memTrades{},
		tokens:    newMemTokens(),
		audit:     &memAudit{},
		bus:       &memBus{},
		locks:     newMemLocks(),
		quotes:    newMemQuotes(),
		poolStore: &memPoolStore{},
		breaker:   &Breaker{},
	}
	h.projects.nfts = h.nfts
	h.nfts.project = h.projects

	var err error
	h.ledger, err = ledger.New(context.Background(), h.poolStore, nil, ledger.DefaultRates, logger)
	require.NoError(t, err)
	h.splitter, err = fees.NewSplitter(h.ledger, treasury, fees.DefaultPolicies(), logger)
	require.NoError(t, err)

	h.market, err = NewSystemMarketService(MarketDeps{
		Projects: h.projects,
		NFTs:     h.nfts,
		Orders:   h.orders,
		Trades:   h.trades,
		Pools:    h.ledger,
		Fees:     h.splitter,
		Quotes:   h.quotes,
		Locks:    h.locks,
		Breaker:  h.breaker,
		Audit:    h.audit,
		Bus:      h.bus,
		Vault:    vault,
		Logger:   logger,
	})
	require.NoError(t, err)

	h.peer = NewPeerMarketService(PeerDeps{
		NFTs:    h.nfts,
		Orders:  h.orders,
		Trades:  h.trades,
		Tokens:  h.tokens,
		Fees:    h.splitter,
		Locks:   h.locks,
		Breaker: h.breaker,
		Audit:   h.audit,
		Bus:     h.bus,
		Logger:  logger,
	})

	h.project = NewProjectService(h.projects, h.nfts, h.audit, h.bus, logger)
	return h
}

func (h *harness) newMintService(gate *whitelist.Gate, mintPrice *big.Int, limiter domain.RateLimiter) *MintService {
	return NewMintService(MintDeps{
		Projects:  h.projects,
		NFTs:      h.nfts,
		Gate:      gate,
		Pools:     h.ledger,
		Breaker:   h.breaker,
		Limiter:   limiter,
		Audit:     h.audit,
		MintPrice: mintPrice,
		Logger:    slog.Default(),
	})
}

func openGate() *whitelist.Gate {
	return whitelist.NewGate(whitelist.Config{Enabled: false}, newMemWhitelistStore(), slog.Default())
}

// seedConfirmed sets up a confirmed three-token project: rarities 50/30/20
// over a total value of 100000, so base prices are 50000/30000/20000. Alice
// owns every token. The base pool is funded to the full total value.
func (h *harness) seedConfirmed(t *testing.T) {
	h.seedWithFunding(t, big.NewInt(100_000))
}

// newLeanHarness seeds the same confirmed project over an underfunded pool.
func newLeanHarness(t *testing.T, funding *big.Int) *harness {
	t.Helper()
	h := newHarness(t)
	h.seedWithFunding(t, funding)
	return h
}

func (h *harness) seedWithFunding(t *testing.T, funding *big.Int) {
	t.Helper()
	ctx := context.Background()

	h.projects.p = domain.Project{
		Creator:    creator,
		MaxSupply:  10,
		TotalValue: big.NewInt(100_000),
		Phase:      domain.PhaseCreation,
		CreatedAt:  time.Now().UTC(),
	}
	h.projects.isSet = true

	for _, rarity := range []int64{50, 30, 20} {
		rec, err := h.nfts.CreateNext(ctx, alice)
		require.NoError(t, err)
		require.NoError(t, h.nfts.SetRarity(ctx, rec.TokenID, rarity))
		h.tokens.owners[rec.TokenID] = alice
	}

	require.NoError(t, h.project.Confirm(ctx))
	require.NoError(t, h.ledger.Deposit(ctx, funding, false))
}

func (h *harness) basePrice(t *testing.T, tokenID int64) *big.Int {
	t.Helper()
	rec, err := h.nfts.Get(context.Background(), tokenID)
	require.NoError(t, err)
	require.NotNil(t, rec.BasePrice)
	return new(big.Int).Set(rec.BasePrice)
}
