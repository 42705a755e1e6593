package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ProjectStore persists the project singleton.
type ProjectStore interface {
	Create(ctx context.Context, p Project) error
	Get(ctx context.Context) (Project, error)
	// ConfirmPrices writes every base price, marks the records confirmed, and
	// flips the phase to Confirmed in a single transaction. Nothing is
	// applied if any write fails.
	ConfirmPrices(ctx context.Context, prices map[int64]*big.Int) error
}

// NFTStore persists per-token ledger rows.
type NFTStore interface {
	// CreateNext inserts the next token (token_id = total_minted + 1) and
	// bumps the project mint counter atomically. It fails with
	// ErrSupplyExhausted once max supply is reached.
	CreateNext(ctx context.Context, to common.Address) (NFTRecord, error)
	Get(ctx context.Context, tokenID int64) (NFTRecord, error)
	List(ctx context.Context, opts ListOpts) ([]NFTRecord, error)
	// SetRarity writes a token's rarity score; it fails with ErrWrongPhase
	// once the token's base price is confirmed.
	SetRarity(ctx context.Context, tokenID, rarity int64) error
	// RarityTotals returns the number of minted tokens still missing a
	// rarity score and the sum of all assigned scores.
	RarityTotals(ctx context.Context) (missing int64, total int64, err error)
	// Rarities returns every minted token's rarity score.
	Rarities(ctx context.Context) (map[int64]int64, error)
	// MarkInSystemMarket flips a token into the system market and moves
	// custody to the vault in one conditional update; it fails with
	// ErrAlreadyListed if the token is already listed and ErrNotOwner when
	// the expected owner does not match.
	MarkInSystemMarket(ctx context.Context, tokenID int64, from, vault common.Address, sellPrice *big.Int, at time.Time) error
	// ClearSystemMarket removes a token from the system market and assigns
	// the new owner; it fails with ErrNotListed if the token is not listed.
	ClearSystemMarket(ctx context.Context, tokenID int64, newOwner common.Address) error
	// MarkInSystemMarketBatch applies every transition in one transaction;
	// a single conflict rolls back the whole batch.
	MarkInSystemMarketBatch(ctx context.Context, sales []SystemSale, at time.Time) error
	// ClearSystemMarketBatch is the all-or-nothing inverse.
	ClearSystemMarketBatch(ctx context.Context, buys []SystemBuy) error
}

// SystemSale is one leg of a (batch) sell-to-system settlement.
type SystemSale struct {
	TokenID   int64
	Owner     common.Address
	Vault     common.Address
	SellPrice *big.Int
}

// SystemBuy is one leg of a (batch) buy-from-system settlement.
type SystemBuy struct {
	TokenID  int64
	NewOwner common.Address
}

// TokenLedger is the ERC-721-style custody ledger consumed by the market
// services for transfers during sell/buy.
type TokenLedger interface {
	OwnerOf(ctx context.Context, tokenID int64) (common.Address, error)
	// Transfer moves custody with a compare-and-swap on the current owner.
	Transfer(ctx context.Context, tokenID int64, from, to common.Address) error
}

// PoolStore persists the pool singleton.
type PoolStore interface {
	Get(ctx context.Context) (Pool, error)
	Save(ctx context.Context, p Pool) error
}

// OrderStore persists ephemeral peer-to-peer listings.
type OrderStore interface {
	Create(ctx context.Context, o MarketOrder) error
	Get(ctx context.Context, tokenID int64) (MarketOrder, error)
	Delete(ctx context.Context, tokenID int64) error
	List(ctx context.Context, opts ListOpts) ([]MarketOrder, error)
}

// TradeStore persists immutable settlement rows.
type TradeStore interface {
	Insert(ctx context.Context, t TradeRecord) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
}

// AttributeStore persists raw attribute arrays per token.
type AttributeStore interface {
	// Replace swaps the full attribute set for a token in one transaction.
	Replace(ctx context.Context, tokenID int64, attrs []Attribute) error
	Get(ctx context.Context, tokenID int64) ([]Attribute, error)
}

// WhitelistEntry tracks a mint allowance for one address.
type WhitelistEntry struct {
	Address   common.Address
	MaxMint   int64
	Minted    int64
	CreatedAt time.Time
}

// WhitelistStore persists mint allowances.
type WhitelistStore interface {
	Upsert(ctx context.Context, e WhitelistEntry) error
	Get(ctx context.Context, addr common.Address) (WhitelistEntry, error)
	// ConsumeMint increments the minted counter only while it is below the
	// allowance; it fails with ErrMintLimitReached otherwise.
	ConsumeMint(ctx context.Context, addr common.Address) error
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists the append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
