package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NFTRecord is the per-token ledger row, keyed by TokenID and 1:1 with the
// underlying token. Rarity may be recomputed while the project is in the
// Creation phase; BasePrice is written exactly once at confirmation and is
// permanent afterwards. SellPrice/SellTimestamp/InSystemMarket cycle on each
// sell-to-system / buy-from-system round trip.
type NFTRecord struct {
	TokenID        int64
	Owner          common.Address
	MintedTo       common.Address
	Rarity         int64
	BasePrice      *big.Int
	PriceConfirmed bool
	InSystemMarket bool
	SellPrice      *big.Int
	SellTimestamp  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRarity reports whether a rarity score has been assigned.
func (n NFTRecord) HasRarity() bool { return n.Rarity > 0 }
