package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeSide distinguishes the direction of a settled trade.
type TradeSide string

const (
	SideSellToSystem  TradeSide = "sell_to_system"
	SideBuyFromSystem TradeSide = "buy_from_system"
	SidePeerSale      TradeSide = "peer_sale"
)

// TradeRecord is the immutable settlement row written for every completed
// trade: the gross price, the full fee breakdown, and both parties.
type TradeRecord struct {
	ID          string
	TokenID     int64
	Venue       TradeVenue
	Side        TradeSide
	Seller      common.Address
	Buyer       common.Address
	Gross       *big.Int
	Fee         *big.Int
	PlatformFee *big.Int
	PoolFee     *big.Int
	NetToSeller *big.Int
	CreatedAt   time.Time
}

// Receipt is the fee breakdown returned by a settlement.
type Receipt struct {
	Gross       *big.Int
	Fee         *big.Int
	PlatformFee *big.Int
	PoolFee     *big.Int
	Net         *big.Int
}
