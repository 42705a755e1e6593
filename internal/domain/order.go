package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TradeVenue selects the fee schedule applied at settlement. Each venue is
// a distinct named policy; the rates are economically different and must
// never be folded into a single constant.
type TradeVenue string

const (
	// VenueSystem is the protocol-as-counterparty market (buyer/seller of
	// last resort at floor-plus-decaying-premium).
	VenueSystem TradeVenue = "system"
	// VenuePeer is a direct user-to-user sale.
	VenuePeer TradeVenue = "peer"
	// VenueMarketplace is the primary listing marketplace.
	VenueMarketplace TradeVenue = "marketplace"
)

// MarketOrder is an ephemeral peer-to-peer listing: created on list,
// destroyed on cancel or buy. At most one active order exists per token, and
// a token can never be both peer-listed and in the system market.
type MarketOrder struct {
	TokenID   int64
	Seller    common.Address
	Price     *big.Int
	Venue     TradeVenue
	CreatedAt time.Time
}
