package domain

import "time"

// Signal bus channels consumed by the websocket hub and operator tooling.
const (
	ChannelPool   = "pool"
	ChannelTrades = "trades"
	ChannelOrders = "orders"
	ChannelStatus = "status"
)

// PoolEvent is published after every pool mutation with both new balances,
// for off-chain observability.
type PoolEvent struct {
	Event           string    `json:"event"`
	BasePool        string    `json:"base_pool"`
	BasePoolTotal   string    `json:"base_pool_total"`
	PremiumPool     string    `json:"premium_pool"`
	PlatformAccrued string    `json:"platform_accrued"`
	At              time.Time `json:"at"`
}

// TradeEvent is published after every settled trade.
type TradeEvent struct {
	Event   string `json:"event"`
	TradeID string `json:"trade_id"`
	TokenID int64  `json:"token_id"`
	Venue   string `json:"venue"`
	Side    string `json:"side"`
	Gross   string `json:"gross"`
	Net     string `json:"net"`
}

// OrderEvent is published when a peer listing is created, cancelled, or
// filled.
type OrderEvent struct {
	Event   string `json:"event"`
	TokenID int64  `json:"token_id"`
	Seller  string `json:"seller"`
	Price   string `json:"price"`
}

// StatusEvent is published on administrative state changes (pause/unpause,
// project confirmation).
type StatusEvent struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}
