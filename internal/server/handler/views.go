package handler

import (
	"time"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// View structs render domain types for the JSON API with all amounts as
// decimal strings.

type projectView struct {
	Creator     string     `json:"creator"`
	MaxSupply   int64      `json:"max_supply"`
	TotalMinted int64      `json:"total_minted"`
	TotalValue  string     `json:"total_value"`
	Phase       string     `json:"phase"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

func toProjectView(p domain.Project) projectView {
	return projectView{
		Creator:     p.Creator.Hex(),
		MaxSupply:   p.MaxSupply,
		TotalMinted: p.TotalMinted,
		TotalValue:  amountString(p.TotalValue),
		Phase:       string(p.Phase),
		CreatedAt:   p.CreatedAt,
		ConfirmedAt: p.ConfirmedAt,
	}
}

type nftView struct {
	TokenID        int64      `json:"token_id"`
	Owner          string     `json:"owner"`
	MintedTo       string     `json:"minted_to"`
	Rarity         int64      `json:"rarity"`
	BasePrice      *string    `json:"base_price,omitempty"`
	PriceConfirmed bool       `json:"price_confirmed"`
	InSystemMarket bool       `json:"in_system_market"`
	SellPrice      *string    `json:"sell_price,omitempty"`
	SellTimestamp  *time.Time `json:"sell_timestamp,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toNFTView(n domain.NFTRecord) nftView {
	v := nftView{
		TokenID:        n.TokenID,
		Owner:          n.Owner.Hex(),
		MintedTo:       n.MintedTo.Hex(),
		Rarity:         n.Rarity,
		PriceConfirmed: n.PriceConfirmed,
		InSystemMarket: n.InSystemMarket,
		SellTimestamp:  n.SellTimestamp,
		CreatedAt:      n.CreatedAt,
	}
	if n.BasePrice != nil {
		s := amountString(n.BasePrice)
		v.BasePrice = &s
	}
	if n.SellPrice != nil {
		s := amountString(n.SellPrice)
		v.SellPrice = &s
	}
	return v
}

type poolView struct {
	BasePool        string    `json:"base_pool"`
	BasePoolTotal   string    `json:"base_pool_total"`
	PremiumPool     string    `json:"premium_pool"`
	PlatformAccrued string    `json:"platform_accrued"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toPoolView(p domain.Pool) poolView {
	return poolView{
		BasePool:        amountString(p.BasePool),
		BasePoolTotal:   amountString(p.BasePoolTotal),
		PremiumPool:     amountString(p.PremiumPool),
		PlatformAccrued: amountString(p.PlatformAccrued),
		UpdatedAt:       p.UpdatedAt,
	}
}

type orderView struct {
	TokenID   int64     `json:"token_id"`
	Seller    string    `json:"seller"`
	Price     string    `json:"price"`
	Venue     string    `json:"venue"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderView(o domain.MarketOrder) orderView {
	return orderView{
		TokenID:   o.TokenID,
		Seller:    o.Seller.Hex(),
		Price:     amountString(o.Price),
		Venue:     string(o.Venue),
		CreatedAt: o.CreatedAt,
	}
}

type tradeView struct {
	ID          string    `json:"id"`
	TokenID     int64     `json:"token_id"`
	Venue       string    `json:"venue"`
	Side        string    `json:"side"`
	Seller      string    `json:"seller"`
	Buyer       string    `json:"buyer"`
	Gross       string    `json:"gross"`
	Fee         string    `json:"fee"`
	PlatformFee string    `json:"platform_fee"`
	PoolFee     string    `json:"pool_fee"`
	NetToSeller string    `json:"net_to_seller"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTradeView(t domain.TradeRecord) tradeView {
	return tradeView{
		ID:          t.ID,
		TokenID:     t.TokenID,
		Venue:       string(t.Venue),
		Side:        string(t.Side),
		Seller:      t.Seller.Hex(),
		Buyer:       t.Buyer.Hex(),
		Gross:       amountString(t.Gross),
		Fee:         amountString(t.Fee),
		PlatformFee: amountString(t.PlatformFee),
		PoolFee:     amountString(t.PoolFee),
		NetToSeller: amountString(t.NetToSeller),
		CreatedAt:   t.CreatedAt,
	}
}

func toTradeViews(trades []domain.TradeRecord) []tradeView {
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, toTradeView(t))
	}
	return views
}
