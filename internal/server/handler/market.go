package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/service"
)

// MarketService defines what the market handler needs from the system
// market.
type MarketService interface {
	Quote(ctx context.Context, tokenID int64) (*big.Int, error)
	BuybackPrice(ctx context.Context, tokenID int64) (*big.Int, error)
	SellToSystem(ctx context.Context, tokenID int64, seller common.Address) (service.SellResult, error)
	BuyFromSystem(ctx context.Context, tokenID int64, buyer common.Address, payment *big.Int) (service.BuyResult, error)
	BatchSellToSystem(ctx context.Context, tokenIDs []int64, seller common.Address) ([]service.SellResult, error)
	BatchBuyFromSystem(ctx context.Context, tokenIDs []int64, buyer common.Address, payment *big.Int) ([]service.BuyResult, *big.Int, error)
	Info(ctx context.Context) service.MarketInfo
}

// TradeQuery defines the trade history read side.
type TradeQuery interface {
	ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// MarketHandler serves the system-market endpoints.
type MarketHandler struct {
	market MarketService
	trades TradeQuery
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market MarketService, trades TradeQuery, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{market: market, trades: trades, logger: logger}
}

// Info returns pool balances and market status.
// GET /api/market
func (h *MarketHandler) Info(w http.ResponseWriter, r *http.Request) {
	info := h.market.Info(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":      toPoolView(info.Pool),
		"liquidity": amountString(info.Liquidity),
		"paused":    info.Paused,
		"vault":     info.Vault.Hex(),
	})
}

// Quote returns the advisory sell-to-system price for a token.
// GET /api/market/quote/{id}
func (h *MarketHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	price, err := h.market.Quote(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": id,
		"price":    amountString(price),
	})
}

// BuybackPrice returns the current decayed buy-from-system price.
// GET /api/market/buyback/{id}
func (h *MarketHandler) BuybackPrice(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	price, err := h.market.BuybackPrice(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": id,
		"price":    amountString(price),
	})
}

type sellRequest struct {
	TokenID  int64   `json:"token_id"`
	TokenIDs []int64 `json:"token_ids"`
	Seller   string  `json:"seller"`
}

// Sell sells one token (token_id) or a batch (token_ids) to the system.
// POST /api/market/sell
func (h *MarketHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.TokenIDs) > 0 {
		results, err := h.market.BatchSellToSystem(r.Context(), req.TokenIDs, seller)
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trades": sellResultViews(results)})
		return
	}

	if req.TokenID <= 0 {
		writeError(w, http.StatusBadRequest, "token_id or token_ids required")
		return
	}
	result, err := h.market.SellToSystem(r.Context(), req.TokenID, seller)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTradeView(result.Trade))
}

type buyRequest struct {
	TokenID  int64   `json:"token_id"`
	TokenIDs []int64 `json:"token_ids"`
	Buyer    string  `json:"buyer"`
	Payment  string  `json:"payment"`
}

// Buy buys one token (token_id) or a batch (token_ids) back from the
// system.
// POST /api/market/buy
func (h *MarketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseAmountField(req.Payment, "payment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.TokenIDs) > 0 {
		results, refund, err := h.market.BatchBuyFromSystem(r.Context(), req.TokenIDs, buyer, payment)
		if err != nil {
			writeDomainError(w, h.logger, r, err)
			return
		}
		trades := make([]tradeView, 0, len(results))
		for _, res := range results {
			trades = append(trades, toTradeView(res.Trade))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"trades": trades,
			"refund": amountString(refund),
		})
		return
	}

	if req.TokenID <= 0 {
		writeError(w, http.StatusBadRequest, "token_id or token_ids required")
		return
	}
	result, err := h.market.BuyFromSystem(r.Context(), req.TokenID, buyer, payment)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trade":  toTradeView(result.Trade),
		"price":  amountString(result.Price),
		"refund": amountString(result.Refund),
	})
}

// Trades returns the most recent settlements.
// GET /api/market/trades?limit=50
func (h *MarketHandler) Trades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.trades.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": toTradeViews(trades)})
}

func sellResultViews(results []service.SellResult) []tradeView {
	views := make([]tradeView, 0, len(results))
	for _, res := range results {
		views = append(views, toTradeView(res.Trade))
	}
	return views
}
