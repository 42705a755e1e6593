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

// OrderService defines what the order handler needs from the peer market.
type OrderService interface {
	List(ctx context.Context, tokenID int64, seller common.Address, price *big.Int, venue domain.TradeVenue) (domain.MarketOrder, error)
	Cancel(ctx context.Context, tokenID int64, seller common.Address) error
	Buy(ctx context.Context, tokenID int64, buyer common.Address, payment *big.Int) (service.SellResult, *big.Int, error)
	Orders(ctx context.Context, opts domain.ListOpts) ([]domain.MarketOrder, error)
	OrderFor(ctx context.Context, tokenID int64) (domain.MarketOrder, error)
}

// OrderHandler serves peer listing endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// ListOrders returns open listings.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Orders(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

// GetOrder returns the listing for one token.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.OrderFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

type listNFTRequest struct {
	TokenID int64  `json:"token_id"`
	Seller  string `json:"seller"`
	Price   string `json:"price"`
	Venue   string `json:"venue"`
}

// PlaceOrder creates a listing on the peer or marketplace venue.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req listNFTRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	price, err := parseAmountField(req.Price, "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	venue := domain.TradeVenue(req.Venue)
	if venue == "" {
		venue = domain.VenuePeer
	}

	order, err := h.orders.List(r.Context(), req.TokenID, seller, price, venue)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(order))
}

type cancelOrderRequest struct {
	Seller string `json:"seller"`
}

// CancelOrder removes a listing.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orders.Cancel(r.Context(), id, seller); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "cancelled",
		"token_id": id,
	})
}

type fillOrderRequest struct {
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
}

// FillOrder buys a listed token.
// POST /api/orders/{id}/buy
func (h *OrderHandler) FillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req fillOrderRequest
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

	result, refund, err := h.orders.Buy(r.Context(), id, buyer, payment)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trade":  toTradeView(result.Trade),
		"refund": amountString(refund),
	})
}
