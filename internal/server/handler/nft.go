package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// MintService defines what the NFT handler needs for minting.
type MintService interface {
	Mint(ctx context.Context, to common.Address, payment *big.Int) (domain.NFTRecord, error)
}

// RarityService defines what the NFT handler needs for attribute and rarity
// management.
type RarityService interface {
	SetAttributes(ctx context.Context, tokenID int64, attrs []domain.Attribute) (int64, error)
	Attributes(ctx context.Context, tokenID int64) ([]domain.Attribute, error)
	DistributionSnapshot() map[string]map[int64]int64
}

// NFTQuery defines the read side the NFT handler needs.
type NFTQuery interface {
	Get(ctx context.Context, tokenID int64) (domain.NFTRecord, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.NFTRecord, error)
}

// NFTHandler serves token endpoints: minting, queries, and attributes.
type NFTHandler struct {
	mint   MintService
	rarity RarityService
	nfts   NFTQuery
	logger *slog.Logger
}

// NewNFTHandler creates an NFTHandler.
func NewNFTHandler(mint MintService, rarity RarityService, nfts NFTQuery, logger *slog.Logger) *NFTHandler {
	return &NFTHandler{mint: mint, rarity: rarity, nfts: nfts, logger: logger}
}

type mintRequest struct {
	To      string `json:"to"`
	Payment string `json:"payment"`
}

// Mint mints the next token to an address.
// POST /api/nfts/mint
func (h *NFTHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseAmountField(req.Payment, "payment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.mint.Mint(r.Context(), to, payment)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNFTView(rec))
}

// List returns token records with pagination.
// GET /api/nfts
func (h *NFTHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.nfts.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	views := make([]nftView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toNFTView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"nfts": views})
}

// Get returns one token record.
// GET /api/nfts/{id}
func (h *NFTHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.nfts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNFTView(rec))
}

type setAttributesRequest struct {
	Attributes []domain.Attribute `json:"attributes"`
}

// SetAttributes replaces a token's attribute set and recomputes its rarity.
// PUT /api/nfts/{id}/attributes
func (h *NFTHandler) SetAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req setAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rarity, err := h.rarity.SetAttributes(r.Context(), id, req.Attributes)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": id,
		"rarity":   rarity,
	})
}

// Attributes returns a token's attribute set.
// GET /api/nfts/{id}/attributes
func (h *NFTHandler) Attributes(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attrs, err := h.rarity.Attributes(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id":   id,
		"attributes": attrs,
	})
}

// Distribution returns the attribute value distribution across the
// collection.
// GET /api/nfts/distribution
func (h *NFTHandler) Distribution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"distribution": h.rarity.DistributionSnapshot(),
	})
}
