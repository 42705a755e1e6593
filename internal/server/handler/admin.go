package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// AdminService defines what the admin handler needs: the circuit breaker
// and the whitelist.
type AdminService interface {
	Pause(ctx context.Context)
	Unpause(ctx context.Context)
}

// WhitelistService manages mint allowances.
type WhitelistService interface {
	Add(ctx context.Context, addr common.Address, maxMint int64) error
	IsWhitelisted(ctx context.Context, addr common.Address) (bool, error)
}

// AuditQuery reads the audit log.
type AuditQuery interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AdminHandler serves operator endpoints: circuit breaker, whitelist
// management, and the audit trail.
type AdminHandler struct {
	admin     AdminService
	whitelist WhitelistService
	audit     AuditQuery
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, whitelist WhitelistService, audit AuditQuery, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, whitelist: whitelist, audit: audit, logger: logger}
}

// Pause trips the trading circuit breaker.
// POST /api/admin/pause
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.admin.Pause(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Unpause resets the trading circuit breaker.
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.admin.Unpause(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

type whitelistRequest struct {
	Address string `json:"address"`
	MaxMint int64  `json:"max_mint"`
}

// AddWhitelist grants a mint allowance.
// POST /api/admin/whitelist
func (h *AdminHandler) AddWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.whitelist.Add(r.Context(), addr, req.MaxMint); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"address":  addr.Hex(),
		"max_mint": req.MaxMint,
	})
}

// CheckWhitelist reports allowlist membership for an address.
// GET /api/admin/whitelist/{addr}
func (h *AdminHandler) CheckWhitelist(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.whitelist.IsWhitelisted(r.Context(), addr)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":     addr.Hex(),
		"whitelisted": ok,
	})
}

// Audit returns audit log entries.
// GET /api/admin/audit
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
