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

// ProjectService defines what the project handler needs from the service
// layer.
type ProjectService interface {
	Initialize(ctx context.Context, creator common.Address, maxSupply int64, totalValue *big.Int) (domain.Project, error)
	Get(ctx context.Context) (domain.Project, error)
	Confirm(ctx context.Context) error
}

// ProjectHandler serves the project lifecycle endpoints.
type ProjectHandler struct {
	projects ProjectService
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(projects ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type initializeRequest struct {
	Creator    string `json:"creator"`
	MaxSupply  int64  `json:"max_supply"`
	TotalValue string `json:"total_value"`
}

// Initialize creates the project singleton.
// POST /api/project
func (h *ProjectHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	creator, err := parseAddress(req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	totalValue, err := parseAmountField(req.TotalValue, "total_value")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.projects.Initialize(r.Context(), creator, req.MaxSupply, totalValue)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(p))
}

// Get returns the project singleton.
// GET /api/project
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectView(p))
}

// Confirm freezes base prices and moves the project to the confirmed phase.
// POST /api/project/confirm
func (h *ProjectHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Confirm(r.Context()); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}
