package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/pricing"
)

// ProjectService manages the project singleton and the one-shot price
// confirmation.
type ProjectService struct {
	projects domain.ProjectStore
	nfts     domain.NFTStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(projects domain.ProjectStore, nfts domain.NFTStore, audit domain.AuditStore, bus domain.SignalBus, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		nfts:     nfts,
		audit:    audit,
		bus:      bus,
		logger:   logger.With(slog.String("component", "project_service")),
	}
}

// Initialize creates the project singleton. Creator, max supply, and total
// value are immutable afterwards.
func (s *ProjectService) Initialize(ctx context.Context, creator common.Address, maxSupply int64, totalValue *big.Int) (domain.Project, error) {
	if creator == (common.Address{}) {
		return domain.Project{}, domain.ErrZeroAddress
	}
	if maxSupply <= 0 {
		return domain.Project{}, fmt.Errorf("project_service: max supply must be positive: %w", domain.ErrArithmetic)
	}
	if !domain.ValidAmount(totalValue) || totalValue.Sign() == 0 {
		return domain.Project{}, fmt.Errorf("project_service: total value must be positive: %w", domain.ErrArithmetic)
	}

	p := domain.Project{
		Creator:    creator,
		MaxSupply:  maxSupply,
		TotalValue: totalValue,
		Phase:      domain.PhaseCreation,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("project_service: create project: %w", err)
	}

	s.logAudit(ctx, "project_initialized", map[string]any{
		"creator":     creator.Hex(),
		"max_supply":  maxSupply,
		"total_value": domain.FormatAmount(totalValue),
	})

	s.logger.InfoContext(ctx, "project initialized",
		slog.String("creator", creator.Hex()),
		slog.Int64("max_supply", maxSupply),
		slog.String("total_value", domain.FormatAmount(totalValue)),
	)
	return p, nil
}

// Get returns the project singleton.
func (s *ProjectService) Get(ctx context.Context) (domain.Project, error) {
	p, err := s.projects.Get(ctx)
	if err != nil {
		return domain.Project{}, fmt.Errorf("project_service: get project: %w", err)
	}
	return p, nil
}

// Confirm freezes every token's base price and moves the project to the
// Confirmed phase. It is callable exactly once, requires a rarity score on
// every minted token, and rejects the whole operation if any computed price
// is zero; no partial writes survive a failure.
func (s *ProjectService) Confirm(ctx context.Context) error {
	p, err := s.projects.Get(ctx)
	if err != nil {
		return fmt.Errorf("project_service: get project: %w", err)
	}
	if _, err := p.Phase.Transition(domain.PhaseConfirmed); err != nil {
		return fmt.Errorf("project_service: confirm: %w", err)
	}
	if p.TotalMinted == 0 {
		return fmt.Errorf("project_service: nothing minted: %w", domain.ErrRarityMissing)
	}

	missing, total, err := s.nfts.RarityTotals(ctx)
	if err != nil {
		return fmt.Errorf("project_service: rarity totals: %w", err)
	}
	if missing > 0 || total <= 0 {
		return fmt.Errorf("project_service: %d tokens without rarity: %w", missing, domain.ErrRarityMissing)
	}

	rarities, err := s.nfts.Rarities(ctx)
	if err != nil {
		return fmt.Errorf("project_service: load rarities: %w", err)
	}

	prices, err := pricing.BasePrices(p.TotalValue, rarities)
	if err != nil {
		return fmt.Errorf("project_service: compute base prices: %w", err)
	}

	if err := s.projects.ConfirmPrices(ctx, prices); err != nil {
		return fmt.Errorf("project_service: confirm prices: %w", err)
	}

	s.logAudit(ctx, "project_confirmed", map[string]any{
		"tokens":       len(prices),
		"total_rarity": total,
	})
	s.publishStatus(ctx, "project_confirmed")

	s.logger.InfoContext(ctx, "project confirmed",
		slog.Int("tokens", len(prices)),
		slog.Int64("total_rarity", total),
	)
	return nil
}

func (s *ProjectService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProjectService) publishStatus(ctx context.Context, event string) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(domain.StatusEvent{Event: event, At: time.Now().UTC()})
	if err := s.bus.Publish(ctx, domain.ChannelStatus, evt); err != nil {
		s.logger.WarnContext(ctx, "status publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
