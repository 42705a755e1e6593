package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
	"github.com/Tinycute00/NFT-DEX/internal/whitelist"
)

const (
	mintRateLimit  = 5
	mintRateWindow = time.Minute
)

// MintService mints tokens during the Creation phase. The full mint payment
// is a pure floor contribution: it lands in the base pool without a fee
// split.
type MintService struct {
	projects domain.ProjectStore
	nfts     domain.NFTStore
	gate     *whitelist.Gate
	pools    Pools
	breaker  *Breaker
	limiter  domain.RateLimiter
	audit    domain.AuditStore

	mintPrice *big.Int
	logger    *slog.Logger
}

// MintDeps bundles the MintService dependencies.
type MintDeps struct {
	Projects  domain.ProjectStore
	NFTs      domain.NFTStore
	Gate      *whitelist.Gate
	Pools     Pools
	Breaker   *Breaker
	Limiter   domain.RateLimiter
	Audit     domain.AuditStore
	MintPrice *big.Int
	Logger    *slog.Logger
}

// NewMintService creates a MintService.
func NewMintService(d MintDeps) *MintService {
	return &MintService{
		projects:  d.Projects,
		nfts:      d.NFTs,
		gate:      d.Gate,
		pools:     d.Pools,
		breaker:   d.Breaker,
		limiter:   d.Limiter,
		audit:     d.Audit,
		mintPrice: d.MintPrice,
		logger:    d.Logger.With(slog.String("component", "mint_service")),
	}
}

// Mint admits the address through the whitelist gate, charges the mint
// price, creates the next token, and deposits the full payment into the
// base pool. Requires the Creation phase.
func (s *MintService) Mint(ctx context.Context, to common.Address, payment *big.Int) (domain.NFTRecord, error) {
	if err := s.breaker.Check(); err != nil {
		return domain.NFTRecord{}, err
	}
	if to == (common.Address{}) {
		return domain.NFTRecord{}, domain.ErrZeroAddress
	}
	if !domain.ValidAmount(payment) {
		return domain.NFTRecord{}, fmt.Errorf("mint_service: invalid payment: %w", domain.ErrArithmetic)
	}

	p, err := s.projects.Get(ctx)
	if err != nil {
		return domain.NFTRecord{}, fmt.Errorf("mint_service: get project: %w", err)
	}
	if p.Phase != domain.PhaseCreation {
		return domain.NFTRecord{}, fmt.Errorf("mint_service: minting requires creation phase: %w", domain.ErrWrongPhase)
	}
	if p.TotalMinted >= p.MaxSupply {
		return domain.NFTRecord{}, domain.ErrSupplyExhausted
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, "mint:"+to.Hex(), mintRateLimit, mintRateWindow)
		if err != nil {
			return domain.NFTRecord{}, fmt.Errorf("mint_service: rate limit check: %w", err)
		}
		if !ok {
			return domain.NFTRecord{}, domain.ErrRateLimited
		}
	}

	if err := s.gate.Admit(ctx, to); err != nil {
		return domain.NFTRecord{}, err
	}

	if s.mintPrice != nil && payment.Cmp(s.mintPrice) < 0 {
		return domain.NFTRecord{}, domain.NewTradeError("mint", 0, new(big.Int).Set(s.mintPrice), new(big.Int).Set(payment), domain.ErrInsufficientPayment)
	}

	rec, err := s.nfts.CreateNext(ctx, to)
	if err != nil {
		return domain.NFTRecord{}, fmt.Errorf("mint_service: create token: %w", err)
	}

	if payment.Sign() > 0 {
		if err := s.pools.Deposit(ctx, payment, false); err != nil {
			// The token exists but the pool credit failed. Surface the
			// error loudly; the audit row is what operators reconcile from.
			s.logger.ErrorContext(ctx, "mint deposit failed after token creation",
				slog.Int64("token_id", rec.TokenID),
				slog.String("payment", domain.FormatAmount(payment)),
				slog.String("error", err.Error()),
			)
			s.logAudit(ctx, "mint_deposit_failed", map[string]any{
				"token_id": rec.TokenID,
				"payment":  domain.FormatAmount(payment),
				"error":    err.Error(),
			})
			return rec, fmt.Errorf("mint_service: deposit mint payment: %w", err)
		}
	}

	s.logAudit(ctx, "token_minted", map[string]any{
		"token_id": rec.TokenID,
		"to":       to.Hex(),
		"payment":  domain.FormatAmount(payment),
	})

	s.logger.InfoContext(ctx, "token minted",
		slog.Int64("token_id", rec.TokenID),
		slog.String("to", to.Hex()),
		slog.String("payment", domain.FormatAmount(payment)),
	)
	return rec, nil
}

func (s *MintService) logAudit(ctx context.Context, event string, detail map[string]any) {
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
