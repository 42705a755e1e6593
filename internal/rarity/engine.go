// Package rarity computes rarity scores from raw attribute arrays. The
// score is the plain sum of attribute values; it feeds both the base-price
// share and the premium share after normalization. A per-name/per-value
// distribution table is maintained as optional instrumentation only — no
// pricing decision depends on it.
package rarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Engine stores attribute sets and derives rarity scores.
type Engine struct {
	attrs    domain.AttributeStore
	nfts     domain.NFTStore
	projects domain.ProjectStore
	dist     *Distribution
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given stores.
func NewEngine(attrs domain.AttributeStore, nfts domain.NFTStore, projects domain.ProjectStore, logger *slog.Logger) *Engine {
	return &Engine{
		attrs:    attrs,
		nfts:     nfts,
		projects: projects,
		dist:     NewDistribution(),
		logger:   logger.With(slog.String("component", "rarity_engine")),
	}
}

// Score sums the attribute values. Validation happens on write, so any
// stored set produces a positive score.
func Score(attrs []domain.Attribute) int64 {
	var total int64
	for _, a := range attrs {
		total += a.Value
	}
	return total
}

// SetAttributes validates and stores a token's attribute set, recomputes its
// rarity score, and refreshes the distribution table. Attribute sets may be
// replaced any number of times while the project is in the Creation phase;
// once base prices are confirmed every write is rejected, since a rarity
// change after confirmation would shift the token's premium share.
func (e *Engine) SetAttributes(ctx context.Context, tokenID int64, attrs []domain.Attribute) (int64, error) {
	proj, err := e.projects.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("rarity: get project: %w", err)
	}
	if proj.Phase != domain.PhaseCreation {
		return 0, fmt.Errorf("rarity: token %d: attributes frozen in phase %s: %w", tokenID, proj.Phase, domain.ErrWrongPhase)
	}
	if err := domain.ValidateAttributes(attrs); err != nil {
		return 0, fmt.Errorf("rarity: token %d: %w", tokenID, err)
	}

	// Fetch the previous set first so the distribution counts stay balanced
	// on replacement. A missing set is fine for first-time writes.
	prev, err := e.attrs.Get(ctx, tokenID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("rarity: load previous attributes for token %d: %w", tokenID, err)
		}
		prev = nil
	}

	if err := e.attrs.Replace(ctx, tokenID, attrs); err != nil {
		return 0, fmt.Errorf("rarity: store attributes for token %d: %w", tokenID, err)
	}

	score := Score(attrs)
	if err := e.nfts.SetRarity(ctx, tokenID, score); err != nil {
		return 0, fmt.Errorf("rarity: set score for token %d: %w", tokenID, err)
	}

	e.dist.Swap(prev, attrs)

	e.logger.InfoContext(ctx, "rarity assigned",
		slog.Int64("token_id", tokenID),
		slog.Int64("score", score),
		slog.Int("attributes", len(attrs)),
	)
	return score, nil
}

// Attributes returns the stored attribute set for a token.
func (e *Engine) Attributes(ctx context.Context, tokenID int64) ([]domain.Attribute, error) {
	attrs, err := e.attrs.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("rarity: get attributes for token %d: %w", tokenID, err)
	}
	return attrs, nil
}

// CalculateRarity recomputes the score from the stored attributes.
func (e *Engine) CalculateRarity(ctx context.Context, tokenID int64) (int64, error) {
	attrs, err := e.Attributes(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return Score(attrs), nil
}

// DistributionSnapshot exposes the instrumentation table for stats
// endpoints.
func (e *Engine) DistributionSnapshot() map[string]map[int64]int64 {
	return e.dist.Snapshot()
}
