package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// ProjectStore implements domain.ProjectStore using PostgreSQL. The project
// is a singleton row with id = 1.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore creates a new ProjectStore backed by the given pool.
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

// Create inserts the project singleton. A second call fails with
// ErrAlreadyExists.
func (s *ProjectStore) Create(ctx context.Context, p domain.Project) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project (id, creator, max_supply, total_value, phase, created_at)
		VALUES (1, $1, $2, $3, $4, $5)`,
		p.Creator.Hex(), p.MaxSupply, amountText(p.TotalValue), string(p.Phase), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create project: %w", mapErr(err))
	}
	return nil
}

// Get returns the project singleton.
func (s *ProjectStore) Get(ctx context.Context) (domain.Project, error) {
	var (
		p          domain.Project
		creator    string
		totalValue string
		phase      string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT creator, max_supply, total_minted, total_value, phase, created_at, confirmed_at
		FROM project WHERE id = 1`,
	).Scan(&creator, &p.MaxSupply, &p.TotalMinted, &totalValue, &phase, &p.CreatedAt, &p.ConfirmedAt)
	if err != nil {
		return domain.Project{}, fmt.Errorf("postgres: get project: %w", mapErr(err))
	}

	p.Creator = common.HexToAddress(creator)
	p.Phase = domain.ProjectPhase(phase)
	p.TotalValue, err = parseAmount(totalValue)
	if err != nil {
		return domain.Project{}, fmt.Errorf("postgres: project total value: %w", err)
	}
	return p, nil
}

// ConfirmPrices writes every base price, marks the records confirmed, and
// flips the phase to Confirmed in one transaction. Any missing token or an
// already-confirmed project rolls the whole operation back.
func (s *ProjectStore) ConfirmPrices(ctx context.Context, prices map[int64]*big.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin confirm tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	const update = `
		UPDATE nft_records
		SET base_price = $2, price_confirmed = TRUE, updated_at = NOW()
		WHERE token_id = $1`
	ids := make([]int64, 0, len(prices))
	for tokenID, price := range prices {
		batch.Queue(update, tokenID, amountText(price))
		ids = append(ids, tokenID)
	}

	br := tx.SendBatch(ctx, batch)
	for _, tokenID := range ids {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: confirm price for token %d: %w", tokenID, err)
		}
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			return fmt.Errorf("postgres: confirm price for token %d: %w", tokenID, domain.ErrNotFound)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: confirm price batch: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE project SET phase = $1, confirmed_at = NOW()
		WHERE id = 1 AND phase = $2`,
		string(domain.PhaseConfirmed), string(domain.PhaseCreation),
	)
	if err != nil {
		return fmt.Errorf("postgres: flip project phase: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres: flip project phase: %w", domain.ErrWrongPhase)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit confirm tx: %w", err)
	}
	return nil
}
