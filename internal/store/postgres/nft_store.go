package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// NFTStore implements domain.NFTStore using PostgreSQL. State transitions
// are conditional updates keyed on the expected owner and listing flag, so
// concurrent settlements for the same token cannot interleave.
type NFTStore struct {
	pool *pgxpool.Pool
}

// NewNFTStore creates a new NFTStore backed by the given pool.
func NewNFTStore(pool *pgxpool.Pool) *NFTStore {
	return &NFTStore{pool: pool}
}

const nftSelectCols = `token_id, owner, minted_to, rarity, base_price, price_confirmed,
	in_system_market, sell_price, sell_timestamp, created_at, updated_at`

func scanNFT(row pgx.Row) (domain.NFTRecord, error) {
	var (
		rec       domain.NFTRecord
		owner     string
		mintedTo  string
		basePrice *string
		sellPrice *string
	)
	err := row.Scan(
		&rec.TokenID, &owner, &mintedTo, &rec.Rarity, &basePrice, &rec.PriceConfirmed,
		&rec.InSystemMarket, &sellPrice, &rec.SellTimestamp, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.NFTRecord{}, err
	}

	rec.Owner = common.HexToAddress(owner)
	rec.MintedTo = common.HexToAddress(mintedTo)
	if rec.BasePrice, err = parseNullableAmount(basePrice); err != nil {
		return domain.NFTRecord{}, fmt.Errorf("base price: %w", err)
	}
	if rec.SellPrice, err = parseNullableAmount(sellPrice); err != nil {
		return domain.NFTRecord{}, fmt.Errorf("sell price: %w", err)
	}
	return rec, nil
}

// CreateNext bumps the project mint counter and inserts the next token in
// one transaction. Token IDs are the mint sequence: token N is the Nth mint.
func (s *NFTStore) CreateNext(ctx context.Context, to common.Address) (domain.NFTRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.NFTRecord{}, fmt.Errorf("postgres: begin mint tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tokenID int64
	err = tx.QueryRow(ctx, `
		UPDATE project SET total_minted = total_minted + 1
		WHERE id = 1 AND total_minted < max_supply
		RETURNING total_minted`,
	).Scan(&tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if chkErr := tx.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM project WHERE id = 1)").Scan(&exists); chkErr == nil && !exists {
				return domain.NFTRecord{}, fmt.Errorf("postgres: mint: %w", domain.ErrNotFound)
			}
			return domain.NFTRecord{}, domain.ErrSupplyExhausted
		}
		return domain.NFTRecord{}, fmt.Errorf("postgres: bump mint counter: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO nft_records (token_id, owner, minted_to)
		VALUES ($1, $2, $2)
		RETURNING `+nftSelectCols,
		tokenID, to.Hex(),
	)
	rec, err := scanNFT(row)
	if err != nil {
		return domain.NFTRecord{}, fmt.Errorf("postgres: insert token %d: %w", tokenID, mapErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NFTRecord{}, fmt.Errorf("postgres: commit mint tx: %w", err)
	}
	return rec, nil
}

// Get returns the record for tokenID.
func (s *NFTStore) Get(ctx context.Context, tokenID int64) (domain.NFTRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+nftSelectCols+` FROM nft_records WHERE token_id = $1`, tokenID)
	rec, err := scanNFT(row)
	if err != nil {
		return domain.NFTRecord{}, fmt.Errorf("postgres: get token %d: %w", tokenID, mapErr(err))
	}
	return rec, nil
}

// List returns records ordered by token ID with pagination.
func (s *NFTStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.NFTRecord, error) {
	query := `SELECT ` + nftSelectCols + ` FROM nft_records ORDER BY token_id ASC`
	args := []any{}
	argIdx := 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var recs []domain.NFTRecord
	for rows.Next() {
		rec, err := scanNFT(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetRarity writes a token's rarity score. The update is conditional on the
// base price still being unconfirmed; a confirmed token's rarity is frozen.
func (s *NFTStore) SetRarity(ctx context.Context, tokenID, rarity int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE nft_records SET rarity = $2, updated_at = NOW()
		WHERE token_id = $1 AND price_confirmed = FALSE`,
		tokenID, rarity,
	)
	if err != nil {
		return fmt.Errorf("postgres: set rarity for token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() != 1 {
		var confirmed bool
		err := s.pool.QueryRow(ctx, `
			SELECT price_confirmed FROM nft_records WHERE token_id = $1`, tokenID,
		).Scan(&confirmed)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("postgres: set rarity for token %d: %w", tokenID, domain.ErrNotFound)
		case err != nil:
			return fmt.Errorf("postgres: set rarity for token %d: %w", tokenID, err)
		default:
			return fmt.Errorf("postgres: set rarity for token %d: %w", tokenID, domain.ErrWrongPhase)
		}
	}
	return nil
}

// RarityTotals returns the count of minted tokens still missing a rarity
// score and the sum of all assigned scores.
func (s *NFTStore) RarityTotals(ctx context.Context) (missing int64, total int64, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE rarity <= 0), COALESCE(SUM(rarity), 0)
		FROM nft_records`,
	).Scan(&missing, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: rarity totals: %w", err)
	}
	return missing, total, nil
}

// Rarities returns every minted token's rarity score.
func (s *NFTStore) Rarities(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT token_id, rarity FROM nft_records`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rarities: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var tokenID, rarity int64
		if err := rows.Scan(&tokenID, &rarity); err != nil {
			return nil, fmt.Errorf("postgres: scan rarity: %w", err)
		}
		out[tokenID] = rarity
	}
	return out, rows.Err()
}

const markInSystemMarketSQL = `
	UPDATE nft_records
	SET owner = $3, in_system_market = TRUE, sell_price = $4,
	    sell_timestamp = $5, updated_at = NOW()
	WHERE token_id = $1 AND owner = $2
	  AND in_system_market = FALSE AND price_confirmed = TRUE`

const clearSystemMarketSQL = `
	UPDATE nft_records
	SET owner = $2, in_system_market = FALSE, sell_price = NULL,
	    sell_timestamp = NULL, updated_at = NOW()
	WHERE token_id = $1 AND in_system_market = TRUE`

// MarkInSystemMarket flips a token into the system market and moves custody
// to the vault in one conditional update.
func (s *NFTStore) MarkInSystemMarket(ctx context.Context, tokenID int64, from, vault common.Address, sellPrice *big.Int, at time.Time) error {
	tag, err := s.pool.Exec(ctx, markInSystemMarketSQL,
		tokenID, from.Hex(), vault.Hex(), amountText(sellPrice), at)
	if err != nil {
		return fmt.Errorf("postgres: list token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() != 1 {
		return s.diagnoseMark(ctx, tokenID, from)
	}
	return nil
}

// ClearSystemMarket removes a token from the system market and assigns the
// new owner.
func (s *NFTStore) ClearSystemMarket(ctx context.Context, tokenID int64, newOwner common.Address) error {
	tag, err := s.pool.Exec(ctx, clearSystemMarketSQL, tokenID, newOwner.Hex())
	if err != nil {
		return fmt.Errorf("postgres: delist token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres: token %d: %w", tokenID, domain.ErrNotListed)
	}
	return nil
}

// MarkInSystemMarketBatch applies every listing transition in one
// transaction; a single conflict rolls back the whole batch.
func (s *NFTStore) MarkInSystemMarketBatch(ctx context.Context, sales []domain.SystemSale, at time.Time) error {
	if len(sales) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin batch list tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sale := range sales {
		tag, err := tx.Exec(ctx, markInSystemMarketSQL,
			sale.TokenID, sale.Owner.Hex(), sale.Vault.Hex(), amountText(sale.SellPrice), at)
		if err != nil {
			return fmt.Errorf("postgres: batch list token %d: %w", sale.TokenID, err)
		}
		if tag.RowsAffected() != 1 {
			return s.diagnoseMark(ctx, sale.TokenID, sale.Owner)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit batch list tx: %w", err)
	}
	return nil
}

// ClearSystemMarketBatch is the all-or-nothing inverse of
// MarkInSystemMarketBatch.
func (s *NFTStore) ClearSystemMarketBatch(ctx context.Context, buys []domain.SystemBuy) error {
	if len(buys) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin batch delist tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, buy := range buys {
		tag, err := tx.Exec(ctx, clearSystemMarketSQL, buy.TokenID, buy.NewOwner.Hex())
		if err != nil {
			return fmt.Errorf("postgres: batch delist token %d: %w", buy.TokenID, err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("postgres: token %d: %w", buy.TokenID, domain.ErrNotListed)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit batch delist tx: %w", err)
	}
	return nil
}

// diagnoseMark turns a zero-row conditional listing update into the precise
// domain error.
func (s *NFTStore) diagnoseMark(ctx context.Context, tokenID int64, from common.Address) error {
	rec, err := s.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	switch {
	case rec.InSystemMarket:
		return fmt.Errorf("postgres: token %d: %w", tokenID, domain.ErrAlreadyListed)
	case rec.Owner != from:
		return fmt.Errorf("postgres: token %d owned by %s: %w", tokenID, rec.Owner.Hex(), domain.ErrNotOwner)
	case !rec.PriceConfirmed:
		return fmt.Errorf("postgres: token %d: %w", tokenID, domain.ErrPriceNotConfirmed)
	default:
		return fmt.Errorf("postgres: token %d: listing conflict: %w", tokenID, domain.ErrAlreadyListed)
	}
}
