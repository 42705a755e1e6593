package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the time-ranged query methods it actually
// calls, not the full domain store interfaces. The Postgres stores satisfy
// these implicitly through their ListBefore methods.
// ---------------------------------------------------------------------------

// TradeArchiveStore provides read access to settled trades for archival.
type TradeArchiveStore interface {
	// ListBefore returns all trades settled strictly before the cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error)
}

// AuditArchiveStore provides read access to audit entries for archival.
type AuditArchiveStore interface {
	// ListBefore returns all audit entries recorded strictly before the
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
}

// AuditLogger records archival events in the live audit log.
type AuditLogger interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the domain stores for
// old records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades TradeArchiveStore
	audit  AuditArchiveStore
	log    AuditLogger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	trades TradeArchiveStore,
	audit AuditArchiveStore,
	log AuditLogger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		audit:  audit,
		log:    log,
	}
}

// ArchiveTrades queries all trades before the cutoff, serializes them to
// JSONL, and uploads the file to S3 at archive/trades/YYYY-MM.jsonl. The
// archival event is recorded in the audit log and the count of archived
// records is returned.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	lines := make([]tradeArchiveRow, len(trades))
	for i, t := range trades {
		lines[i] = newTradeArchiveRow(t)
	}

	buf, err := marshalJSONL(lines)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))

	if err := a.log.Log(ctx, "archive.trades", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}

	return count, nil
}

// ArchiveAudit queries all audit entries before the cutoff, serializes them
// to JSONL, and uploads the file to S3 at archive/audit/YYYY-MM.jsonl. The
// archival event itself is recorded in the live audit log and the count of
// archived records is returned.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.log.Log(ctx, "archive.audit", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit audit log: %w", err)
	}

	return count, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// tradeArchiveRow is the JSONL representation of a settled trade. Amounts
// are serialized as decimal strings so archives stay lossless at wei scale.
type tradeArchiveRow struct {
	ID          string    `json:"id"`
	TokenID     int64     `json:"token_id"`
	Venue       string    `json:"venue"`
	Side        string    `json:"side"`
	Seller      string    `json:"seller"`
	Buyer       string    `json:"buyer"`
	Gross       string    `json:"gross"`
	Fee         string    `json:"fee"`
	PlatformFee string    `json:"platform_fee"`
	PoolFee     string    `json:"pool_fee"`
	NetToSeller string    `json:"net_to_seller"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTradeArchiveRow(t domain.TradeRecord) tradeArchiveRow {
	amt := func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		return v.String()
	}
	return tradeArchiveRow{
		ID:          t.ID,
		TokenID:     t.TokenID,
		Venue:       string(t.Venue),
		Side:        string(t.Side),
		Seller:      t.Seller.Hex(),
		Buyer:       t.Buyer.Hex(),
		Gross:       amt(t.Gross),
		Fee:         amt(t.Fee),
		PlatformFee: amt(t.PlatformFee),
		PoolFee:     amt(t.PoolFee),
		NetToSeller: amt(t.NetToSeller),
		CreatedAt:   t.CreatedAt,
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2026-01.jsonl
//	archive/audit/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
