package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/dockside/internal/domain"
)

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 8 * 1024 * 1024

const jsonlContentType = "application/x-ndjson"

// TradeArchiveStore is the slice of domain.TradeStore the archiver needs.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ObjectStat reports what the bucket holds at a path.
type ObjectStat interface {
	Stat(ctx context.Context, path string) (domain.BlobInfo, error)
}

// Archiver implements domain.Archiver. It copies ledger rows older than a
// cutoff to object storage as JSONL and then deletes them from the primary
// store. Rows are only deleted once the object is confirmed present with the
// uploaded size.
type Archiver struct {
	writer domain.BlobWriter
	stat   ObjectStat
	trades TradeArchiveStore
	audit  domain.AuditStore
	prefix string
}

// NewArchiver creates an Archiver writing under prefix (for example
// "archive").
func NewArchiver(writer domain.BlobWriter, stat ObjectStat, trades TradeArchiveStore, audit domain.AuditStore, prefix string) *Archiver {
	if prefix == "" {
		prefix = "archive"
	}
	return &Archiver{writer: writer, stat: stat, trades: trades, audit: audit, prefix: prefix}
}

// ArchiveTrades moves trades older than before to
// {prefix}/trades/{cutoff}.jsonl and returns how many were moved.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	path, err := upload(ctx, a, "trades", before, trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: %w", err)
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive_trades", map[string]any{
		"path":    path,
		"count":   len(trades),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}
	return deleted, nil
}

// ArchiveAudit moves audit entries older than before to
// {prefix}/audit/{cutoff}.jsonl. The archive run itself is logged after the
// delete so the new entry survives.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	path, err := upload(ctx, a, "audit", before, entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit: %w", err)
	}

	deleted, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive_audit", map[string]any{
		"path":    path,
		"count":   len(entries),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return deleted, nil
}

func upload[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T) (string, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", err
	}
	path := archivePath(a.prefix, kind, before)
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	info, err := a.stat.Stat(ctx, path)
	if err != nil {
		return "", fmt.Errorf("verify %s: %w", path, err)
	}
	if info.Size != int64(len(buf)) {
		return "", fmt.Errorf("verify %s: stored %d bytes, uploaded %d", path, info.Size, len(buf))
	}
	return path, nil
}

// archivePath builds the object key for one archive run, for example
//
//	archive/trades/2026-03-01T000000Z.jsonl
func archivePath(prefix, kind string, before time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", prefix, kind, before.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL encodes each record as one compact JSON line.
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

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
