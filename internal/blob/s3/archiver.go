package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// RealizedSource lists the realized ledger.
type RealizedSource interface {
	ListRealized(ctx context.Context) ([]domain.RealizedTrade, error)
}

// Archiver snapshots the realized ledger to object storage as JSONL.
//
// Archiving does not clear the ledger; each call uploads the full ledger
// under a new timestamped key.
type Archiver struct {
	writer domain.BlobWriter
	source RealizedSource
	audit  domain.AuditStore
	now    func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, source RealizedSource, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		source: source,
		audit:  audit,
		now:    time.Now,
	}
}

// ArchiveRealized uploads the current realized ledger. An empty ledger is
// not uploaded and yields a zero result.
func (a *Archiver) ArchiveRealized(ctx context.Context) (domain.ArchiveResult, error) {
	trades, err := a.source.ListRealized(ctx)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized query: %w", err)
	}
	if len(trades) == 0 {
		return domain.ArchiveResult{}, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized marshal: %w", err)
	}

	path := archivePath("profits", a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return domain.ArchiveResult{}, fmt.Errorf("s3blob: archive realized upload: %w", err)
	}

	res := domain.ArchiveResult{Path: path, Count: len(trades)}
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.profits", map[string]any{
			"path":  res.Path,
			"count": res.Count,
		}); err != nil {
			return res, fmt.Errorf("s3blob: archive realized audit log: %w", err)
		}
	}
	return res, nil
}

// archivePath builds the object key for an archive, partitioned by day:
//
//	archive/profits/2026-10-17/093000.000Z.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, at.Format("2006-01-02"), at.Format("150405.000Z"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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
