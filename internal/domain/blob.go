package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ArchiveResult describes one archived snapshot of the realized ledger.
type ArchiveResult struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}
