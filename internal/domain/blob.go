package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader inspects stored objects. Stat returns ErrNotFound for a
// missing path.
type BlobReader interface {
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Stat(ctx context.Context, path string) (BlobInfo, error)
}

// BlobDeleter removes objects from storage. Missing paths are not an error.
type BlobDeleter interface {
	Delete(ctx context.Context, paths ...string) error
}

// Archiver moves old ledger data from the database to cold storage.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
	ArchiveAudit(ctx context.Context, before time.Time) (int64, error)
}
