// Package storage keeps claim document bytes outside the database.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

// Blob is an object store for document bytes.
type Blob interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	BulkDelete(ctx context.Context, keys []string) error
}

// ObjectKey builds a tidy, per-claim object key: claims/<claimID>/<ulid>-<slug>.<ext>
// The ULID keeps keys unique and sorted by upload time.
func ObjectKey(claimID uuid.UUID, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	base := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" {
		base = "document"
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return path.Join("claims", claimID.String(), id.String()+"-"+base+ext)
}
