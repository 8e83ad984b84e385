package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/flockhq/flock/internal/record"
)

// Backend combines the REST client and blob store into the full Service.
type Backend struct {
	rest  *Client
	blobs *BlobStore
}

// NewBackend wires a REST client and a blob store together. blobs may be
// nil when no object store is configured; UploadBlob then fails cleanly
// and notes keep their local audio path until one is available.
func NewBackend(rest *Client, blobs *BlobStore) *Backend {
	return &Backend{rest: rest, blobs: blobs}
}

func (b *Backend) Upsert(ctx context.Context, entity record.Entity, payload map[string]any) error {
	return b.rest.Upsert(ctx, entity, payload)
}

func (b *Backend) Select(ctx context.Context, entity record.Entity, opts SelectOptions) ([]map[string]any, error) {
	return b.rest.Select(ctx, entity, opts)
}

func (b *Backend) UploadBlob(ctx context.Context, key string, contentType string, size int64, body io.Reader) (string, error) {
	if b.blobs == nil {
		return "", remoteErr("upload blob "+key, 0, fmt.Errorf("no blob store configured"))
	}
	return b.blobs.Upload(ctx, key, contentType, size, body)
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.rest.Ping(ctx)
}

var _ Service = (*Backend)(nil)
