package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobConfig configures the S3-compatible audio blob store.
type BlobConfig struct {
	// Endpoint is host:port of the object store, e.g. "minio.example.com:9000".
	Endpoint string
	// Bucket holds all uploaded audio objects.
	Bucket string
	// AccessKey and SecretKey authenticate uploads.
	AccessKey string
	SecretKey string
	// UseSSL selects https for the endpoint.
	UseSSL bool
	// PublicBaseURL is the URL prefix readers use to fetch objects,
	// e.g. "https://cdn.example.com/audio". Empty derives a path-style
	// URL from the endpoint and bucket.
	PublicBaseURL string
}

// BlobStore uploads audio recordings to an S3-compatible bucket.
type BlobStore struct {
	client *minio.Client
	config BlobConfig
}

// NewBlobStore creates a blob store client. The bucket must already exist;
// this constructor does not probe the network.
func NewBlobStore(config BlobConfig) (*BlobStore, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("blob endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &BlobStore{client: client, config: config}, nil
}

// Upload streams one object into the bucket and returns its public URL.
// Keys are deterministic per record, so repeating an upload overwrites the
// same object rather than accumulating copies.
func (b *BlobStore) Upload(ctx context.Context, key string, contentType string, size int64, body io.Reader) (string, error) {
	_, err := b.client.PutObject(ctx, b.config.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", remoteErr("upload blob "+key, 0, err)
	}
	return b.PublicURL(key), nil
}

// PublicURL returns the read URL for a key without any network call.
func (b *BlobStore) PublicURL(key string) string {
	if b.config.PublicBaseURL != "" {
		return strings.TrimSuffix(b.config.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if b.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, b.config.Endpoint, b.config.Bucket, key)
}
