package storage

import "context"

// BlobStore stores raw bytes under a key and retrieves them later. Intake
// writes the uploaded image here; the executor reads it back by key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}
