package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no payload exists under a key.
var ErrNotFound = errors.New("blob not found")

// Ref describes one persisted payload.
type Ref struct {
	Key       string
	SHA256    string
	SizeBytes int64
}

// BlobStore keeps media payload bytes outside the entity rows.
// Keys are content addressed, so equal payloads share one key.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (Ref, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
