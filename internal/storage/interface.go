package storage

import (
	"context"
	"io"
)

// ObjectStorage is a bucket whose objects are served at public URLs. The
// channel addresses objects by key and hands URLs to everything else.
type ObjectStorage interface {
	// Upload stores size bytes from reader under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL of key.
	GetURL(key string) string

	// KeyForURL maps a public URL back to its object key.
	// ok is false for URLs this storage did not produce.
	KeyForURL(url string) (key string, ok bool)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)
}
