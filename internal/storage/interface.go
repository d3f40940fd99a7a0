package storage

import (
	"context"
	"io"
)

// ObjectStorage is the archive target for uploaded source files.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the URL for accessing an object
	GetURL(key string) string
}
