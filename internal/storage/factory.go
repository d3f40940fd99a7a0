package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/timmy/tally/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - ctx: context bounding the bucket check.
//   - cfg: storage configuration including type, endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = string(detectStorageType(cfg.Endpoint))
	}

	if StorageType(cfg.Type) == StorageTypeLocal {
		return NewLocalStorage(cfg.LocalDir)
	}

	s3Store, err := NewS3Storage(cfg)
	if err != nil {
		return nil, err
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Store, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeLocal
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// ArchiveKey returns the object key for a job's source file: <upload id>/<base name>.
func ArchiveKey(uploadID, fileName string) string {
	return path.Join(uploadID, filepath.Base(fileName))
}

// ArchiveFile copies a local file into storage under key and returns its URL.
func ArchiveFile(ctx context.Context, store ObjectStorage, key, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for archive: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := store.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return "", err
	}
	return store.GetURL(key), nil
}
