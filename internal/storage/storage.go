// Package storage holds uploaded report and photo files behind a small
// key/value interface with local, S3 and GCS backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"smartcrm/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Backend stores opaque blobs under slash-separated keys such as
// "reports/12/<uuid>.pdf".
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.RootDir)
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// cleanKey rejects keys that would escape the backend root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.HasPrefix(k, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}
