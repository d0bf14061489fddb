package storage

import (
	"context"
	"io"
)

// ObjectStorage is the archive renamed exports are copied into.
type ObjectStorage interface {
	// EnsureBucket creates the bucket when the provider allows it
	EnsureBucket(ctx context.Context) error

	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// UploadFile uploads a local file under key
	UploadFile(ctx context.Context, key, localPath, contentType string) error
}
