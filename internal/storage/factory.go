package storage

import (
	"strings"

	"github.com/timmy/orisweep/internal/config"
)

// NewStorage creates the export archive from configuration.
// Parameters:
//   - cfg: archive configuration including endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized storage client.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *config.ArchiveConfig) (ObjectStorage, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	s, err := NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// detectStorageType guesses the provider from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return StorageTypeS3
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
