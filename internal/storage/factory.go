package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/jobimport/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage section of the application config.
// Returns:
//   - ObjectStorage: initialized storage, or nil when storage is disabled.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStorage(), nil
	}

	s3cfg := &S3Config{
		Type:      StorageType(strings.ToLower(cfg.Type)),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	}
	if s3cfg.Type == "auto" {
		s3cfg.Type = detectStorageType(cfg.Endpoint)
	}
	switch s3cfg.Type {
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	return NewS3Storage(s3cfg)
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
