package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"lab-report-access/internal/blob"
	"lab-report-access/internal/config"
)

// NewBackend selects the blob backend from config. The memory store is also
// returned so the caller can serve its URLs; it is nil for minio.
func NewBackend(cfg config.Config, logger zerolog.Logger) (blob.Backend, *blob.MemoryStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendMinio:
		store, err := NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket, cfg.MinioPresignExpiry, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect minio: %w", err)
		}
		return store, nil, nil
	case config.BlobBackendMemory, "":
		mem := blob.NewMemoryStore(cfg.BlobPublicBaseURL)
		return mem, mem, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
