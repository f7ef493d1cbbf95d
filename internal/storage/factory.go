package storage

import (
	"strings"

	"github.com/timmy/matchsync/internal/config"
)

// NewArchiveStore creates the object store behind the payload archive.
// Parameters:
//   - cfg: archive configuration.
// Returns:
//   - *S3Store: initialized client, or nil when archiving is disabled.
//   - error: non-nil if the client cannot be created.
func NewArchiveStore(cfg *config.ArchiveConfig) (*S3Store, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return NewS3Store(&S3Config{
		Provider:  detectProvider(cfg.Endpoint),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
}

// detectProvider guesses the S3 flavour from the endpoint
func detectProvider(endpoint string) Provider {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "":
		return ProviderS3
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return ProviderR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return ProviderS3
	default:
		return ProviderS3Compatible
	}
}
