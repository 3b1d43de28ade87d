package artifacts

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

// StoreType represents the type of artifact storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// NewStore creates the artifact store selected by cfg.Type: "fs" (default),
// "s3", or "gcs" (only in builds with -tags gcp).
func NewStore(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	storeType := StoreType(cfg.Type)
	if storeType == "" {
		storeType = StoreTypeFS
	}

	switch storeType {
	case StoreTypeFS:
		dir := cfg.Dir
		if dir == "" {
			dir = "data/artifacts"
		}
		return NewFileStore(dir)
	case StoreTypeS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("GOLIVE_ARTIFACT_S3_BUCKET is required for S3 storage")
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case StoreTypeGCS:
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", storeType)
	}
}
