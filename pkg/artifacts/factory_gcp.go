//go:build gcp

package artifacts

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

func newGCSStore(ctx context.Context, cfg config.ArtifactConfig) (Store, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GOLIVE_ARTIFACT_GCS_BUCKET is required for GCS storage")
	}
	return NewGCSStore(ctx, GCSStoreConfig{
		Bucket: cfg.GCSBucket,
		Prefix: cfg.GCSPrefix,
	})
}
