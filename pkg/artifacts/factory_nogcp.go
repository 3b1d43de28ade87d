//go:build !gcp

package artifacts

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

func newGCSStore(_ context.Context, _ config.ArtifactConfig) (Store, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
