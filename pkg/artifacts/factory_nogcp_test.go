//go:build !gcp

package artifacts

import (
	"context"
	"testing"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

func TestNewStore_GCSWithoutBuildTag(t *testing.T) {
	_, err := NewStore(context.Background(), config.ArtifactConfig{Type: "gcs", GCSBucket: "b"})
	if err == nil {
		t.Fatal("Expected error for GCS without the gcp build tag or credentials")
	}
}
