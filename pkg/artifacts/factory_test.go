package artifacts

import (
	"context"
	"strings"
	"testing"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

func TestNewStore_DefaultFS(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(context.Background(), config.ArtifactConfig{Dir: tmpDir})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	fs, ok := store.(*FileStore)
	if !ok {
		t.Fatalf("Expected *FileStore, got %T", store)
	}
	if fs.baseDir != tmpDir {
		t.Errorf("Expected baseDir %s, got %s", tmpDir, fs.baseDir)
	}
}

func TestNewStore_S3MissingBucket(t *testing.T) {
	_, err := NewStore(context.Background(), config.ArtifactConfig{Type: "s3"})
	if err == nil {
		t.Fatal("Expected error for missing S3 bucket")
	}
	if !strings.Contains(err.Error(), "GOLIVE_ARTIFACT_S3_BUCKET is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewStore_Unsupported(t *testing.T) {
	_, err := NewStore(context.Background(), config.ArtifactConfig{Type: "ftp"})
	if err == nil || !strings.Contains(err.Error(), "unsupported artifact storage type") {
		t.Fatalf("unexpected error: %v", err)
	}
}
