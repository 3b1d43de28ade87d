//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStore implements Store using Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string // Optional key prefix (e.g., "golive/")
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSStore creates a new GCS-backed artifact store.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	// Uses application default credentials.
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *GCSStore) object(raw string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + raw + ".blob")
}

// Store uploads data with a DoesNotExist precondition, so an existing blob
// is never rewritten.
func (s *GCSStore) Store(ctx context.Context, data []byte) (string, error) {
	address := Address(data)
	obj := s.object(strings.TrimPrefix(address, addressPrefix))

	if _, err := obj.Attrs(ctx); err == nil {
		return address, nil
	}

	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{"golive-address": address}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return address, nil
}

// Get retrieves data from GCS by address.
func (s *GCSStore) Get(ctx context.Context, address string) ([]byte, error) {
	raw, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	reader, err := s.object(raw).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", address, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

// Exists checks if an artifact exists in GCS.
func (s *GCSStore) Exists(ctx context.Context, address string) (bool, error) {
	raw, err := parseAddress(address)
	if err != nil {
		return false, err
	}

	_, err = s.object(raw).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs error: %w", err)
	}
	return true, nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
