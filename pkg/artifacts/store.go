// Package artifacts publishes sealed evidence to content-addressed storage.
//
// Every blob is addressed by "sha256:<hex>" of its bytes, so a manifest, its
// seal and the evidence bundle can be fetched later and checked against the
// address they were published under.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

var (
	ErrNotFound       = errors.New("artifacts: not found")
	ErrInvalidAddress = errors.New("artifacts: invalid address")
	ErrCorrupt        = errors.New("artifacts: content does not match address")
)

const addressPrefix = "sha256:"

// Store defines the contract for Content-Addressed Storage (CAS) of
// published evidence. Blobs are write-once; there is no delete.
type Store interface {
	// Store persists data and returns its address. Storing the same bytes
	// twice is a no-op.
	Store(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by address.
	Get(ctx context.Context, address string) ([]byte, error)
	// Exists reports whether an address is present.
	Exists(ctx context.Context, address string) (bool, error)
}

// Address returns the CAS address of data.
func Address(data []byte) string {
	return addressPrefix + digest.Bytes(data)
}

// parseAddress returns the hex part of a "sha256:" address.
func parseAddress(address string) (string, error) {
	raw, ok := strings.CutPrefix(address, addressPrefix)
	if !ok || !digest.IsHex(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return raw, nil
}

// GetVerified fetches address and checks the bytes against it.
func GetVerified(ctx context.Context, s Store, address string) ([]byte, error) {
	data, err := s.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if got := Address(data); got != address {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrCorrupt, address, got)
	}
	return data, nil
}

// FileStore is a filesystem-backed implementation of Store.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a new CAS store at the specified directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: 0755 is intentional for shared artifact directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) blobPath(raw string) string {
	return filepath.Join(s.baseDir, raw+".blob")
}

func (s *FileStore) Store(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address := Address(data)
	path := s.blobPath(strings.TrimPrefix(address, addressPrefix))

	if _, err := os.Stat(path); err == nil {
		return address, nil
	}

	// Write to temp, then rename
	tmp, err := os.CreateTemp(s.baseDir, ".blob-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	//nolint:gosec // G302: 0644 is intentional for readable blob files
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return address, nil
}

func (s *FileStore) Get(_ context.Context, address string) ([]byte, error) {
	raw, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.blobPath(raw)) //nolint:gosec // address validated as hex
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
		}
		return nil, fmt.Errorf("artifacts: read %s: %w", address, err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, address string) (bool, error) {
	raw, err := parseAddress(address)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.blobPath(raw))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("artifacts: stat %s: %w", address, err)
}
