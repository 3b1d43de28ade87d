// Package digest is the single hashing primitive used across golive.
//
// Every digest is the lowercase hex SHA-256 of raw bytes. Files and zip
// entries are streamed through Reader.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Size is the length of a hex-encoded digest.
const Size = sha256.Size * 2

var (
	ErrNotFound = errors.New("digest: not found")
	ErrIO       = errors.New("digest: read failed")
)

// Bytes returns the hex SHA-256 of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// File reads path and returns the digest of its content.
func File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // caller-chosen evidence path
	if err != nil {
		return "", classify(path, err)
	}
	defer func() { _ = f.Close() }()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return sum, nil
}

// Reader digests everything readable from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHex reports whether s is a well-formed digest as produced by Bytes.
func IsHex(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
}
