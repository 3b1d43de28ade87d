// Package archive computes canonical digests of zip archives and packs
// evidence directories into reproducible zips.
//
// The canonical digest covers entry content only. Entry names fix the
// order, and every other piece of per-entry metadata (modification time,
// mode, comment, compression method) is ignored, so repacking the same files
// at a different time yields the same digest.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

// MaxEntryBytes caps the decompressed size of any single entry.
const MaxEntryBytes int64 = 1 << 30

var (
	ErrNotFound = errors.New("archive: not found")
	ErrCorrupt  = errors.New("archive: corrupt archive")
	ErrIO       = errors.New("archive: read failed")
)

// Digest returns the canonical content digest of the zip at path.
func Digest(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", classifyOpen(path, err)
	}
	defer func() { _ = r.Close() }()

	return digestFiles(r.File)
}

// DigestReader is Digest for an archive already in memory or on another
// medium.
func DigestReader(ra io.ReaderAt, size int64) (string, error) {
	r, err := zip.NewReader(ra, size)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return digestFiles(r.File)
}

func digestFiles(files []*zip.File) (string, error) {
	sorted := make([]*zip.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	s := &entryStream{files: sorted}
	defer s.closeEntry()
	sum, err := digest.Reader(s)
	if s.err != nil {
		return "", s.err
	}
	if err != nil {
		return "", err
	}
	return sum, nil
}

// entryStream reads the content of files back to back, skipping
// directories. Failures are classified as ErrCorrupt and kept in err.
type entryStream struct {
	files []*zip.File
	cur   io.ReadCloser
	name  string
	n     int64
	err   error
}

func (s *entryStream) Read(p []byte) (int, error) {
	for {
		if s.err != nil {
			return 0, s.err
		}
		if s.cur == nil {
			if len(s.files) == 0 {
				return 0, io.EOF
			}
			f := s.files[0]
			s.files = s.files[1:]
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				s.err = fmt.Errorf("%w: open %s: %w", ErrCorrupt, f.Name, err)
				continue
			}
			s.cur, s.name, s.n = rc, f.Name, 0
		}

		if left := MaxEntryBytes + 1 - s.n; int64(len(p)) > left {
			p = p[:left]
		}
		n, err := s.cur.Read(p)
		s.n += int64(n)
		switch {
		case s.n > MaxEntryBytes:
			s.closeEntry()
			s.err = fmt.Errorf("%w: entry %s exceeds %d bytes", ErrCorrupt, s.name, MaxEntryBytes)
			return 0, s.err
		case errors.Is(err, io.EOF):
			s.closeEntry()
			if n > 0 {
				return n, nil
			}
		case err != nil:
			s.closeEntry()
			s.err = fmt.Errorf("%w: read %s: %w", ErrCorrupt, s.name, err)
			return 0, s.err
		default:
			return n, nil
		}
	}
}

func (s *entryStream) closeEntry() {
	if s.cur != nil {
		_ = s.cur.Close()
		s.cur = nil
	}
}

func classifyOpen(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	case errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrAlgorithm), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
}

// DigestPath derives the digest sidecar name for an archive by replacing
// its extension: evidence_bundle.zip -> evidence_bundle.sha256.
func DigestPath(archivePath string) string {
	return strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + ".sha256"
}

// WriteDigestFile records a digest in a sidecar file.
func WriteDigestFile(path, sum string) error {
	if !digest.IsHex(sum) {
		return fmt.Errorf("archive: refusing to record malformed digest %q", sum)
	}
	//nolint:gosec // G306: digest files are public evidence
	if err := os.WriteFile(path, []byte(sum), 0o644); err != nil {
		return fmt.Errorf("archive: write digest file: %w", err)
	}
	return nil
}

// ReadDigestFile reads a digest recorded by WriteDigestFile or by any tool
// that writes the bare hex digest, tolerating surrounding whitespace.
func ReadDigestFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-chosen path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// CompareDigestFiles reports whether two recorded digest files agree.
func CompareDigestFiles(a, b string) (bool, error) {
	da, err := ReadDigestFile(a)
	if err != nil {
		return false, err
	}
	db, err := ReadDigestFile(b)
	if err != nil {
		return false, err
	}
	return da != "" && da == db, nil
}
