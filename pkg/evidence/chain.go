// Package evidence builds the daily evidence manifest: a hash chain over the
// evidence log files of one directory, sealed by the digest of its own
// serialized form.
//
// A chain is linked by content digest. Entry i carries the digest of entry
// i-1 as prev_digest; the first entry carries null. Reordering, removing or
// editing any evidence file changes every following link, and the seal
// sidecar detects any edit to the manifest file itself.
package evidence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

// DefaultPattern selects evidence files when no pattern is configured.
const DefaultPattern = "*.log"

var (
	ErrNotFound          = errors.New("evidence: directory not found")
	ErrDuplicateFilename = errors.New("evidence: duplicate filename")
	ErrBadPattern        = errors.New("evidence: invalid file pattern")
)

// Entry is one link of the chain.
type Entry struct {
	Filename   string  `json:"filename"`
	Digest     string  `json:"digest"`
	PrevDigest *string `json:"prev_digest"`
}

// BuildChain digests every file in dir matching pattern, in byte-wise
// filename order, and links the results. An empty match set yields an empty,
// non-nil chain.
func BuildChain(dir, pattern string) ([]Entry, error) {
	names, err := discover(dir, pattern)
	if err != nil {
		return nil, err
	}

	chain := make([]Entry, 0, len(names))
	var prev *string
	for _, name := range names {
		sum, err := digest.File(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("evidence: digest %s: %w", name, err)
		}
		chain = append(chain, Entry{Filename: name, Digest: sum, PrevDigest: prev})
		link := sum
		prev = &link
	}
	return chain, nil
}

// VerifyLinks checks that every entry points at its predecessor's digest.
// It returns the index of the first broken link, or -1.
func VerifyLinks(chain []Entry) int {
	for i, e := range chain {
		if i == 0 {
			if e.PrevDigest != nil {
				return 0
			}
			continue
		}
		if e.PrevDigest == nil || *e.PrevDigest != chain[i-1].Digest {
			return i
		}
	}
	return -1
}

func discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("evidence: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("evidence: read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, de := range entries {
		name := de.Name()
		if ok, _ := filepath.Match(pattern, name); !ok {
			continue
		}
		regular, err := isRegular(dir, de)
		if err != nil {
			return nil, fmt.Errorf("evidence: stat %s: %w", name, err)
		}
		if !regular {
			continue
		}
		key := norm.NFC.String(name)
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q and %q normalize to the same name", ErrDuplicateFilename, other, name)
		}
		seen[key] = name
		names = append(names, name)
	}
	// os.ReadDir already sorts, but the chain order is a contract.
	sort.Strings(names)
	return names, nil
}

// isRegular reports whether de is a regular file or a symlink to one.
// A dangling symlink is an error: it names evidence that cannot be read.
func isRegular(dir string, de fs.DirEntry) (bool, error) {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.Type().IsRegular(), nil
	}
	info, err := os.Stat(filepath.Join(dir, de.Name()))
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
