package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// epoch is the earliest timestamp a zip header can express. Every packed
// entry carries it.
var epoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// PackResult describes a packed bundle.
type PackResult struct {
	Path   string   `json:"path"`
	Files  []string `json:"files"`
	Digest string   `json:"digest"`
}

type packOptions struct {
	pattern string
	modTime time.Time
}

// PackOption configures Pack.
type PackOption func(*packOptions)

// WithPackPattern restricts the bundle to files matching a glob.
func WithPackPattern(pattern string) PackOption {
	return func(o *packOptions) { o.pattern = pattern }
}

// WithModTime stamps entries with t instead of the fixed epoch.
func WithModTime(t time.Time) PackOption {
	return func(o *packOptions) { o.modTime = t }
}

// Pack writes every regular file in srcDir (non-recursive, symlinks followed) to a zip at
// outPath with sorted names, fixed timestamps and fixed modes. The archive is
// written to a temporary file and renamed into place.
func Pack(srcDir, outPath string, opts ...PackOption) (*PackResult, error) {
	o := packOptions{pattern: "*", modTime: epoch}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := filepath.Match(o.pattern, ""); err != nil {
		return nil, fmt.Errorf("archive: invalid pattern %q: %w", o.pattern, err)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, srcDir, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, srcDir, err)
	}

	outAbs, _ := filepath.Abs(outPath)
	var names []string
	for _, de := range entries {
		if ok, _ := filepath.Match(o.pattern, de.Name()); !ok {
			continue
		}
		if de.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(srcDir, de.Name()))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrIO, de.Name(), err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
		} else if !de.Type().IsRegular() {
			continue
		}
		if abs, _ := filepath.Abs(filepath.Join(srcDir, de.Name())); abs == outAbs {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".bundle-*.zip")
	if err != nil {
		return nil, fmt.Errorf("archive: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, name := range names {
		if err := writeEntry(zw, srcDir, name, o.modTime); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("archive: finish zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("archive: close zip: %w", err)
	}
	//nolint:gosec // G302: bundles are public evidence
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return nil, fmt.Errorf("archive: chmod zip: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, fmt.Errorf("archive: commit zip: %w", err)
	}
	committed = true

	sum, err := Digest(outPath)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return &PackResult{Path: outPath, Files: names, Digest: sum}, nil
}

func writeEntry(zw *zip.Writer, dir, name string, modTime time.Time) error {
	data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // listed from dir
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, name, err)
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
	}
	hdr.SetMode(0o644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive: header %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive: write %s: %w", name, err)
	}
	return nil
}
