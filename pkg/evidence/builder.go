package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

// maxNameAttempts bounds the search for a free manifest name within one day.
const maxNameAttempts = 1000

// Result describes one sealed manifest on disk.
type Result struct {
	ManifestPath string
	SealPath     string
	Seal         string
	Manifest     Manifest
}

// Builder produces sealed manifests.
type Builder struct {
	pattern   string
	outputDir string
	clock     func() time.Time
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithPattern sets the glob evidence filenames must match.
func WithPattern(pattern string) Option {
	return func(b *Builder) { b.pattern = pattern }
}

// WithOutputDir writes manifests somewhere other than the evidence dir.
func WithOutputDir(dir string) Option {
	return func(b *Builder) { b.outputDir = dir }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(b *Builder) { b.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder with the default pattern and clock.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		pattern: DefaultPattern,
		clock:   time.Now,
		logger:  slog.Default().With("component", "evidence"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build chains the evidence in dir, writes the manifest under a fresh
// date-qualified name and writes its seal sidecar. Either both files exist
// afterwards or neither does.
func (b *Builder) Build(ctx context.Context, dir string) (*Result, error) {
	chain, err := BuildChain(dir, b.pattern)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := b.clock().UTC()
	m := Manifest{
		GenerationTimestamp: now.Format(TimestampFormat),
		Chain:               chain,
	}
	data, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	seal := digest.Bytes(data)

	outDir := b.outputDir
	if outDir == "" {
		outDir = dir
	}
	manifestPath, err := writeExclusive(outDir, now, data)
	if err != nil {
		return nil, err
	}

	sealPath := SealPath(manifestPath)
	if err := writeNew(sealPath, []byte(seal)); err != nil {
		_ = os.Remove(manifestPath)
		return nil, fmt.Errorf("evidence: write seal: %w", err)
	}

	b.logger.InfoContext(ctx, "manifest sealed",
		"manifest", manifestPath,
		"entries", len(chain),
		"seal", seal,
	)

	return &Result{
		ManifestPath: manifestPath,
		SealPath:     sealPath,
		Seal:         seal,
		Manifest:     m,
	}, nil
}

// writeExclusive claims the first free manifest name of the day, skipping
// names whose seal sidecar already exists.
func writeExclusive(dir string, day time.Time, data []byte) (string, error) {
	for n := 1; n <= maxNameAttempts; n++ {
		path := filepath.Join(dir, ManifestName(day, n))
		if _, err := os.Stat(SealPath(path)); err == nil {
			continue
		}
		err := writeNew(path, data)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("evidence: write manifest: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("evidence: no free manifest name in %s for %s", dir, day.Format("2006-01-02"))
}

// writeNew creates path, failing if it exists, and removes it again on a
// short write.
func writeNew(path string, data []byte) error {
	//nolint:gosec // G302: manifests are meant to be world-readable evidence
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
