package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestampFormat is the generation timestamp layout (UTC, ISO-8601).
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

const (
	manifestPrefix = "daily_manifest_"
	manifestSuffix = ".json"
	sealSuffix     = ".sha256"
)

// Manifest is the persisted record of one chain.
type Manifest struct {
	GenerationTimestamp string  `json:"generation_timestamp"`
	Chain               []Entry `json:"chain"`
}

// Marshal serializes m deterministically: fixed field order, two-space
// indent, no HTML escaping, trailing newline. The seal is computed over
// exactly these bytes.
func Marshal(m Manifest) ([]byte, error) {
	if m.Chain == nil {
		m.Chain = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("evidence: marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a manifest previously written by Marshal.
func Unmarshal(data []byte) (Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("evidence: parse manifest: %w", err)
	}
	return m, nil
}

// SealPath derives the seal sidecar name from a manifest path.
func SealPath(manifestPath string) string {
	return strings.TrimSuffix(manifestPath, manifestSuffix) + sealSuffix
}

// ManifestName returns the n-th candidate manifest filename for a day.
// n <= 1 yields the plain date-qualified name.
func ManifestName(day time.Time, n int) string {
	date := day.UTC().Format("2006-01-02")
	if n <= 1 {
		return manifestPrefix + date + manifestSuffix
	}
	return fmt.Sprintf("%s%s_%d%s", manifestPrefix, date, n, manifestSuffix)
}

// IsManifestName reports whether name looks like a generated manifest.
func IsManifestName(name string) bool {
	return strings.HasPrefix(name, manifestPrefix) && strings.HasSuffix(name, manifestSuffix)
}

// splitManifestName returns the date part and collision counter of a
// manifest name; the plain name counts as 1.
func splitManifestName(name string) (string, int) {
	rest := strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), manifestSuffix)
	date, counter, found := strings.Cut(rest, "_")
	if !found {
		return date, 1
	}
	n, err := strconv.Atoi(counter)
	if err != nil {
		return rest, 0
	}
	return date, n
}

// LatestManifest returns the path of the most recently modified manifest in
// dir, or "" when there is none.
func LatestManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("evidence: read dir %s: %w", dir, err)
	}

	type candidate struct {
		name string
		mod  time.Time
	}
	var found []candidate
	for _, de := range entries {
		if !de.Type().IsRegular() || !IsManifestName(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{name: de.Name(), mod: info.ModTime()})
	}
	if len(found) == 0 {
		return "", nil
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].mod.Equal(found[j].mod) {
			return found[i].mod.After(found[j].mod)
		}
		di, ni := splitManifestName(found[i].name)
		dj, nj := splitManifestName(found[j].name)
		if di != dj {
			return di > dj
		}
		return ni > nj
	})
	return filepath.Join(dir, found[0].name), nil
}
