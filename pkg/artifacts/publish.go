package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Mindburn-Labs/golive/pkg/canonicalize"
)

// Published is one file stored by Publish.
type Published struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Size    int    `json:"size"`
}

// PublishResult lists the stored files and the address of their index.
type PublishResult struct {
	Artifacts []Published `json:"artifacts"`
	// Index is the address of the canonical JSON list of Artifacts.
	Index string `json:"index"`
}

// Publish stores each file and then an index document naming them. Base
// names must be unique. Files are stored in name order.
func Publish(ctx context.Context, s Store, paths ...string) (*PublishResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("artifacts: nothing to publish")
	}

	byName := make(map[string]string, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		if prev, dup := byName[name]; dup {
			return nil, fmt.Errorf("artifacts: %s and %s share the name %s", prev, p, name)
		}
		byName[name] = p
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &PublishResult{Artifacts: make([]Published, 0, len(names))}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(byName[name]) //nolint:gosec // operator-chosen files
		if err != nil {
			return nil, fmt.Errorf("artifacts: read %s: %w", byName[name], err)
		}
		addr, err := s.Store(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("artifacts: store %s: %w", name, err)
		}
		result.Artifacts = append(result.Artifacts, Published{Name: name, Address: addr, Size: len(data)})
	}

	index, err := canonicalize.JCS(result.Artifacts)
	if err != nil {
		return nil, err
	}
	result.Index, err = s.Store(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("artifacts: store index: %w", err)
	}
	// Read the index back so a store that accepted but mangled it fails here.
	if _, err := LoadIndex(ctx, s, result.Index); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadIndex fetches and decodes an index written by Publish.
func LoadIndex(ctx context.Context, s Store, address string) ([]Published, error) {
	data, err := GetVerified(ctx, s, address)
	if err != nil {
		return nil, fmt.Errorf("artifacts: read index: %w", err)
	}
	var index []Published
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("artifacts: decode index %s: %w", address, err)
	}
	return index, nil
}
