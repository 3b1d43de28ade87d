package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/golive/pkg/checklist"
)

// GateProfile is a named set of checklist gates.
type GateProfile struct {
	Name  string           `yaml:"name" json:"name"`
	Gates []checklist.Gate `yaml:"gates" json:"gates"`
}

// LoadGates reads a gate profile file. An empty path yields the default
// gates.
func LoadGates(path string) ([]checklist.Gate, error) {
	if path == "" {
		return checklist.DefaultGates(), nil
	}
	profile, err := readGateProfile(path)
	if err != nil {
		return nil, err
	}
	return profile.Gates, nil
}

// ResolveGates picks the gates for a run. With no profile, path is a gate
// file (or empty for the defaults). With a profile, path is the directory
// holding gates_<profile>.yaml.
func ResolveGates(path, profile string) ([]checklist.Gate, error) {
	if profile == "" {
		return LoadGates(path)
	}
	if path == "" {
		return nil, fmt.Errorf("gate profile %q needs a profiles directory", profile)
	}
	p, err := LoadGateProfile(path, profile)
	if err == nil {
		return p.Gates, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	all, lerr := LoadAllGateProfiles(path)
	if lerr != nil {
		return nil, lerr
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("gate profile %q not found in %s (available: %s)", profile, path, strings.Join(names, ", "))
}

// LoadGateProfile loads gates_<name>.yaml from profilesDir.
func LoadGateProfile(profilesDir, name string) (*GateProfile, error) {
	name = strings.ToLower(name)
	profile, err := readGateProfile(filepath.Join(profilesDir, fmt.Sprintf("gates_%s.yaml", name)))
	if err != nil {
		return nil, err
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return profile, nil
}

// LoadAllGateProfiles loads every gates_*.yaml file in profilesDir.
func LoadAllGateProfiles(profilesDir string) (map[string]*GateProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "gates_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*GateProfile, len(matches))
	for _, path := range matches {
		profile, err := readGateProfile(path)
		if err != nil {
			return nil, err
		}
		if profile.Name == "" {
			// gates_web.yaml -> web
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "gates_"), ".yaml")
		}
		profiles[profile.Name] = profile
	}
	return profiles, nil
}

func readGateProfile(path string) (*GateProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied profile
	if err != nil {
		return nil, fmt.Errorf("load gate profile: %w", err)
	}

	var profile GateProfile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("parse gate profile %s: %w", path, err)
	}
	if err := validateGates(profile.Gates); err != nil {
		return nil, fmt.Errorf("gate profile %s: %w", path, err)
	}
	return &profile, nil
}

func validateGates(gates []checklist.Gate) error {
	if len(gates) == 0 {
		return fmt.Errorf("no gates defined")
	}
	seen := make(map[string]bool, len(gates))
	var dupes []string
	for _, g := range gates {
		if g.Name == "" || g.Expression == "" {
			return fmt.Errorf("gate needs a name and an expression")
		}
		if seen[g.Name] {
			dupes = append(dupes, g.Name)
		}
		seen[g.Name] = true
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return fmt.Errorf("duplicate gate names: %s", strings.Join(dupes, ", "))
	}
	return nil
}
