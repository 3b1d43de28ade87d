package decision

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/golive/pkg/canonicalize"
	"github.com/Mindburn-Labs/golive/pkg/digest"
)

// Canonical returns the RFC 8785 form of a validated record.
func Canonical(m Metrics) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	return canonicalize.JCS(m)
}

// Hash validates m and returns the digest of its canonical form.
func Hash(m Metrics) (string, error) {
	b, err := Canonical(m)
	if err != nil {
		return "", err
	}
	return digest.Bytes(b), nil
}

// Load reads a metrics record from a .json, .yaml or .yml file and
// validates it.
func Load(path string) (Metrics, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied metrics file
	if err != nil {
		return Metrics{}, fmt.Errorf("decision: read metrics: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data, true)
	default:
		return Parse(data, false)
	}
}

// Parse decodes and validates a metrics document.
func Parse(data []byte, isYAML bool) (Metrics, error) {
	if isYAML {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return Metrics{}, fmt.Errorf("%w: parse yaml: %w", ErrInvalidMetrics, err)
		}
		// Normalize YAML scalars through JSON so the schema sees JSON types.
		var err error
		data, err = json.Marshal(generic)
		if err != nil {
			return Metrics{}, fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
		}
	}

	doc, err := decodeGeneric(data)
	if err != nil {
		return Metrics{}, fmt.Errorf("%w: parse json: %w", ErrInvalidMetrics, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return Metrics{}, err
	}

	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return Metrics{}, fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
	}
	if err := Validate(m); err != nil {
		return Metrics{}, err
	}
	return m, nil
}
