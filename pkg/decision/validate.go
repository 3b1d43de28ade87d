package decision

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed metrics.schema.json
var metricsSchema string

const metricsSchemaURL = "https://golive.schemas.local/decision/metrics.schema.json"

var ErrInvalidMetrics = errors.New("decision: invalid metrics")

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(metricsSchemaURL, strings.NewReader(metricsSchema)); err != nil {
			compileErr = fmt.Errorf("decision: schema load failed: %w", err)
			return
		}
		compiled, compileErr = c.Compile(metricsSchemaURL)
	})
	return compiled, compileErr
}

// ValidateDocument checks a generic decoded document (as produced by
// json.Unmarshal) against the metrics schema. Presence of every core field
// is checked here, before any zero value can hide a missing field.
func ValidateDocument(doc any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
	}
	return nil
}

// Validate checks a typed record: schema constraints, extension names and a
// semantic-version schema_version.
func Validate(m Metrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
	}
	doc, err := decodeGeneric(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetrics, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return err
	}
	if _, err := semver.NewVersion(m.SchemaVersion); err != nil {
		return fmt.Errorf("%w: schema_version %q: %w", ErrInvalidMetrics, m.SchemaVersion, err)
	}
	return nil
}

func decodeGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
