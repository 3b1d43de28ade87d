// Package decision hashes the metrics record a go-live decision is made on.
//
// The record is supplied by the caller, validated against a JSON Schema,
// canonicalized with RFC 8785 and digested. Two parties holding the same
// metrics compute the same decision hash regardless of key order or number
// formatting in their source files.
package decision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Metrics is the input of a go-live decision. Extensions carries the extra
// fields of variants such as "web" (scalars, or one level of scalar-valued
// objects); they are flattened into the top-level object when serialized.
type Metrics struct {
	PolicyHash             string         `json:"policy_hash" yaml:"policy_hash"`
	SnapshotHash           string         `json:"snapshot_hash" yaml:"snapshot_hash"`
	FalsePositiveRate      float64        `json:"false_positive_rate" yaml:"false_positive_rate"`
	SLABreachCount         int            `json:"sla_breach_count" yaml:"sla_breach_count"`
	AlertPerHour           float64        `json:"alert_per_hour" yaml:"alert_per_hour"`
	AttackSimulationPassed bool           `json:"attack_simulation_passed" yaml:"attack_simulation_passed"`
	SchemaVersion          string         `json:"schema_version" yaml:"schema_version"`
	Extensions             map[string]any `json:"-" yaml:",inline"`
}

var coreFields = map[string]bool{
	"policy_hash":              true,
	"snapshot_hash":            true,
	"false_positive_rate":      true,
	"sla_breach_count":         true,
	"alert_per_hour":           true,
	"attack_simulation_passed": true,
	"schema_version":           true,
}

// Fields returns the flattened record as a generic map.
func (m Metrics) Fields() (map[string]any, error) {
	out := map[string]any{
		"policy_hash":              m.PolicyHash,
		"snapshot_hash":            m.SnapshotHash,
		"false_positive_rate":      m.FalsePositiveRate,
		"sla_breach_count":         m.SLABreachCount,
		"alert_per_hour":           m.AlertPerHour,
		"attack_simulation_passed": m.AttackSimulationPassed,
		"schema_version":           m.SchemaVersion,
	}
	for k, v := range m.Extensions {
		if coreFields[k] {
			return nil, fmt.Errorf("decision: extension %q shadows a core field", k)
		}
		out[k] = v
	}
	return out, nil
}

// ExtensionNames lists extension keys in sorted order.
func (m Metrics) ExtensionNames() []string {
	names := make([]string, 0, len(m.Extensions))
	for k := range m.Extensions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON flattens extensions into the top-level object.
func (m Metrics) MarshalJSON() ([]byte, error) {
	fields, err := m.Fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalJSON fills core fields and collects every other key as an
// extension. Extension numbers are kept as json.Number.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type core Metrics
	var c core
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if coreFields[k] {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decision: extension %q: %w", k, err)
		}
		if c.Extensions == nil {
			c.Extensions = make(map[string]any)
		}
		c.Extensions[k] = v
	}

	*m = Metrics(c)
	return nil
}
