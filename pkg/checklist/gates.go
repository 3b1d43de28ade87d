package checklist

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Gate is a named CEL expression over the decision metrics. The metrics
// record is bound to the variable "metrics".
type Gate struct {
	Name        string `yaml:"name" json:"name"`
	Expression  string `yaml:"expression" json:"expression"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// DefaultGates mirrors the metric items of the go-live checklist.
func DefaultGates() []Gate {
	return []Gate{
		{Name: "sla_breach_recorded", Expression: "metrics.sla_breach_count == 0", Description: "no SLA breach recorded"},
		{Name: "false_positive_rate", Expression: "metrics.false_positive_rate <= 5.0", Description: "false positive rate at most 5%"},
		{Name: "alert_per_hour", Expression: "metrics.alert_per_hour <= 10.0", Description: "at most 10 alerts per hour"},
		{Name: "attack_simulation_passed", Expression: "metrics.attack_simulation_passed", Description: "attack simulation defended"},
	}
}

// GateEngine compiles and evaluates gate expressions, caching programs by
// expression text.
type GateEngine struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func NewGateEngine() (*GateEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &GateEngine{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile checks that expression compiles to a boolean program.
func (e *GateEngine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *GateEngine) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[expression]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.cache[expression]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	switch out := ast.OutputType().String(); out {
	case "bool", "dyn":
	default:
		return nil, fmt.Errorf("CEL expression %q yields %s, want bool", expression, out)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	e.cache[expression] = prg
	return prg, nil
}

// Evaluate runs expression against metrics.
func (e *GateEngine) Evaluate(expression string, metrics map[string]any) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{"metrics": celValues(metrics)})
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}
	passed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not boolean")
	}
	return passed, nil
}

// celValues converts json.Number extension values to int64 or float64.
func celValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = celValue(v)
	}
	return out
}

func celValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return celValues(t)
	default:
		return v
	}
}
