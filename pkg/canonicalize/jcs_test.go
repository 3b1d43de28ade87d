package canonicalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{
		"sla_breach_count": 0,
		"alert_per_hour":   2,
		"policy_hash":      "def456",
	}
	expected := `{"alert_per_hour":2,"policy_hash":"def456","sla_breach_count":0}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}
	expected := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<script>alert('xss')</script> &",
	}
	// encoding/json alone would emit < and &.
	expected := `{"html":"<script>alert('xss')</script> &"}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_Numbers(t *testing.T) {
	input := map[string]any{
		"false_positive_rate": 3.2,
		"count":               json.Number("10"),
		"big":                 1e21,
		"whole":               2.0,
	}
	expected := `{"big":1e+21,"count":10,"false_positive_rate":3.2,"whole":2}`

	b, err := JCS(input)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RejectsNaN(t *testing.T) {
	if _, err := JCS(map[string]float64{"x": math.NaN()}); err == nil {
		t.Fatal("expected error for NaN")
	}
}

func TestCanonicalHash_Stability(t *testing.T) {
	v1 := map[string]any{"a": 1, "b": 2}

	type S struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	v2 := S{A: 1, B: 2}

	h1, err := CanonicalHash(v1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := CanonicalHash(v2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("Hash mismatch for semantically identical inputs: %s != %s", h1, h2)
	}
	if h1 != digest.Bytes([]byte(`{"a":1,"b":2}`)) {
		t.Errorf("unexpected hash %s", h1)
	}
}

func TestTransform_InvalidJSON(t *testing.T) {
	if _, err := Transform([]byte(`{"a":`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
