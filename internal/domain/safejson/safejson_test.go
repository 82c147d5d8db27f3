package safejson

import (
	"testing"
)

func TestCanonicalizeSortsObjectKeys(t *testing.T) {
	a, err := Canonicalize(map[string]interface{}{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(a) != `{"a":2,"b":1}` {
		t.Fatalf("expected sorted keys, got %s", a)
	}
}

func TestCanonicalizeIsKeyOrderInvariant(t *testing.T) {
	a, err := Canonicalize(map[string]interface{}{"weight_kg": 620, "breed": "holstein"})
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	b, err := Canonicalize(map[string]interface{}{"breed": "holstein", "weight_kg": 620})
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected identical canonical forms, got %s vs %s", a, b)
	}
}

func TestCanonicalizeNormalizesIntAndFloatToTheSameRepresentation(t *testing.T) {
	a, err := Canonicalize(map[string]interface{}{"n": 1})
	if err != nil {
		t.Fatalf("canonicalize int: %v", err)
	}
	b, err := Canonicalize(map[string]interface{}{"n": 1.0})
	if err != nil {
		t.Fatalf("canonicalize float: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected 1 and 1.0 to canonicalize identically, got %s vs %s", a, b)
	}
}

func TestCanonicalizeRecursesIntoNestedObjectsAndArrays(t *testing.T) {
	out, err := Canonicalize(map[string]interface{}{
		"tags": []interface{}{"z", "a"},
		"nested": map[string]interface{}{
			"z": 1,
			"a": 2,
		},
	})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(out) != `{"nested":{"a":2,"z":1},"tags":["z","a"]}` {
		t.Fatalf("unexpected canonical form: %s", out)
	}
}

func TestSafeIntRendersWithinRangeAsNumber(t *testing.T) {
	v := SafeInt(42)
	if n, ok := v.(int64); !ok || n != 42 {
		t.Fatalf("expected int64(42), got %#v", v)
	}
}

func TestSafeIntRendersOutOfRangeAsString(t *testing.T) {
	v := SafeInt(JSSafeMaxInt + 1)
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected a string for an unsafe integer, got %#v", v)
	}
	if s != "9007199254740992" {
		t.Fatalf("unexpected string form: %s", s)
	}
}

func TestIsSafeFloatRejectsNonIntegerValuedFloats(t *testing.T) {
	if IsSafeFloat(1.5) {
		t.Fatal("expected a non-integer-valued float to be unsafe")
	}
	if !IsSafeFloat(42.0) {
		t.Fatal("expected an integer-valued float within range to be safe")
	}
	if IsSafeFloat(float64(JSSafeMaxInt) + 2) {
		t.Fatal("expected a value beyond the safe range to be unsafe")
	}
}
