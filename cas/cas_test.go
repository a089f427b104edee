package cas

import (
	"encoding/hex"
	"testing"

	"hintgraph/tree"
)

func TestNowMs(t *testing.T) {
	// Year 2024 in milliseconds is approximately 1704067200000
	ts := NowMs()
	if ts < 1704067200000 {
		t.Errorf("NowMs() returned %d, expected timestamp after 2024", ts)
	}
}

func TestKey_EqualTrees(t *testing.T) {
	a := tree.New(tree.Module, "", tree.New(tree.Assign, "", tree.Name("x"), tree.Int(1)))
	b := tree.New(tree.Module, "", tree.New(tree.Assign, "", tree.Name("x"), tree.Int(1)))

	if Key(a) != Key(b) {
		t.Error("equal trees should have equal keys")
	}
	if len(Key(a)) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Key(a)))
	}
}

func TestKey_DistinctTrees(t *testing.T) {
	a := tree.New(tree.Module, "", tree.New(tree.Assign, "", tree.Name("x"), tree.Int(1)))
	b := tree.New(tree.Module, "", tree.New(tree.Assign, "", tree.Name("x"), tree.Int(2)))

	if Key(a) == Key(b) {
		t.Error("different trees should have different keys")
	}
	if Key(a) == EmptyKey() {
		t.Error("non-empty tree collides with empty key")
	}
}

func TestKey_ReservedKeysNotHex(t *testing.T) {
	for _, k := range []string{StartKey, EndKey} {
		if _, err := hex.DecodeString(k); err == nil {
			t.Errorf("reserved key %q decodes as hex", k)
		}
	}
}

func TestCanonicalJSON_SimpleObject(t *testing.T) {
	input := map[string]interface{}{
		"z": 1,
		"a": 2,
		"m": 3,
	}

	result, err := CanonicalJSON(input)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	expected := `{"a":2,"m":3,"z":1}`
	if string(result) != expected {
		t.Errorf("expected %s, got %s", expected, string(result))
	}
}

func TestCanonicalJSON_NestedStruct(t *testing.T) {
	type inner struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	input := struct {
		Z inner   `json:"z"`
		L []inner `json:"l"`
	}{Z: inner{B: 1, A: 2}, L: []inner{{B: 3, A: 4}}}

	result, err := CanonicalJSON(input)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	expected := `{"l":[{"a":4,"b":3}],"z":{"a":2,"b":1}}`
	if string(result) != expected {
		t.Errorf("expected %s, got %s", expected, string(result))
	}
}

func TestCanonicalJSON_EmptyStructures(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected string
	}{
		{map[string]interface{}{}, "{}"},
		{[]interface{}{}, "[]"},
		{nil, "null"},
	}

	for _, tt := range tests {
		result, err := CanonicalJSON(tt.input)
		if err != nil {
			t.Fatalf("CanonicalJSON(%v) failed: %v", tt.input, err)
		}
		if string(result) != tt.expected {
			t.Errorf("CanonicalJSON(%v) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestChecksum_OrderIndependent(t *testing.T) {
	a, err := Checksum(map[string]int{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	b, err := Checksum(map[string]interface{}{"y": 2, "x": 1})
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if a != b {
		t.Errorf("checksums differ: %s vs %s", a, b)
	}
}

func TestBlake3HashHex(t *testing.T) {
	h1 := Blake3HashHex([]byte("hello"))
	h2 := Blake3HashHex([]byte("hello"))
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}
