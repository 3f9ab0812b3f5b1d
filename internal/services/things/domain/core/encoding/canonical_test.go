package encoding

import (
	"encoding/json"
	"testing"
)

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "simple object sorted keys",
			input: map[string]any{"z": 1, "a": 2, "m": 3},
			want:  `{"a":2,"m":3,"z":1}`,
		},
		{
			name:  "nested object sorted keys",
			input: map[string]any{"b": map[string]any{"d": 1, "c": 2}, "a": 3},
			want:  `{"a":3,"b":{"c":2,"d":1}}`,
		},
		{
			name:  "array preserved order",
			input: []any{3, 1, 2},
			want:  `[3,1,2]`,
		},
		{
			name:  "large integers keep precision",
			input: map[string]any{"n": json.Number("9007199254740993")},
			want:  `{"n":9007199254740993}`,
		},
		{
			name:  "html characters not escaped",
			input: map[string]any{"s": "<a&b>"},
			want:  `{"s":"<a&b>"}`,
		},
		{
			name: "thing document",
			input: map[string]any{
				"thingId":    "org.acme:lamp",
				"policyId":   "org.acme:policy",
				"attributes": map[string]any{"location": "kitchen"},
			},
			want: `{"attributes":{"location":"kitchen"},"policyId":"org.acme:policy","thingId":"org.acme:lamp"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			if err != nil {
				t.Fatalf("CanonicalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("CanonicalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestContentHashStableAcrossKeyOrder(t *testing.T) {
	a, err := ContentHash(map[string]any{"x": 1, "y": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := ContentHash(map[string]any{"y": []any{"a", "b"}, "x": 1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Fatalf("hash mismatch: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d, want 32", len(a))
	}
}

func TestContentHashDiffersByValue(t *testing.T) {
	a, _ := ContentHash("kitchen")
	b, _ := ContentHash("garage")
	if a == b {
		t.Fatal("expected different hashes for different values")
	}
}
