package models

import (
	"strings"
	"testing"
)

func nested(depth int) any {
	var v any = "leaf"
	for i := 0; i < depth; i++ {
		v = map[string]any{"n": v}
	}
	return v
}

func TestValidateMetadata(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"nil", nil, false},
		{"flat", Metadata{"category": "db", "score": 1.5, "ok": true, "none": nil}, false},
		{"array", Metadata{"tags": []any{"a", "b", 3.0}}, false},
		{"depth at limit", Metadata{"x": nested(MaxMetadataDepth - 1)}, false},
		{"too deep", Metadata{"x": nested(MaxMetadataDepth + 1)}, true},
		{"unsupported type", Metadata{"ch": make(chan int)}, true},
		{"too large", Metadata{"blob": strings.Repeat("a", MaxMetadataBytes)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMetadata(tt.meta); (err != nil) != tt.wantErr {
				t.Errorf("ValidateMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetadata_Equal(t *testing.T) {
	a := Metadata{"b": 1.0, "a": []any{"x"}}
	b := Metadata{"a": []any{"x"}, "b": 1.0}
	if !a.Equal(b) {
		t.Error("key order must not matter")
	}
	if !Metadata(nil).Equal(Metadata{}) {
		t.Error("nil and empty should be equal")
	}
	if a.Equal(Metadata{"b": 2.0, "a": []any{"x"}}) {
		t.Error("different values should not be equal")
	}
}

func TestMetadata_EncodeDecode(t *testing.T) {
	data, err := Metadata(nil).Encode()
	if err != nil || string(data) != "{}" {
		t.Fatalf("Encode(nil) = %s, %v", data, err)
	}
	m, err := DecodeMetadata(nil)
	if err != nil || m == nil || len(m) != 0 {
		t.Fatalf("DecodeMetadata(nil) = %v, %v", m, err)
	}
	if _, err := DecodeMetadata([]byte("{bad")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeMetadata_PreservesLargeIntegers(t *testing.T) {
	m, err := DecodeMetadata([]byte(`{"id":9007199254740993,"ratio":0.25}`))
	if err != nil {
		t.Fatal(err)
	}
	data, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"id":9007199254740993,"ratio":0.25}`; string(data) != want {
		t.Errorf("round trip = %s, want %s", data, want)
	}
	if err := ValidateMetadata(m); err != nil {
		t.Errorf("decoded metadata should validate: %v", err)
	}
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	orig := Metadata{"tags": []any{"a"}, "nested": map[string]any{"k": "v"}, "n": 2.0}
	c := orig.Clone()
	c["tags"].([]any)[0] = "changed"
	c["nested"].(map[string]any)["k"] = "changed"
	if orig["tags"].([]any)[0] != "a" || orig["nested"].(map[string]any)["k"] != "v" {
		t.Errorf("clone shares state with original: %v", orig)
	}
	if !c.Equal(Metadata{"tags": []any{"changed"}, "nested": map[string]any{"k": "changed"}, "n": 2.0}) {
		t.Errorf("clone = %v", c)
	}
	if Metadata(nil).Clone() == nil {
		t.Error("nil should clone to an empty map")
	}
}
