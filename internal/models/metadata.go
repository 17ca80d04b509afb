package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/semsearch/internal/apperr"
)

const (
	// MaxMetadataDepth bounds nesting of objects and arrays in metadata.
	MaxMetadataDepth = 8
	// MaxMetadataBytes bounds the JSON-encoded size of metadata.
	MaxMetadataBytes = 64 * 1024
)

// Metadata is an open string-keyed map of JSON-representable values.
type Metadata map[string]any

// Clone returns a deep copy of the nested maps and slices. Nil clones to an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Metadata:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal compares two metadata maps by their canonical JSON encoding.
// Nil and empty maps are equal.
func (m Metadata) Equal(other Metadata) bool {
	if len(m) == 0 && len(other) == 0 {
		return true
	}
	a, errA := json.Marshal(m)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Encode returns the JSON encoding used for storage; nil encodes as "{}".
func (m Metadata) Encode() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMetadata parses stored JSON; empty input yields an empty map. Numbers
// decode as json.Number so integers beyond float64 precision survive.
func DecodeMetadata(data []byte) (Metadata, error) {
	out := Metadata{}
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if out == nil {
		out = Metadata{}
	}
	return out, nil
}

// ValidateMetadata rejects metadata that is not JSON-representable, nests deeper
// than MaxMetadataDepth, or encodes larger than MaxMetadataBytes.
func ValidateMetadata(m Metadata) error {
	if m == nil {
		return nil
	}
	for k, v := range m {
		if err := validateValue(v, 1); err != nil {
			return apperr.Validation("metadata", "key %q: %s", k, err.Error())
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperr.Validation("metadata", "not JSON-serializable: %s", err.Error())
	}
	if len(data) > MaxMetadataBytes {
		return apperr.Validation("metadata", "encoded size %d exceeds %d bytes", len(data), MaxMetadataBytes)
	}
	return nil
}

func validateValue(v any, depth int) error {
	if depth > MaxMetadataDepth {
		return fmt.Errorf("nesting deeper than %d", MaxMetadataDepth)
	}
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return nil
	case []any:
		for _, item := range val {
			if err := validateValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, item := range val {
			if err := validateValue(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case Metadata:
		return validateValue(map[string]any(val), depth)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
