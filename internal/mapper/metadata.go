package mapper

import (
	"bytes"
	"encoding/json"
	"math"
)

// DecodeMetadata reads a JSON object of source metadata. Integers come back
// as int64 without losing precision, other numbers as float64.
func DecodeMetadata(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	return NormalizeMetadata(metadata), nil
}

// NormalizeMetadata converts the json.Number values left by a UseNumber
// decoder, including nested ones.
func NormalizeMetadata(metadata map[string]any) map[string]any {
	for k, v := range metadata {
		metadata[k] = normalizeValue(v)
	}
	return metadata
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		// out of range for both; keep the literal
		return val.String()
	case map[string]any:
		return NormalizeMetadata(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}
