package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalMetadata deep-copies m through its JSON form so that an in-memory
// chunk and one read back from a snapshot carry identical values: integral
// numbers become int64, other numbers float64. Values that cannot be
// represented as JSON are rejected.
func CanonicalMetadata(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("metadata is not serializable: %w", err)
	}
	return DecodeMetadata(data)
}

// DecodeMetadata parses a JSON object using the same number rules as CanonicalMetadata.
func DecodeMetadata(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if m == nil {
		return map[string]any{}, nil
	}
	for k, v := range m {
		m[k] = normalizeNumber(v)
	}
	return m, nil
}

func normalizeNumber(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, vv := range x {
			x[k] = normalizeNumber(vv)
		}
		return x
	case []any:
		for i, vv := range x {
			x[i] = normalizeNumber(vv)
		}
		return x
	}
	return v
}

// MetaInt reads an integer metadata value regardless of how it was stored.
func MetaInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	}
	return 0, false
}
