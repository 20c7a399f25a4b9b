package evidence

import (
	"encoding/json"
	"sort"
	"strings"
)

// isSecretKey matches on a lowercased key name containing either of
// these substrings, per spec.md §4.B's redaction rule.
func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "secret")
}

// redact walks a decoded JSON value and replaces any map entry whose
// lowercased key contains "password" or "secret" with "[REDACTED]",
// at every depth, before the value is hashed or persisted.
func redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			if isSecretKey(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redact(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = redact(sub)
		}
		return out
	default:
		return val
	}
}

// normalize implements the input_snapshot_hash normalization
// algorithm from spec.md §4.B:
//   - maps retain primitive entries as-is, normalizing nested values
//   - arrays of objects: normalize each element, then sort
//     lexicographically by the element's own canonical serialization
//   - arrays of primitives: sort ascending — numerically for bare
//     numbers, lexicographically for bare strings (see sortArray)
//   - non-primitive leaf types (anything JSON can't represent, which
//     after json.Marshal/Unmarshal round-tripping never survives) are
//     dropped; in practice this means only map/slice/primitive shapes
//     reach this function
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		normalized := make([]any, len(val))
		for i, sub := range val {
			normalized[i] = normalize(sub)
		}
		sortArray(normalized)
		return normalized
	default:
		return val
	}
}

// sortArray orders a normalized array per spec.md §4.B: an array of
// bare numbers sorts ascending by numeric value and an array of bare
// strings sorts ascending lexicographically; anything else (objects,
// booleans, or a mixed-type array) sorts by canonical serialization,
// which is the only stable key available once the elements aren't
// uniformly comparable.
func sortArray(items []any) {
	switch {
	case allFloat64(items):
		sort.Slice(items, func(i, j int) bool {
			return items[i].(float64) < items[j].(float64)
		})
	case allString(items):
		sort.Slice(items, func(i, j int) bool {
			return items[i].(string) < items[j].(string)
		})
	default:
		sort.Slice(items, func(i, j int) bool {
			return canonicalString(items[i]) < canonicalString(items[j])
		})
	}
}

func allFloat64(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, v := range items {
		if _, ok := v.(float64); !ok {
			return false
		}
	}
	return true
}

func allString(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, v := range items {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

// canonicalString serializes v with lexicographically sorted object
// keys, the stable serialization used both as the normalize() sort
// key and as the final byte stream that gets hashed.
func canonicalString(v any) string {
	b, err := canonicalMarshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// canonicalMarshal produces deterministic JSON: object keys sorted
// lexicographically at every depth. encoding/json already sorts
// map[string]any keys on marshal, so this is a thin documented
// wrapper rather than a hand-rolled encoder.
func canonicalMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// normalizeInputData redacts secrets, then applies the normalization
// algorithm, over an arbitrary input_data value. The caller marshals
// the result with canonicalMarshal to get the bytes that get hashed.
func normalizeInputData(raw any) (any, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, err
	}
	return normalize(redact(decoded)), nil
}
