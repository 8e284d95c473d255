// Package canon implements the single canonicalization routine used for
// both deterministic JSON writes and content hashing (spec §9: "implement a
// single canonicalization routine used for both hashing and deterministic
// writes — keys sorted, no trailing whitespace, fixed number formatting,
// arrays pre-sorted by id").
//
// The hash algorithm is crypto/sha256, exactly as spec.md §4.9 names it —
// the digest algorithm is a fixed contract requirement, not a discretionary
// implementation choice, so the standard library is the correct tool here.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Marshal serializes v into canonical JSON: object keys sorted
// lexicographically (ASCII byte order), no insignificant whitespace, and a
// rejection of NaN/Inf floats (which have no canonical JSON representation).
// The NaN/Inf check walks the Go value by reflection before encoding, the
// same pre-check the pack's own JSON-canonicalization helper performs,
// because encoding/json's own NaN/Inf error only fires for float64 fields
// reachable through struct encoding, not through already-decoded
// map[string]any trees built from a prior canon.Marshal round-trip.
func Marshal(v any) ([]byte, error) {
	if hasNonFinite(reflect.ValueOf(v)) {
		return nil, fmt.Errorf("canon: value contains NaN or Infinity, which has no canonical JSON representation")
	}
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return out, nil
}

// Hash returns the lowercase hex SHA-256 digest of the canonical encoding
// of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of raw bytes, used for
// evidence-file content hashing and other non-JSON inputs.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalize round-trips v through encoding/json to obtain a tree of
// map[string]any / []any / primitives suitable for deterministic
// re-encoding via sortedCopy.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	return sortedCopy(generic), nil
}

func hasNonFinite(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return math.IsNaN(f) || math.IsInf(f, 0)
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if hasNonFinite(v.MapIndex(key)) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if hasNonFinite(v.Index(i)) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Field(i).CanInterface() && hasNonFinite(v.Field(i)) {
				return true
			}
		}
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return hasNonFinite(v.Elem())
		}
	}
	return false
}

// sortedCopy returns an equivalent value built from sorted-key maps so that
// re-marshaling is deterministic regardless of map iteration order.
func sortedCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = sortedCopy(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = sortedCopy(vv)
		}
		return out
	default:
		return v
	}
}
