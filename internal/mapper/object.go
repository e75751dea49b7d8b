package mapper

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ppiankov/persona/internal/util"
)

const (
	ScaleMin = 1
	ScaleMax = 10
)

// absentValues are string values the model uses to mean "no evidence"
var absentValues = map[string]bool{
	"":              true,
	"none":          true,
	"n/a":           true,
	"na":            true,
	"null":          true,
	"unknown":       true,
	"not mentioned": true,
	"not specified": true,
	"not available": true,
}

// object is a decoded JSON object with keys normalized to snake_case.
// Every accessor returns a zero value instead of failing; a nil object is
// a valid empty object.
type object map[string]any

func asObject(v any) object {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := make(object, len(m))
	// keys already in canonical form win over case/spacing variants
	for _, k := range keys {
		if normalizeKey(k) == k {
			o[k] = m[k]
		}
	}
	for _, k := range keys {
		nk := normalizeKey(k)
		if _, exists := o[nk]; !exists {
			o[nk] = m[k]
		}
	}
	return o
}

func normalizeKey(k string) string {
	parts := strings.FieldsFunc(strings.ToLower(k), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '/' || r == '_'
	})
	return strings.Join(parts, "_")
}

// lookup returns the value of the first key present
func (o object) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (o object) group(keys ...string) object {
	v, _ := o.lookup(keys...)
	return asObject(v)
}

func (o object) str(key string) *string {
	v, _ := o.lookup(key)
	return coerceString(v)
}

func (o object) scale(key string) *int {
	v, _ := o.lookup(key)
	return coerceScale(v)
}

func (o object) list(key string) []string {
	v, _ := o.lookup(key)
	return coerceList(v)
}

// coerceString accepts strings and numbers; sentinel strings are absent
func coerceString(v any) *string {
	var s string
	switch val := v.(type) {
	case string:
		s = util.CollapseSpace(val)
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return nil
	}
	if absentValues[strings.ToLower(s)] {
		return nil
	}
	return &s
}

// coerceScale maps numbers and numeric strings onto [ScaleMin, ScaleMax].
// The raw value is range-checked before in-range fractions are rounded.
// Anything else is absent.
func coerceScale(v any) *int {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || f < ScaleMin || f > ScaleMax {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

// coerceList keeps the usable string entries of a JSON array in order.
// A value of any other shape yields an empty list.
func coerceList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s := coerceString(item); s != nil {
			out = append(out, *s)
		}
	}
	return out
}
