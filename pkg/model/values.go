package model

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Clone returns a deep copy of the schema.
func (s FormSchema) Clone() FormSchema {
	return FormSchema{
		Title:   s.Title,
		Version: s.Version,
		Fields:  cloneFields(s.Fields),
		Extra:   cloneMap(s.Extra),
	}
}

// Clone returns a deep copy of the field and its subtree.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	out.Options = cloneMap(f.Options)
	out.ValidationRules = cloneRules(f.ValidationRules)
	out.Children = cloneFields(f.Children)
	out.Extra = cloneMap(f.Extra)
	return out
}

// Normalized returns a deep copy whose Options and Extra values are in
// their canonical JSON shapes, so the schema survives a codec round trip
// unchanged.
func (s FormSchema) Normalized() FormSchema {
	out := s.Clone()
	out.Extra = NormalizeOptions(out.Extra)
	normalizeFields(out.Fields)
	return out
}

func normalizeFields(fields []FieldDefinition) {
	for idx := range fields {
		fields[idx].Options = NormalizeOptions(fields[idx].Options)
		fields[idx].Extra = NormalizeOptions(fields[idx].Extra)
		normalizeFields(fields[idx].Children)
	}
}

func cloneFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	out := make([]FieldDefinition, len(fields))
	for idx, field := range fields {
		out[idx] = field.Clone()
	}
	return out
}

func cloneRules(rules []ValidationRule) []ValidationRule {
	if rules == nil {
		return nil
	}
	out := make([]ValidationRule, len(rules))
	for idx, rule := range rules {
		out[idx] = ValidationRule{Kind: rule.Kind}
		if rule.Params != nil {
			out[idx].Params = make(map[string]string, len(rule.Params))
			for k, v := range rule.Params {
				out[idx].Params[k] = v
			}
		}
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-like values (maps, slices, scalars).
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = CloneValue(v)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// NormalizeOptions converts option values into their canonical JSON shapes
// (float64 numbers, []any arrays, map[string]any objects) so in-memory
// schemas compare equal to decoded ones.
func NormalizeOptions(options map[string]any) map[string]any {
	if options == nil {
		return nil
	}
	out := make(map[string]any, len(options))
	for k, v := range options {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue converts a Go value into its canonical JSON shape.
func NormalizeValue(value any) any {
	switch typed := value.(type) {
	case nil, bool, string, float64:
		return typed
	case int:
		return float64(typed)
	case int8:
		return float64(typed)
	case int16:
		return float64(typed)
	case int32:
		return float64(typed)
	case int64:
		return float64(typed)
	case uint:
		return float64(typed)
	case uint8:
		return float64(typed)
	case uint16:
		return float64(typed)
	case uint32:
		return float64(typed)
	case uint64:
		return float64(typed)
	case float32:
		return float64(typed)
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		return NormalizeOptions(typed)
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = NormalizeValue(v)
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out
	}

	if n, ok := value.(interface{ Float64() (float64, error) }); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = NormalizeValue(iter.Value().Interface())
		}
		return out
	default:
		return value
	}
}

// IsEmptyValue reports whether value counts as "no value": nil, blank
// strings, and empty slices or maps.
func IsEmptyValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
