package render

import (
	"fmt"
	"sort"
	"strings"
)

// HiddenField is a hidden input rendered alongside the visible fields.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{Name: strings.TrimSpace(name), Value: fmt.Sprint(value)}
}

// VersionField carries the schema version so a backend can reject
// submissions against an outdated form.
func VersionField(version int) HiddenField {
	return Hidden("_formVersion", version)
}

// CSRFToken carries a CSRF token under the name the backend expects.
func CSRFToken(name, token string) HiddenField {
	return Hidden(name, token)
}

// MergeHiddenFields drops unnamed entries and resolves name collisions in
// favour of the later field. The result is sorted by name.
func MergeHiddenFields(fields ...HiddenField) []HiddenField {
	if len(fields) == 0 {
		return nil
	}
	byName := make(map[string]string, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		byName[name] = field.Value
	}
	out := make([]HiddenField, 0, len(byName))
	for name, value := range byName {
		out = append(out, HiddenField{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
