package render

import (
	"strings"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// ErrorMapping splits an error payload into messages per field id and
// messages for the form as a whole.
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MapErrorPayload maps server error payloads onto field ids. Keys may be
// plain ids or JSON pointers / dotted paths into a submission ("/contacts/0/
// contact_name", "body.email"); leading wrapper segments such as "body" or
// "data" are skipped and the deepest segment naming a field of schema wins.
// Anything that names no field is kept as a form-level message.
func MapErrorPayload(schema model.FormSchema, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	ids := make(map[string]struct{})
	model.Walk(schema.Fields, func(field model.FieldDefinition, _ string) bool {
		ids[field.ID] = struct{}{}
		return true
	})

	for raw, messages := range payload {
		messages = normalizeMessages(messages)
		if len(messages) == 0 {
			continue
		}
		id := fieldForPath(raw, ids)
		if id == "" {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[id] = append(mapping.Fields[id], messages...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

// MergeFormErrors concatenates form-level messages, trimming and removing
// duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

func fieldForPath(raw string, ids map[string]struct{}) string {
	if isFormLevelKey(raw) {
		return ""
	}
	segments := dropWrapperSegments(pathSegments(raw))
	match := ""
	for _, segment := range segments {
		if _, ok := ids[segment]; ok {
			match = segment
		}
	}
	return match
}

func pathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimLeft(clean, "#$./")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func dropWrapperSegments(segments []string) []string {
	for len(segments) > 1 {
		switch strings.ToLower(segments[0]) {
		case "body", "request", "payload", "data", "values":
			segments = segments[1:]
			continue
		}
		break
	}
	return segments
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "__all__", "non_field_errors":
		return true
	default:
		return false
	}
}
