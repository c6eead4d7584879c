package codec

import (
	"bytes"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// member is one key of an ordered object.
type member struct {
	key   string
	value any
}

// object keeps keys in insertion order so output is byte-stable.
type object []member

var fieldKeys = []string{"id", "kind", "label", "required", "order", "options", "validationRules", "children"}
var schemaKeys = []string{"title", "version", "fields"}

func schemaObject(schema model.FormSchema) object {
	fields := make([]any, len(schema.Fields))
	for idx, field := range schema.Fields {
		fields[idx] = fieldObject(field)
	}
	out := object{
		{key: "title", value: schema.Title},
		{key: "version", value: schema.Version},
		{key: "fields", value: fields},
	}
	return appendExtra(out, schema.Extra, schemaKeys)
}

func fieldObject(field model.FieldDefinition) object {
	rules := make([]any, len(field.ValidationRules))
	for idx, rule := range field.ValidationRules {
		entry := object{{key: "kind", value: rule.Kind}}
		if len(rule.Params) > 0 {
			params := make(map[string]any, len(rule.Params))
			for k, v := range rule.Params {
				params[k] = v
			}
			entry = append(entry, member{key: "params", value: ordered(params)})
		}
		rules[idx] = entry
	}

	options := ordered(model.NormalizeOptions(field.Options))
	if options == nil {
		options = object{}
	}

	out := object{
		{key: "id", value: field.ID},
		{key: "kind", value: field.Kind},
		{key: "label", value: field.Label},
		{key: "required", value: field.Required},
		{key: "order", value: field.Order},
		{key: "options", value: options},
		{key: "validationRules", value: rules},
	}
	if len(field.Children) > 0 {
		children := make([]any, len(field.Children))
		for idx, child := range field.Children {
			children[idx] = fieldObject(child)
		}
		out = append(out, member{key: "children", value: children})
	}
	return appendExtra(out, field.Extra, fieldKeys)
}

// appendExtra adds unknown keys sorted by name, skipping reserved ones.
func appendExtra(out object, extra map[string]any, reserved []string) object {
	if len(extra) == 0 {
		return out
	}
	skip := make(map[string]struct{}, len(reserved))
	for _, key := range reserved {
		skip[key] = struct{}{}
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if _, ok := skip[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, member{key: key, value: ordered(model.NormalizeValue(extra[key]))})
	}
	return out
}

// ordered converts maps into objects with sorted keys, recursively.
func ordered(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if typed == nil {
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := make(object, 0, len(keys))
		for _, key := range keys {
			out = append(out, member{key: key, value: ordered(typed[key])})
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = ordered(item)
		}
		return out
	default:
		return value
	}
}

// writer renders objects and arrays with two-space indentation. Scalars are
// encoded by go-json.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) indent(depth int) {
	w.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		w.buf.WriteString("  ")
	}
}

func (w *writer) value(value any, depth int) error {
	switch typed := value.(type) {
	case object:
		if len(typed) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteByte('{')
		for idx, m := range typed {
			if idx > 0 {
				w.buf.WriteByte(',')
			}
			w.indent(depth + 1)
			if err := w.scalar(m.key); err != nil {
				return err
			}
			w.buf.WriteString(": ")
			if err := w.value(m.value, depth+1); err != nil {
				return err
			}
		}
		w.indent(depth)
		w.buf.WriteByte('}')
		return nil
	case []any:
		if len(typed) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteByte('[')
		for idx, item := range typed {
			if idx > 0 {
				w.buf.WriteByte(',')
			}
			w.indent(depth + 1)
			if err := w.value(item, depth+1); err != nil {
				return err
			}
		}
		w.indent(depth)
		w.buf.WriteByte(']')
		return nil
	default:
		return w.scalar(typed)
	}
}

func (w *writer) scalar(value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	w.buf.Write(raw)
	return nil
}
