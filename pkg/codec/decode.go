package codec

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// decoder converts a generic document (maps, slices, scalars) into a
// schema. The first type mismatch aborts with *model.MalformedSchemaError.
type decoder struct{}

func (d decoder) schema(raw any) (model.FormSchema, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return model.FormSchema{}, malformed("", "document must be an object")
	}

	var out model.FormSchema
	var err error
	if out.Title, err = d.str(doc, "title", ""); err != nil {
		return model.FormSchema{}, err
	}
	if out.Version, err = d.integer(doc, "version", ""); err != nil {
		return model.FormSchema{}, err
	}
	if out.Fields, err = d.fields(doc["fields"], "/fields"); err != nil {
		return model.FormSchema{}, err
	}
	out.Extra = extra(doc, schemaKeys)
	return out, nil
}

func (d decoder) fields(raw any, path string) ([]model.FieldDefinition, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, malformed(path, "must be an array")
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]model.FieldDefinition, len(list))
	for idx, item := range list {
		field, err := d.field(item, fmt.Sprintf("%s/%d", path, idx))
		if err != nil {
			return nil, err
		}
		out[idx] = field
	}
	return out, nil
}

func (d decoder) field(raw any, path string) (model.FieldDefinition, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return model.FieldDefinition{}, malformed(path, "field must be an object")
	}

	var field model.FieldDefinition
	var err error
	if field.ID, err = d.str(obj, "id", path); err != nil {
		return field, err
	}
	if field.Kind, err = d.str(obj, "kind", path); err != nil {
		return field, err
	}
	if field.Label, err = d.str(obj, "label", path); err != nil {
		return field, err
	}
	if field.Required, err = d.boolean(obj, "required", path); err != nil {
		return field, err
	}
	if field.Order, err = d.integer(obj, "order", path); err != nil {
		return field, err
	}

	switch options := obj["options"].(type) {
	case nil:
	case map[string]any:
		if len(options) > 0 {
			field.Options = model.NormalizeOptions(options)
		}
	default:
		return field, malformed(path+"/options", "must be an object")
	}

	if field.ValidationRules, err = d.rules(obj["validationRules"], path+"/validationRules"); err != nil {
		return field, err
	}
	if field.Children, err = d.fields(obj["children"], path+"/children"); err != nil {
		return field, err
	}
	field.Extra = extra(obj, fieldKeys)
	return field, nil
}

func (d decoder) rules(raw any, path string) ([]model.ValidationRule, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, malformed(path, "must be an array")
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]model.ValidationRule, len(list))
	for idx, item := range list {
		at := fmt.Sprintf("%s/%d", path, idx)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, malformed(at, "rule must be an object")
		}
		kind, err := d.str(obj, "kind", at)
		if err != nil {
			return nil, err
		}
		out[idx].Kind = kind

		switch params := obj["params"].(type) {
		case nil:
		case map[string]any:
			if len(params) == 0 {
				continue
			}
			out[idx].Params = make(map[string]string, len(params))
			for key, value := range params {
				text, ok := scalarText(value)
				if !ok {
					return nil, malformed(at+"/params/"+key, "must be a scalar")
				}
				out[idx].Params[key] = text
			}
		default:
			return nil, malformed(at+"/params", "must be an object")
		}
	}
	return out, nil
}

func (d decoder) str(obj map[string]any, key, path string) (string, error) {
	switch value := obj[key].(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	default:
		return "", malformed(path+"/"+key, "must be a string")
	}
}

func (d decoder) boolean(obj map[string]any, key, path string) (bool, error) {
	switch value := obj[key].(type) {
	case nil:
		return false, nil
	case bool:
		return value, nil
	default:
		return false, malformed(path+"/"+key, "must be a boolean")
	}
}

func (d decoder) integer(obj map[string]any, key, path string) (int, error) {
	raw, present := obj[key]
	if !present || raw == nil {
		return 0, nil
	}
	var f float64
	switch value := raw.(type) {
	case number:
		n, err := value.Int64()
		if err == nil {
			return int(n), nil
		}
		if f, err = value.Float64(); err != nil {
			return 0, malformed(path+"/"+key, "must be an integer")
		}
	case float64:
		f = value
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case uint64:
		return int(value), nil
	default:
		return 0, malformed(path+"/"+key, "must be an integer")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, malformed(path+"/"+key, "must be an integer")
	}
	return int(f), nil
}

func scalarText(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case bool:
		return strconv.FormatBool(typed), true
	case number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	default:
		return "", false
	}
}

func extra(obj map[string]any, known []string) map[string]any {
	var out map[string]any
	for key, value := range obj {
		if contains(known, key) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = model.NormalizeValue(value)
	}
	return out
}

func contains(list []string, key string) bool {
	for _, item := range list {
		if item == key {
			return true
		}
	}
	return false
}

// number matches json.Number values produced by a UseNumber decoder.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

type syntaxError string

func (e syntaxError) Error() string { return string(e) }

func malformed(path, message string) error {
	if path == "" {
		path = "/"
	}
	return &model.MalformedSchemaError{Path: path, Err: syntaxError(message)}
}
