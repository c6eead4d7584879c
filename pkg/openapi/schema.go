package openapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

// SubmissionSchema returns the object schema a snapshot of form must satisfy.
// Fields guarded by a visibility rule, directly or through a group, are never
// listed as required because they may be hidden when the form is submitted.
func SubmissionSchema(form model.FormSchema, reg *registry.Registry) (*openapi3.Schema, error) {
	if reg == nil {
		return nil, errors.New("openapi: registry is required")
	}

	root := openapi3.NewObjectSchema().WithoutAdditionalProperties()
	root.Title = form.Title
	if form.Version > 0 {
		root.Extensions = map[string]any{"x-form-version": form.Version}
	}
	if err := addProperties(root, form.Fields, reg, true); err != nil {
		return nil, err
	}
	return root, nil
}

func addProperties(target *openapi3.Schema, fields []model.FieldDefinition, reg *registry.Registry, mayRequire bool) error {
	for _, field := range fields {
		desc, err := reg.Resolve(field.Kind)
		if err != nil {
			return fmt.Errorf("openapi: field %q: %w", field.ID, err)
		}
		required := mayRequire && !conditional(field)

		if !desc.HoldsValue() {
			if err := addProperties(target, field.Children, reg, required); err != nil {
				return err
			}
			continue
		}

		property, err := fieldSchema(field, desc, reg)
		if err != nil {
			return err
		}
		target.WithProperty(field.ID, property)
		if field.Required && required {
			target.Required = append(target.Required, field.ID)
		}
	}
	return nil
}

func conditional(field model.FieldDefinition) bool {
	rule, _ := field.Options[model.OptionVisibleWhen].(string)
	return strings.TrimSpace(rule) != ""
}

func fieldSchema(field model.FieldDefinition, desc registry.Descriptor, reg *registry.Registry) (*openapi3.Schema, error) {
	var out *openapi3.Schema

	switch desc.ValueType {
	case model.ValueTypeString:
		out = openapi3.NewStringSchema()
		switch desc.Render.InputType {
		case "email", "date":
			out.Format = desc.Render.InputType
		}
		if desc.Render.HasChoices {
			out.Enum = choiceEnum(field.Options)
		}
		if field.Required {
			out.MinLength = 1
		}
	case model.ValueTypeInteger:
		out = openapi3.NewIntegerSchema()
	case model.ValueTypeNumber:
		out = openapi3.NewFloat64Schema()
	case model.ValueTypeBoolean:
		out = openapi3.NewBoolSchema()
		if field.Required {
			// a required checkbox has to be ticked
			out.Enum = []any{true}
		}
	case model.ValueTypeArray:
		items, err := itemSchema(field, desc, reg)
		if err != nil {
			return nil, err
		}
		out = openapi3.NewArraySchema().WithItems(items)
		if field.Required {
			out.MinItems = 1
		}
	case model.ValueTypeObject:
		out = openapi3.NewObjectSchema()
	default:
		return nil, fmt.Errorf("openapi: field %q: unsupported value type %q", field.ID, desc.ValueType)
	}

	out.Title = field.Label
	if help, ok := field.Options[model.OptionHelpText].(string); ok {
		out.Description = help
	}
	if def, ok := field.Options[model.OptionDefault]; ok {
		out.Default = model.NormalizeValue(def)
	}
	applyOptions(out, field.Options)
	for _, rule := range field.ValidationRules {
		applyRule(out, rule)
	}
	return out, nil
}

func itemSchema(field model.FieldDefinition, desc registry.Descriptor, reg *registry.Registry) (*openapi3.Schema, error) {
	if !desc.Render.Repeatable {
		items := openapi3.NewStringSchema()
		if desc.Render.HasChoices {
			items.Enum = choiceEnum(field.Options)
		}
		return items, nil
	}

	entry := openapi3.NewObjectSchema().WithoutAdditionalProperties()
	if err := addProperties(entry, field.Children, reg, true); err != nil {
		return nil, err
	}
	return entry, nil
}

func choiceEnum(options map[string]any) []any {
	values := registry.ChoiceValues(options)
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for idx, value := range values {
		out[idx] = value
	}
	return out
}

// applyOptions copies the bounds the built-in validators read from options.
func applyOptions(s *openapi3.Schema, options map[string]any) {
	for _, key := range []string{"min", "max", "minLength", "maxLength", "minItems", "maxItems"} {
		if n, ok := model.NormalizeValue(options[key]).(float64); ok {
			applyBound(s, key, n)
		}
	}
}

func applyRule(s *openapi3.Schema, rule model.ValidationRule) {
	switch rule.Kind {
	case model.ValidationRulePattern:
		if pattern := rule.Params["pattern"]; pattern != "" {
			s.Pattern = pattern
		}
	case model.ValidationRuleEmail:
		s.Format = "email"
	default:
		n, err := strconv.ParseFloat(rule.Params["value"], 64)
		if err != nil {
			return
		}
		applyBound(s, rule.Kind, n)
	}
}

// applyBound only ever tightens a bound already on s.
func applyBound(s *openapi3.Schema, kind string, n float64) {
	if n < 0 && kind != model.ValidationRuleMin && kind != model.ValidationRuleMax {
		return
	}
	switch kind {
	case model.ValidationRuleMin:
		if s.Min == nil || n > *s.Min {
			s.Min = &n
		}
	case model.ValidationRuleMax:
		if s.Max == nil || n < *s.Max {
			s.Max = &n
		}
	case model.ValidationRuleMinLength:
		if v := uint64(n); v > s.MinLength {
			s.MinLength = v
		}
	case model.ValidationRuleMaxLength:
		if v := uint64(n); s.MaxLength == nil || v < *s.MaxLength {
			s.MaxLength = &v
		}
	case model.ValidationRuleMinItems:
		if v := uint64(n); v > s.MinItems {
			s.MinItems = v
		}
	case model.ValidationRuleMaxItems:
		if v := uint64(n); s.MaxItems == nil || v < *s.MaxItems {
			s.MaxItems = &v
		}
	}
}
