package registry

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// Built-in kind identifiers.
const (
	KindText        = "text"
	KindTextarea    = "textarea"
	KindEmail       = "email"
	KindNumber      = "number"
	KindInteger     = "integer"
	KindSelect      = "select"
	KindMultiSelect = "multiselect"
	KindCheckbox    = "checkbox"
	KindDate        = "date"
	KindGroup       = "group"
	KindRepeater    = "repeater"
)

// Built-in widget identifiers.
const (
	WidgetInput    = "input"
	WidgetTextarea = "textarea"
	WidgetSelect   = "select"
	WidgetCheckbox = "checkbox"
	WidgetFieldset = "fieldset"
	WidgetRepeater = "repeater"
)

const dateLayout = time.DateOnly

func builtins() []Descriptor {
	return []Descriptor{
		{
			Kind:      KindText,
			ValueType: model.ValueTypeString,
			Validator: validateText,
			Render:    RenderDescriptor{Widget: WidgetInput, InputType: "text"},
		},
		{
			Kind:           KindTextarea,
			ValueType:      model.ValueTypeString,
			DefaultOptions: map[string]any{"rows": 4},
			Validator:      validateText,
			Render:         RenderDescriptor{Widget: WidgetTextarea},
		},
		{
			Kind:      KindEmail,
			ValueType: model.ValueTypeString,
			Validator: validateEmail,
			Render:    RenderDescriptor{Widget: WidgetInput, InputType: "email"},
		},
		{
			Kind:      KindNumber,
			ValueType: model.ValueTypeNumber,
			Validator: validateNumber(false),
			Render:    RenderDescriptor{Widget: WidgetInput, InputType: "number"},
		},
		{
			Kind:           KindInteger,
			ValueType:      model.ValueTypeInteger,
			DefaultOptions: map[string]any{"step": 1},
			Validator:      validateNumber(true),
			Render:         RenderDescriptor{Widget: WidgetInput, InputType: "number"},
		},
		{
			Kind:           KindSelect,
			ValueType:      model.ValueTypeString,
			DefaultOptions: map[string]any{model.OptionChoices: []any{}},
			Validator:      validateSelect,
			Render:         RenderDescriptor{Widget: WidgetSelect, HasChoices: true},
		},
		{
			Kind:           KindMultiSelect,
			ValueType:      model.ValueTypeArray,
			DefaultOptions: map[string]any{model.OptionChoices: []any{}},
			Validator:      validateMultiSelect,
			Render:         RenderDescriptor{Widget: WidgetSelect, HasChoices: true, Multiple: true},
		},
		{
			Kind:      KindCheckbox,
			ValueType: model.ValueTypeBoolean,
			Validator: validateCheckbox,
			Render:    RenderDescriptor{Widget: WidgetCheckbox, InputType: "checkbox"},
		},
		{
			Kind:      KindDate,
			ValueType: model.ValueTypeString,
			Validator: validateDate,
			Render:    RenderDescriptor{Widget: WidgetInput, InputType: "date"},
		},
		{
			Kind:      KindGroup,
			ValueType: model.ValueTypeNone,
			Validator: validateContainer,
			Render:    RenderDescriptor{Widget: WidgetFieldset, Container: true},
		},
		{
			Kind:           KindRepeater,
			ValueType:      model.ValueTypeArray,
			DefaultOptions: map[string]any{"addLabel": "Add entry"},
			Validator:      validateRepeater,
			Render:         RenderDescriptor{Widget: WidgetRepeater, Container: true, Repeatable: true},
		},
	}
}

func typeViolation(message string) []model.Violation {
	return []model.Violation{{Code: model.CodeType, Message: message}}
}

func validateText(value any, options map[string]any) []model.Violation {
	text, ok := value.(string)
	if !ok {
		return typeViolation("must be text")
	}
	var out []model.Violation
	length, _ := runeLength(text)
	if min, ok := optionNumber(options, "minLength"); ok && float64(length) < min {
		out = append(out, model.Violation{Code: model.CodeLength, Message: fmt.Sprintf("must be at least %s characters", formatNumber(min))})
	}
	if max, ok := optionNumber(options, "maxLength"); ok && float64(length) > max {
		out = append(out, model.Violation{Code: model.CodeLength, Message: fmt.Sprintf("must be at most %s characters", formatNumber(max))})
	}
	return out
}

func validateEmail(value any, options map[string]any) []model.Violation {
	if out := validateText(value, options); len(out) > 0 {
		return out
	}
	if !emailPattern.MatchString(strings.TrimSpace(value.(string))) {
		return []model.Violation{{Code: model.CodeFormat, Message: "must be a valid email address"}}
	}
	return nil
}

func validateNumber(integer bool) Validator {
	return func(value any, options map[string]any) []model.Violation {
		number, ok := toNumber(value)
		if !ok || math.IsNaN(number) || math.IsInf(number, 0) {
			return typeViolation("must be a number")
		}
		if integer && number != math.Trunc(number) {
			return typeViolation("must be a whole number")
		}
		var out []model.Violation
		if min, ok := optionNumber(options, "min"); ok && number < min {
			out = append(out, model.Violation{Code: model.CodeRange, Message: fmt.Sprintf("must be greater than or equal to %s", formatNumber(min))})
		}
		if max, ok := optionNumber(options, "max"); ok && number > max {
			out = append(out, model.Violation{Code: model.CodeRange, Message: fmt.Sprintf("must be less than or equal to %s", formatNumber(max))})
		}
		return out
	}
}

// ChoiceValues extracts the allowed values from Options["choices"]. Choices
// can be plain scalars or objects with a "value" (and optional "label").
func ChoiceValues(options map[string]any) []string {
	choices, ok := toSlice(options[model.OptionChoices])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(choices))
	for _, choice := range choices {
		if obj, ok := choice.(map[string]any); ok {
			out = append(out, toString(obj["value"]))
			continue
		}
		out = append(out, toString(choice))
	}
	return out
}

// ChoiceLabels mirrors ChoiceValues but returns the display labels.
func ChoiceLabels(options map[string]any) []string {
	choices, ok := toSlice(options[model.OptionChoices])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(choices))
	for _, choice := range choices {
		if obj, ok := choice.(map[string]any); ok {
			label := toString(obj["label"])
			if label == "" {
				label = toString(obj["value"])
			}
			out = append(out, label)
			continue
		}
		out = append(out, toString(choice))
	}
	return out
}

func containsChoice(choices []string, value any) bool {
	candidate := toString(value)
	for _, choice := range choices {
		if choice == candidate {
			return true
		}
	}
	return false
}

func validateSelect(value any, options map[string]any) []model.Violation {
	if _, isList := toSlice(value); isList {
		return typeViolation("must be a single choice")
	}
	if !containsChoice(ChoiceValues(options), value) {
		return []model.Violation{{
			Code:    model.CodeChoice,
			Message: fmt.Sprintf("%q is not one of the available choices", toString(value)),
		}}
	}
	return nil
}

func validateMultiSelect(value any, options map[string]any) []model.Violation {
	items, ok := toSlice(value)
	if !ok {
		return typeViolation("must be a list of choices")
	}
	choices := ChoiceValues(options)
	var out []model.Violation
	for idx, item := range items {
		if !containsChoice(choices, item) {
			out = append(out, model.Violation{
				Code:    model.CodeChoice,
				Message: fmt.Sprintf("%q is not one of the available choices", toString(item)),
				Params:  map[string]string{"index": fmt.Sprint(idx)},
			})
		}
	}
	if min, ok := optionNumber(options, "minItems"); ok && float64(len(items)) < min {
		out = append(out, model.Violation{Code: model.CodeItems, Message: fmt.Sprintf("select at least %s", formatNumber(min))})
	}
	if max, ok := optionNumber(options, "maxItems"); ok && float64(len(items)) > max {
		out = append(out, model.Violation{Code: model.CodeItems, Message: fmt.Sprintf("select at most %s", formatNumber(max))})
	}
	return out
}

func validateCheckbox(value any, _ map[string]any) []model.Violation {
	if _, ok := toBool(value); !ok {
		return typeViolation("must be true or false")
	}
	return nil
}

func validateDate(value any, options map[string]any) []model.Violation {
	text, ok := value.(string)
	if !ok {
		return typeViolation("must be a date")
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return []model.Violation{{Code: model.CodeFormat, Message: "must be a date formatted as YYYY-MM-DD"}}
	}
	var out []model.Violation
	if min := optionString(options, "min"); min != "" {
		if bound, err := time.Parse(dateLayout, min); err == nil && date.Before(bound) {
			out = append(out, model.Violation{Code: model.CodeRange, Message: "must be on or after " + min})
		}
	}
	if max := optionString(options, "max"); max != "" {
		if bound, err := time.Parse(dateLayout, max); err == nil && date.After(bound) {
			out = append(out, model.Violation{Code: model.CodeRange, Message: "must be on or before " + max})
		}
	}
	return out
}

func validateContainer(_ any, _ map[string]any) []model.Violation {
	return typeViolation("groups do not hold values")
}

// validateRepeater checks the entry list shape. Entry contents are validated
// per child field by the preview.
func validateRepeater(value any, options map[string]any) []model.Violation {
	entries, ok := toSlice(value)
	if !ok {
		return typeViolation("must be a list of entries")
	}
	var out []model.Violation
	for idx, entry := range entries {
		if _, ok := entry.(map[string]any); !ok {
			out = append(out, model.Violation{
				Code:    model.CodeType,
				Message: "each entry must be an object",
				Params:  map[string]string{"index": fmt.Sprint(idx)},
			})
		}
	}
	if min, ok := optionNumber(options, "minItems"); ok && float64(len(entries)) < min {
		out = append(out, model.Violation{Code: model.CodeItems, Message: fmt.Sprintf("add at least %s entries", formatNumber(min))})
	}
	if max, ok := optionNumber(options, "maxItems"); ok && float64(len(entries)) > max {
		out = append(out, model.Violation{Code: model.CodeItems, Message: fmt.Sprintf("add at most %s entries", formatNumber(max))})
	}
	return out
}
