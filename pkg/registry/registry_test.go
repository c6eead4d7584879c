package registry_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

func noopValidator(any, map[string]any) []model.Violation { return nil }

func TestRegister_DuplicateKind(t *testing.T) {
	reg := registry.New()
	if err := reg.Register("rating", registry.Descriptor{Validator: noopValidator}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := reg.Register("rating", registry.Descriptor{Validator: noopValidator})
	var dup *model.DuplicateKindError
	if !errors.As(err, &dup) || dup.Kind != "rating" {
		t.Fatalf("expected DuplicateKindError, got %v", err)
	}
	if !errors.Is(err, model.ErrDuplicateKind) {
		t.Fatalf("expected errors.Is ErrDuplicateKind")
	}
}

func TestRegister_RejectsIncompleteDescriptors(t *testing.T) {
	reg := registry.New()
	if err := reg.Register(" ", registry.Descriptor{Validator: noopValidator}); err == nil {
		t.Fatalf("expected empty kind to be rejected")
	}
	if err := reg.Register("rating", registry.Descriptor{}); err == nil {
		t.Fatalf("expected nil validator to be rejected")
	}
}

func TestFreeze(t *testing.T) {
	reg := registry.New()
	reg.Freeze()
	if err := reg.Register("rating", registry.Descriptor{Validator: noopValidator}); !errors.Is(err, registry.ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
}

func TestDefaultIsFrozenAndComplete(t *testing.T) {
	reg := registry.Default()
	if reg != registry.Default() {
		t.Fatalf("Default must return the same instance")
	}

	want := []string{
		registry.KindCheckbox, registry.KindDate, registry.KindEmail, registry.KindGroup,
		registry.KindInteger, registry.KindMultiSelect, registry.KindNumber, registry.KindRepeater,
		registry.KindSelect, registry.KindText, registry.KindTextarea,
	}
	if diff := cmp.Diff(want, reg.Kinds()); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if err := reg.Register("extra", registry.Descriptor{Validator: noopValidator}); !errors.Is(err, registry.ErrFrozen) {
		t.Fatalf("expected default registry to be frozen, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	reg := registry.Default()

	descriptor, err := reg.Resolve(registry.KindGroup)
	if err != nil {
		t.Fatalf("resolve group: %v", err)
	}
	if !descriptor.Render.Container || descriptor.HoldsValue() {
		t.Fatalf("group should be a value-less container: %+v", descriptor.Render)
	}

	_, err = reg.Resolve("signature")
	var unknown *model.UnknownKindError
	if !errors.As(err, &unknown) || unknown.Kind != "signature" {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}
}

func TestResolve_ReturnsIsolatedDefaults(t *testing.T) {
	reg := registry.Default()
	first, _ := reg.Resolve(registry.KindSelect)
	first.DefaultOptions[model.OptionChoices] = []any{"mutated"}

	second, _ := reg.Resolve(registry.KindSelect)
	if diff := cmp.Diff([]any{}, second.DefaultOptions[model.OptionChoices]); diff != "" {
		t.Fatalf("default options leaked between resolves (-want +got):\n%s", diff)
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	_, err := registry.Default().Validate("signature", "x", nil)
	if !errors.Is(err, model.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func codes(violations []model.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidate_Builtins(t *testing.T) {
	reg := registry.Default()
	colors := map[string]any{model.OptionChoices: []any{"red", map[string]any{"value": "blue", "label": "Blue"}}}

	cases := []struct {
		name    string
		kind    string
		value   any
		options map[string]any
		want    []string
	}{
		{"text ok", registry.KindText, "hello", nil, []string{}},
		{"text wrong type", registry.KindText, 42, nil, []string{model.CodeType}},
		{"text max length option", registry.KindText, "hello", map[string]any{"maxLength": 3}, []string{model.CodeLength}},
		{"empty value skipped", registry.KindNumber, "", nil, []string{}},
		{"email ok", registry.KindEmail, "a@example.com", nil, []string{}},
		{"email invalid", registry.KindEmail, "nope", nil, []string{model.CodeFormat}},
		{"number from string", registry.KindNumber, "3.5", nil, []string{}},
		{"number bounds", registry.KindNumber, 11, map[string]any{"min": 0, "max": 10}, []string{model.CodeRange}},
		{"number not numeric", registry.KindNumber, "abc", nil, []string{model.CodeType}},
		{"integer fraction", registry.KindInteger, 2.5, nil, []string{model.CodeType}},
		{"integer ok", registry.KindInteger, float64(3), nil, []string{}},
		{"select plain choice", registry.KindSelect, "red", colors, []string{}},
		{"select object choice", registry.KindSelect, "blue", colors, []string{}},
		{"select unknown choice", registry.KindSelect, "green", colors, []string{model.CodeChoice}},
		{"select list rejected", registry.KindSelect, []any{"red"}, colors, []string{model.CodeType}},
		{"multiselect ok", registry.KindMultiSelect, []string{"red", "blue"}, colors, []string{}},
		{"multiselect unknown", registry.KindMultiSelect, []any{"red", "green"}, colors, []string{model.CodeChoice}},
		{"checkbox bool", registry.KindCheckbox, false, nil, []string{}},
		{"checkbox string", registry.KindCheckbox, "true", nil, []string{}},
		{"checkbox garbage", registry.KindCheckbox, "maybe", nil, []string{model.CodeType}},
		{"date ok", registry.KindDate, "2024-02-29", nil, []string{}},
		{"date bad format", registry.KindDate, "29/02/2024", nil, []string{model.CodeFormat}},
		{"date after max", registry.KindDate, "2025-01-02", map[string]any{"max": "2025-01-01"}, []string{model.CodeRange}},
		{"group holds no value", registry.KindGroup, "x", nil, []string{model.CodeType}},
		{"repeater entries", registry.KindRepeater, []any{map[string]any{"a": "b"}}, nil, []string{}},
		{"repeater bad entry", registry.KindRepeater, []any{"b"}, nil, []string{model.CodeType}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := reg.Validate(tc.kind, tc.value, tc.options)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if diff := cmp.Diff(tc.want, codes(got)); diff != "" {
				t.Fatalf("violation codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRules(t *testing.T) {
	reg := registry.Default()

	cases := []struct {
		name  string
		rules []model.ValidationRule
		value any
		want  []string
	}{
		{
			name:  "min length",
			rules: []model.ValidationRule{{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "3"}}},
			value: "ab",
			want:  []string{model.CodeLength},
		},
		{
			name:  "max length counts runes",
			rules: []model.ValidationRule{{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "3"}}},
			value: "äöü",
			want:  []string{},
		},
		{
			name:  "exclusive max",
			rules: []model.ValidationRule{{Kind: model.ValidationRuleMax, Params: map[string]string{"value": "10", "exclusive": "true"}}},
			value: 10,
			want:  []string{model.CodeRange},
		},
		{
			name:  "pattern",
			rules: []model.ValidationRule{{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": `^[A-Z]{3}$`}}},
			value: "abc",
			want:  []string{model.CodePattern},
		},
		{
			name:  "invalid pattern surfaces as rule violation",
			rules: []model.ValidationRule{{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": `(`}}},
			value: "abc",
			want:  []string{model.CodeRule},
		},
		{
			name:  "unknown rule",
			rules: []model.ValidationRule{{Kind: "luhn"}},
			value: "4111",
			want:  []string{model.CodeRule},
		},
		{
			name: "ordered accumulation",
			rules: []model.ValidationRule{
				{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "5"}},
				{Kind: model.ValidationRuleEmail},
			},
			value: "a@b",
			want:  []string{model.CodeLength, model.CodeFormat},
		},
		{
			name:  "empty value skips rules",
			rules: []model.ValidationRule{{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "5"}}},
			value: "",
			want:  []string{},
		},
		{
			name:  "min items",
			rules: []model.ValidationRule{{Kind: model.ValidationRuleMinItems, Params: map[string]string{"value": "2"}}},
			value: []any{"a"},
			want:  []string{model.CodeItems},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := reg.ValidateRules(tc.rules, tc.value)
			if diff := cmp.Diff(tc.want, codes(got)); diff != "" {
				t.Fatalf("violation codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRules_CustomMessage(t *testing.T) {
	rules := []model.ValidationRule{{
		Kind:   model.ValidationRuleMinLength,
		Params: map[string]string{"value": "4", "message": "PIN too short"},
	}}
	got := registry.Default().ValidateRules(rules, "12")
	want := []model.Violation{{
		Code:    model.CodeLength,
		Message: "PIN too short",
		Params:  map[string]string{"rule": model.ValidationRuleMinLength, "value": "4"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestChoiceLabels(t *testing.T) {
	options := map[string]any{model.OptionChoices: []any{"red", map[string]any{"value": "b", "label": "Blue"}, map[string]any{"value": "g"}}}
	if diff := cmp.Diff([]string{"red", "Blue", "g"}, registry.ChoiceLabels(options)); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"red", "b", "g"}, registry.ChoiceValues(options)); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}
