package model_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

func knownKinds(kinds ...string) model.KindResolver {
	set := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		set[kind] = struct{}{}
	}
	return model.KindResolverFunc(func(kind string) bool {
		_, ok := set[kind]
		return ok
	})
}

func TestCheckStructure(t *testing.T) {
	resolver := knownKinds("text", "group")

	cases := []struct {
		name      string
		schema    model.FormSchema
		invariant model.Invariant
		fieldID   string
	}{
		{
			name: "valid nested",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "a", Kind: "text", Order: 0},
				{ID: "g", Kind: "group", Order: 1, Children: []model.FieldDefinition{
					{ID: "b", Kind: "text", Order: 0},
					{ID: "c", Kind: "text", Order: 1},
				}},
			}},
		},
		{
			name: "duplicate id across levels",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "a", Kind: "text", Order: 0},
				{ID: "g", Kind: "group", Order: 1, Children: []model.FieldDefinition{
					{ID: "a", Kind: "text", Order: 0},
				}},
			}},
			invariant: model.InvariantDuplicateID,
			fieldID:   "a",
		},
		{
			name: "gap in order",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "a", Kind: "text", Order: 0},
				{ID: "b", Kind: "text", Order: 2},
			}},
			invariant: model.InvariantOrder,
			fieldID:   "b",
		},
		{
			name: "order not starting at zero",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "a", Kind: "text", Order: 1},
			}},
			invariant: model.InvariantOrder,
			fieldID:   "a",
		},
		{
			name: "unknown kind",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "a", Kind: "rating", Order: 0},
			}},
			invariant: model.InvariantUnknownKind,
			fieldID:   "a",
		},
		{
			name: "blank id",
			schema: model.FormSchema{Fields: []model.FieldDefinition{
				{ID: "  ", Kind: "text", Order: 0},
			}},
			invariant: model.InvariantEmptyID,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := model.CheckStructure(tc.schema, resolver)
			if tc.invariant == "" {
				if err != nil {
					t.Fatalf("expected valid schema, got %v", err)
				}
				return
			}
			var invalid *model.InvalidSchemaError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidSchemaError, got %v", err)
			}
			if invalid.Invariant != tc.invariant {
				t.Fatalf("invariant: want %q, got %q", tc.invariant, invalid.Invariant)
			}
			if invalid.FieldID != tc.fieldID {
				t.Fatalf("field id: want %q, got %q", tc.fieldID, invalid.FieldID)
			}
			if !errors.Is(err, model.ErrInvalidSchema) {
				t.Fatalf("expected errors.Is ErrInvalidSchema")
			}
		})
	}
}

func TestCheckStructure_UnknownKindUnwraps(t *testing.T) {
	schema := model.FormSchema{Fields: []model.FieldDefinition{{ID: "a", Kind: "rating"}}}
	err := model.CheckStructure(schema, knownKinds("text"))

	var unknown *model.UnknownKindError
	if !errors.As(err, &unknown) || unknown.Kind != "rating" {
		t.Fatalf("expected wrapped UnknownKindError, got %v", err)
	}
}

func TestCheckStructure_NilResolverSkipsKinds(t *testing.T) {
	schema := model.FormSchema{Fields: []model.FieldDefinition{{ID: "a", Kind: "anything"}}}
	if err := model.CheckStructure(schema, nil); err != nil {
		t.Fatalf("expected nil resolver to skip kind checks, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := model.FormSchema{
		Title: "Survey",
		Fields: []model.FieldDefinition{{
			ID:      "color",
			Kind:    "select",
			Options: map[string]any{"choices": []any{"red", "blue"}},
			ValidationRules: []model.ValidationRule{
				{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "1"}},
			},
			Children: []model.FieldDefinition{{ID: "nested", Kind: "text"}},
		}},
	}

	clone := original.Clone()
	clone.Fields[0].Options["choices"].([]any)[0] = "green"
	clone.Fields[0].ValidationRules[0].Params["value"] = "9"
	clone.Fields[0].Children[0].ID = "changed"

	if diff := cmp.Diff("red", original.Fields[0].Options["choices"].([]any)[0]); diff != "" {
		t.Fatalf("options leaked into original (-want +got):\n%s", diff)
	}
	if original.Fields[0].ValidationRules[0].Params["value"] != "1" {
		t.Fatalf("rule params leaked into original")
	}
	if original.Fields[0].Children[0].ID != "nested" {
		t.Fatalf("children leaked into original")
	}
}

func TestNormalizeOptions(t *testing.T) {
	got := model.NormalizeOptions(map[string]any{
		"max":     10,
		"choices": []string{"a", "b"},
		"nested":  map[string]any{"step": int64(2)},
	})
	want := map[string]any{
		"max":     float64(10),
		"choices": []any{"a", "b"},
		"nested":  map[string]any{"step": float64(2)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized options mismatch (-want +got):\n%s", diff)
	}
}

func TestIsEmptyValue(t *testing.T) {
	cases := map[string]struct {
		value any
		empty bool
	}{
		"nil":          {nil, true},
		"blank string": {"   ", true},
		"string":       {"x", false},
		"false":        {false, false},
		"zero":         {0, false},
		"empty slice":  {[]any{}, true},
		"slice":        {[]any{"a"}, false},
		"empty map":    {map[string]any{}, true},
		"typed slice":  {[]int{}, true},
	}
	for name, tc := range cases {
		if got := model.IsEmptyValue(tc.value); got != tc.empty {
			t.Errorf("%s: want %v, got %v", name, tc.empty, got)
		}
	}
}

func TestDefaultLabel(t *testing.T) {
	cases := map[string]string{
		"text":         "Text",
		"multiSelect":  "Multi Select",
		"multi_select": "Multi Select",
		"address-line": "Address Line",
		"step2":        "Step 2",
		"":             "",
	}
	for input, want := range cases {
		if got := model.DefaultLabel(input); got != want {
			t.Errorf("DefaultLabel(%q): want %q, got %q", input, want, got)
		}
	}
}

func TestFieldPatchApply(t *testing.T) {
	field := model.FieldDefinition{ID: "a", Kind: "text", Label: "Old"}
	label := "New"
	required := true
	rules := []model.ValidationRule{{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "5"}}}

	model.FieldPatch{
		Label:           &label,
		Required:        &required,
		Options:         map[string]any{"placeholder": "type here", "rows": 3},
		ValidationRules: &rules,
	}.Apply(&field)

	want := model.FieldDefinition{
		ID:              "a",
		Kind:            "text",
		Label:           "New",
		Required:        true,
		Options:         map[string]any{"placeholder": "type here", "rows": float64(3)},
		ValidationRules: rules,
	}
	if diff := cmp.Diff(want, field); diff != "" {
		t.Fatalf("patched field mismatch (-want +got):\n%s", diff)
	}
}
