// Package testsupport holds schema fixtures and helpers shared by package
// tests.
package testsupport

import (
	"context"
	"testing"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/store"
)

// ContactForm is a flat schema with one field per common kind.
func ContactForm() model.FormSchema {
	return model.FormSchema{
		Title:   "Contact",
		Version: 1,
		Fields: []model.FieldDefinition{
			{
				ID:       "name",
				Kind:     registry.KindText,
				Label:    "Name",
				Required: true,
				Order:    0,
				Options:  map[string]any{model.OptionPlaceholder: "Jane Doe"},
				ValidationRules: []model.ValidationRule{
					{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "2"}},
				},
			},
			{ID: "email", Kind: registry.KindEmail, Label: "Email", Required: true, Order: 1},
			{
				ID:      "topic",
				Kind:    registry.KindSelect,
				Label:   "Topic",
				Order:   2,
				Options: map[string]any{model.OptionChoices: []any{"sales", "support"}},
			},
			{
				ID:      "message",
				Kind:    registry.KindTextarea,
				Label:   "Message",
				Order:   3,
				Options: map[string]any{"rows": float64(4), model.OptionHelpText: "Tell us <b>more</b>"},
			},
			{ID: "consent", Kind: registry.KindCheckbox, Label: "I agree", Required: true, Order: 4},
		},
	}
}

// SignupForm nests a group and a repeater and hides the company section
// unless the account type is "business".
func SignupForm() model.FormSchema {
	return model.FormSchema{
		Title:   "Signup",
		Version: 2,
		Fields: []model.FieldDefinition{
			{
				ID:       "account",
				Kind:     registry.KindSelect,
				Label:    "Account type",
				Required: true,
				Order:    0,
				Options: map[string]any{model.OptionChoices: []any{
					map[string]any{"value": "personal", "label": "Personal"},
					map[string]any{"value": "business", "label": "Business"},
				}},
			},
			{
				ID:      "company",
				Kind:    registry.KindGroup,
				Label:   "Company",
				Order:   1,
				Options: map[string]any{model.OptionVisibleWhen: `account == "business"`},
				Children: []model.FieldDefinition{
					{ID: "company_name", Kind: registry.KindText, Label: "Company name", Required: true, Order: 0},
					{ID: "seats", Kind: registry.KindInteger, Label: "Seats", Order: 1, Options: map[string]any{"min": float64(1), "step": float64(1)}},
				},
			},
			{
				ID:      "contacts",
				Kind:    registry.KindRepeater,
				Label:   "Contacts",
				Order:   2,
				Options: map[string]any{"addLabel": "Add contact", "maxItems": float64(3)},
				Children: []model.FieldDefinition{
					{ID: "contact_name", Kind: registry.KindText, Label: "Name", Required: true, Order: 0},
					{ID: "contact_email", Kind: registry.KindEmail, Label: "Email", Order: 1},
				},
			},
			{ID: "newsletter", Kind: registry.KindCheckbox, Label: "Newsletter", Order: 3},
		},
	}
}

// MustStore returns a store seeded with schema and validated against the
// default registry.
func MustStore(t *testing.T, schema model.FormSchema) *store.Store {
	t.Helper()

	s, err := store.New(registry.Default(), store.WithInitial(schema))
	if err != nil {
		t.Fatalf("testsupport: new store: %v", err)
	}
	return s
}

// Context returns a context cancelled when the test ends.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
