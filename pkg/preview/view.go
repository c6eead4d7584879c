package preview

import (
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

// View is a render-ready projection of an instance. Building it has no side
// effects; two calls on an unchanged instance return equal views.
type View struct {
	Title   string      `json:"title"`
	Version int         `json:"version"`
	Valid   bool        `json:"valid"`
	Fields  []FieldView `json:"fields"`
}

// Choice is one selectable option of a choice field.
type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// FieldView describes one field as a renderer needs it.
type FieldView struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Label       string            `json:"label"`
	Required    bool              `json:"required"`
	Widget      string            `json:"widget"`
	InputType   string            `json:"inputType,omitempty"`
	Multiple    bool              `json:"multiple,omitempty"`
	Container   bool              `json:"container,omitempty"`
	Repeatable  bool              `json:"repeatable,omitempty"`
	Settable    bool              `json:"settable"`
	Placeholder string            `json:"placeholder,omitempty"`
	HelpText    string            `json:"helpText,omitempty"`
	Choices     []Choice          `json:"choices,omitempty"`
	Options     map[string]any    `json:"options,omitempty"`
	Value       any               `json:"value,omitempty"`
	Violations  []model.Violation `json:"violations,omitempty"`
	Hidden      bool              `json:"hidden,omitempty"`
	Children    []FieldView       `json:"children,omitempty"`
}

// View projects the schema, descriptors and current state into a tree.
func (i *Instance) View() View {
	i.mu.RLock()
	defer i.mu.RUnlock()

	hidden := i.hiddenSet()
	return View{
		Title:   i.schema.Title,
		Version: i.schema.Version,
		Valid:   i.valid(hidden),
		Fields:  i.fieldViews(i.schema.Fields, hidden),
	}
}

func (i *Instance) fieldViews(fields []model.FieldDefinition, hidden map[string]bool) []FieldView {
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldView, 0, len(fields))
	for _, field := range fields {
		e := i.entries[field.ID]
		render := e.descriptor.Render
		view := FieldView{
			ID:          field.ID,
			Kind:        field.Kind,
			Label:       field.Label,
			Required:    field.Required,
			Widget:      render.Widget,
			InputType:   render.InputType,
			Multiple:    render.Multiple,
			Container:   render.Container,
			Repeatable:  render.Repeatable,
			Settable:    e.settable,
			Placeholder: optionText(field.Options, model.OptionPlaceholder),
			HelpText:    optionText(field.Options, model.OptionHelpText),
			Options:     model.NormalizeOptions(field.Options),
			Hidden:      hidden[field.ID],
			Children:    i.fieldViews(field.Children, hidden),
		}
		if value, ok := i.values[field.ID]; ok {
			view.Value = model.CloneValue(value)
		}
		if !view.Hidden && len(i.violations[field.ID]) > 0 {
			view.Violations = append([]model.Violation(nil), i.violations[field.ID]...)
		}
		if render.HasChoices {
			view.Choices = choices(field.Options, view.Value)
		}
		out = append(out, view)
	}
	return out
}

func choices(options map[string]any, current any) []Choice {
	values := registry.ChoiceValues(options)
	labels := registry.ChoiceLabels(options)
	selected := make(map[string]bool)
	switch typed := model.NormalizeValue(current).(type) {
	case string:
		selected[typed] = true
	case []any:
		for _, item := range typed {
			if s, ok := item.(string); ok {
				selected[s] = true
			}
		}
	}
	out := make([]Choice, len(values))
	for idx, value := range values {
		out[idx] = Choice{Value: value, Label: labels[idx], Selected: selected[value]}
	}
	return out
}

func optionText(options map[string]any, key string) string {
	text, _ := options[key].(string)
	return text
}
