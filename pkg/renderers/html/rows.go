package html

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/preview"
)

const (
	rowOpen  = "open"
	rowField = "field"
	rowClose = "close"
)

// row is one step of the flattened field tree. Containers contribute an
// open and a close row around their children so the template stays flat.
type row struct {
	Kind  string
	Field fieldRow
}

type fieldRow struct {
	ID          string
	Name        string
	ControlID   string
	Kind        string
	Widget      string
	InputType   string
	Label       string
	HelpText    string
	Placeholder string
	Value       string
	Rows        int
	Entries     int
	Required    bool
	Multiple    bool
	Checked     bool
	Hidden      bool
	Repeatable  bool
	Template    bool
	Choices     []preview.Choice
	Messages    []string
}

// rows flattens views. template is the repeater id when the views are the
// entry template of a repeater.
func (r *Renderer) rows(views []preview.FieldView, template string, serverErrors map[string][]string) []row {
	var out []row
	for _, view := range views {
		f := r.fieldRow(view, template, serverErrors[view.ID])
		if !view.Container {
			out = append(out, row{Kind: rowField, Field: f})
			continue
		}

		childTemplate := template
		if view.Repeatable {
			childTemplate = view.ID
			f.Entries = countEntries(view.Value)
		}
		out = append(out, row{Kind: rowOpen, Field: f})
		out = append(out, r.rows(view.Children, childTemplate, serverErrors)...)
		out = append(out, row{Kind: rowClose, Field: f})
	}
	return out
}

func (r *Renderer) fieldRow(view preview.FieldView, template string, serverErrors []string) fieldRow {
	name := view.ID
	if template != "" {
		name = fmt.Sprintf("%s[][%s]", template, view.ID)
	}
	f := fieldRow{
		ID:          view.ID,
		Name:        name,
		ControlID:   "fb-" + view.ID,
		Kind:        view.Kind,
		Widget:      view.Widget,
		InputType:   view.InputType,
		Label:       r.policy.Sanitize(view.Label),
		HelpText:    r.policy.Sanitize(view.HelpText),
		Placeholder: view.Placeholder,
		Required:    view.Required,
		Multiple:    view.Multiple,
		Hidden:      view.Hidden,
		Repeatable:  view.Repeatable,
		Template:    template != "",
		Choices:     view.Choices,
		Rows:        intOption(view.Options, "rows"),
	}
	if f.InputType == "" {
		f.InputType = "text"
	}
	if !view.Container {
		f.Value = valueText(view.Value)
		f.Checked = isChecked(view.Value)
	}
	for _, v := range view.Violations {
		f.Messages = append(f.Messages, v.Message)
	}
	f.Messages = append(f.Messages, serverErrors...)
	return f
}

func valueText(value any) string {
	switch v := model.NormalizeValue(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, valueText(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func isChecked(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		checked, _ := strconv.ParseBool(v)
		return checked
	}
	return false
}

func countEntries(value any) int {
	if items, ok := model.NormalizeValue(value).([]any); ok {
		return len(items)
	}
	return 0
}

func intOption(options map[string]any, key string) int {
	if n, ok := model.NormalizeValue(options[key]).(float64); ok && n > 0 {
		return int(n)
	}
	return 0
}
