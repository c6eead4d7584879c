// Package tui fills a preview from the terminal. Each visible field is asked
// in document order through a PromptDriver; answers go through
// preview.Instance.SetValue and a field is asked again while it has
// violations. The collected snapshot is the render output.
package tui

import (
	"context"
	"errors"
	"fmt"
	stdhtml "html"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/preview"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/render"
)

// Name is the renderer name used in render.Registry.
const Name = "tui"

const noneOption = "(none)"

// ErrInvalidForm is returned when the filled form still has violations,
// e.g. from rules spanning several fields.
var ErrInvalidForm = errors.New("tui: form has violations")

// Renderer implements render.Renderer for terminal sessions.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	maxAttempts       int
	submitTransformer SubmitTransformer
	theme             Theme
	plain             *bluemonday.Policy
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a renderer with the survey driver and JSON output.
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		maxAttempts:  defaultMaxAttempts,
		theme:        Theme{ErrorPrefix: "! "},
		plain:        bluemonday.StrictPolicy(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", r.outputFormat)
	}
	return r, nil
}

func (r *Renderer) Name() string { return Name }

// ContentType reports the serialization used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Render asks every visible field and returns the serialized snapshot.
// Visibility is re-evaluated after each answer, so fields revealed by an
// earlier answer are asked too.
func (r *Renderer) Render(ctx context.Context, instance *preview.Instance) ([]byte, error) {
	if instance == nil {
		return nil, errors.New("tui: instance is required")
	}

	if title := r.text(instance.View().Title); title != "" {
		if err := r.driver.Info(ctx, r.theme.InfoPrefix+title); err != nil {
			return nil, err
		}
	}

	asked := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, ok := nextField(instance.View().Fields, asked)
		if !ok {
			break
		}
		asked[next.ID] = true
		if err := r.fill(ctx, instance, next); err != nil {
			return nil, err
		}
	}

	instance.ValidateAll()
	if !instance.IsValid() {
		return nil, fmt.Errorf("%w: %d field(s)", ErrInvalidForm, len(instance.AllViolations()))
	}

	values := instance.Snapshot()
	if r.submitTransformer != nil {
		var err error
		if values, err = r.submitTransformer(values); err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(instance.View(), values)
}

// nextField returns the first visible, settable field not asked yet.
func nextField(views []preview.FieldView, asked map[string]bool) (preview.FieldView, bool) {
	for _, view := range views {
		if view.Hidden {
			continue
		}
		if view.Container && !view.Repeatable {
			if found, ok := nextField(view.Children, asked); ok {
				return found, true
			}
			continue
		}
		if view.Settable && !asked[view.ID] {
			return view, true
		}
	}
	return preview.FieldView{}, false
}

func (r *Renderer) fill(ctx context.Context, instance *preview.Instance, field preview.FieldView) error {
	for attempt := 1; ; attempt++ {
		value, err := r.ask(ctx, field)
		if err != nil {
			return err
		}
		if err := instance.SetValue(field.ID, value); err != nil {
			return err
		}
		violations := instance.Violations(field.ID)
		if len(violations) == 0 {
			return nil
		}
		for _, v := range violations {
			label := r.text(field.Label)
			if child, ok := v.Params["field"]; ok {
				label = fmt.Sprintf("%s[%s].%s", label, v.Params["index"], child)
			}
			msg := fmt.Sprintf("%s%s: %s", r.theme.ErrorPrefix, label, v.Message)
			if err := r.driver.Info(ctx, msg); err != nil {
				return err
			}
		}
		if attempt >= r.maxAttempts {
			return fmt.Errorf("%w: %s", ErrTooManyAttempts, field.ID)
		}
		field.Value, _ = instance.Value(field.ID)
	}
}

func (r *Renderer) ask(ctx context.Context, field preview.FieldView) (any, error) {
	message := r.message(field)
	help := r.text(field.HelpText)

	switch field.Widget {
	case registry.WidgetCheckbox:
		return r.driver.Confirm(ctx, ConfirmConfig{Message: message, Help: help, Default: isChecked(field.Value)})
	case registry.WidgetSelect:
		if field.Multiple {
			return r.askMany(ctx, field, message, help)
		}
		return r.askOne(ctx, field, message, help)
	case registry.WidgetTextarea:
		return r.driver.TextArea(ctx, TextAreaConfig{Message: message, Help: help, Default: display(field.Value)})
	case registry.WidgetRepeater:
		return r.askEntries(ctx, field, message, help)
	}

	answer, err := r.driver.Input(ctx, InputConfig{
		Message: message,
		Help:    help,
		Default: display(field.Value),
		Secret:  field.Options["secret"] == true,
	})
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if field.InputType == "number" && answer != "" {
		// unparsable input goes through as text so the kind validator
		// reports it
		if n, err := strconv.ParseFloat(answer, 64); err == nil {
			return n, nil
		}
	}
	return answer, nil
}

func (r *Renderer) askOne(ctx context.Context, field preview.FieldView, message, help string) (any, error) {
	var labels []string
	offset := 0
	if !field.Required {
		labels = append(labels, noneOption)
		offset = 1
	}
	defaultIndex := 0
	for idx, choice := range field.Choices {
		labels = append(labels, r.text(choice.Label))
		if choice.Selected {
			defaultIndex = idx + offset
		}
	}

	picked, err := r.driver.Select(ctx, SelectConfig{Message: message, Help: help, Options: labels, DefaultIndex: defaultIndex})
	if err != nil {
		return nil, err
	}
	picked -= offset
	if picked < 0 || picked >= len(field.Choices) {
		return nil, nil
	}
	return field.Choices[picked].Value, nil
}

func (r *Renderer) askMany(ctx context.Context, field preview.FieldView, message, help string) (any, error) {
	labels := make([]string, len(field.Choices))
	var defaults []int
	for idx, choice := range field.Choices {
		labels[idx] = r.text(choice.Label)
		if choice.Selected {
			defaults = append(defaults, idx)
		}
	}

	picked, err := r.driver.MultiSelect(ctx, SelectConfig{Message: message, Help: help, Options: labels, Defaults: defaults})
	if err != nil {
		return nil, err
	}
	var out []any
	for _, idx := range picked {
		if idx >= 0 && idx < len(field.Choices) {
			out = append(out, field.Choices[idx].Value)
		}
	}
	return out, nil
}

// askEntries collects repeater entries until the user declines another one
// or maxItems is reached.
func (r *Renderer) askEntries(ctx context.Context, field preview.FieldView, message, help string) (any, error) {
	template := entryFields(field.Children)
	maxItems := 0
	if n, ok := model.NormalizeValue(field.Options["maxItems"]).(float64); ok {
		maxItems = int(n)
	}

	var entries []any
	for maxItems <= 0 || len(entries) < maxItems {
		more, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("%s: add entry %d?", message, len(entries)+1),
			Help:    help,
			Default: len(entries) == 0 && field.Required,
		})
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		entry := make(map[string]any, len(template))
		for _, child := range template {
			value, err := r.ask(ctx, child)
			if err != nil {
				return nil, err
			}
			if !model.IsEmptyValue(value) {
				entry[child.ID] = value
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// entryFields lists the value fields of a repeater entry, looking through
// groups. Nested repeaters are not supported inside entries.
func entryFields(children []preview.FieldView) []preview.FieldView {
	var out []preview.FieldView
	for _, child := range children {
		switch {
		case child.Repeatable:
		case child.Container:
			out = append(out, entryFields(child.Children)...)
		default:
			child.Value = nil
			out = append(out, child)
		}
	}
	return out
}

func (r *Renderer) message(field preview.FieldView) string {
	label := r.text(field.Label)
	if label == "" {
		label = field.ID
	}
	if field.Required {
		label += " *"
	}
	return label
}

// text strips markup from labels and help text for terminal output.
func (r *Renderer) text(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(r.plain.Sanitize(s)))
}

func (r *Renderer) serialize(view preview.View, values map[string]any) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(encodeForm(values).Encode()), nil
	case OutputFormatPrettyText:
		var b strings.Builder
		r.pretty(&b, view.Fields, values, "")
		return []byte(b.String()), nil
	default:
		out, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("tui: encode snapshot: %w", err)
		}
		return append(out, '\n'), nil
	}
}

func (r *Renderer) pretty(b *strings.Builder, views []preview.FieldView, values map[string]any, indent string) {
	for _, view := range views {
		if view.Hidden {
			continue
		}
		label := r.text(view.Label)
		if view.Container && !view.Repeatable {
			fmt.Fprintf(b, "%s%s\n", indent, label)
			r.pretty(b, view.Children, values, indent+"  ")
			continue
		}
		value, ok := values[view.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "%s%s: %s\n", indent, label, display(value))
	}
}

func encodeForm(values map[string]any) url.Values {
	form := url.Values{}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch v := model.NormalizeValue(values[key]).(type) {
		case []any:
			for idx, item := range v {
				entry, ok := item.(map[string]any)
				if !ok {
					form.Add(key, display(item))
					continue
				}
				for child, childValue := range entry {
					form.Add(fmt.Sprintf("%s[%d][%s]", key, idx, child), display(childValue))
				}
			}
		default:
			form.Set(key, display(v))
		}
	}
	return form
}

func display(value any) string {
	switch v := model.NormalizeValue(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, display(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+"="+display(v[key]))
		}
		return "{" + strings.Join(parts, " ") + "}"
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
