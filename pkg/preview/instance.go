// Package preview turns a schema into a live form instance: it stores
// values, runs validation through the field registry, and tracks
// violations and overall validity. View exposes the state as a tree that
// renderers consume.
package preview

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/visibility"
)

// entry is the per-field bookkeeping of an instance.
type entry struct {
	field      model.FieldDefinition
	descriptor registry.Descriptor
	parent     string
	// settable is false for groups and for fields under a repeater.
	settable bool
}

// Instance is the runtime state of one form preview. It is safe for
// concurrent use, although sessions drive it from a single goroutine.
type Instance struct {
	mu         sync.RWMutex
	schema     model.FormSchema
	registry   *registry.Registry
	visibility visibility.Evaluator
	extras     map[string]any
	prefill    map[string]any

	entries    map[string]*entry
	order      []string
	values     map[string]any
	violations map[string][]model.Violation
}

// New builds an instance for schema. Every kind must resolve in reg;
// otherwise *model.UnknownKindError is returned.
func New(schema model.FormSchema, reg *registry.Registry, options ...Option) (*Instance, error) {
	if reg == nil {
		return nil, fmt.Errorf("preview: registry is required")
	}
	inst := &Instance{
		schema:     schema.Clone(),
		registry:   reg,
		visibility: visibility.Always,
		entries:    make(map[string]*entry),
		values:     make(map[string]any),
		violations: make(map[string][]model.Violation),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(inst)
	}

	if err := inst.index(inst.schema.Fields, "", false); err != nil {
		return nil, err
	}

	for id, value := range inst.prefill {
		e, ok := inst.entries[id]
		if !ok || !e.settable || model.IsEmptyValue(value) {
			continue
		}
		inst.values[id] = model.CloneValue(value)
		inst.violations[id] = inst.check(e, value, false)
	}
	inst.seedDefaults()
	inst.prefill = nil
	return inst, nil
}

// seedDefaults stores the "default" option of every settable field that was
// not prefilled.
func (i *Instance) seedDefaults() {
	for _, id := range i.order {
		e := i.entries[id]
		if !e.settable {
			continue
		}
		if _, given := i.prefill[id]; given {
			continue
		}
		def, ok := e.field.Options[model.OptionDefault]
		if !ok || model.IsEmptyValue(def) {
			continue
		}
		i.values[id] = model.CloneValue(def)
		i.violations[id] = i.check(e, def, false)
	}
}

func (i *Instance) index(fields []model.FieldDefinition, parent string, templated bool) error {
	for _, field := range fields {
		descriptor, err := i.registry.Resolve(field.Kind)
		if err != nil {
			return err
		}
		i.entries[field.ID] = &entry{
			field:      field,
			descriptor: descriptor,
			parent:     parent,
			settable:   !templated && descriptor.HoldsValue(),
		}
		i.order = append(i.order, field.ID)
		if err := i.index(field.Children, field.ID, templated || descriptor.Render.Repeatable); err != nil {
			return err
		}
	}
	return nil
}

// Schema returns a copy of the schema the instance was built from.
func (i *Instance) Schema() model.FormSchema {
	return i.schema.Clone()
}

// Registry returns the registry used for validation.
func (i *Instance) Registry() *registry.Registry {
	return i.registry
}

// SetValue stores value for fieldID and re-validates that field, including
// the required check.
func (i *Instance) SetValue(fieldID string, value any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, err := i.settable(fieldID)
	if err != nil {
		return err
	}
	if model.IsEmptyValue(value) {
		delete(i.values, fieldID)
	} else {
		i.values[fieldID] = model.CloneValue(value)
	}
	i.violations[fieldID] = i.check(e, value, true)
	return nil
}

// Clear unsets the value of fieldID and drops its violations.
func (i *Instance) Clear(fieldID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := i.settable(fieldID); err != nil {
		return err
	}
	delete(i.values, fieldID)
	delete(i.violations, fieldID)
	return nil
}

// ValidateAll re-runs validation for every visible field. Required fields
// without a value get a RequiredFieldMissing violation; hidden fields are
// cleared of violations.
func (i *Instance) ValidateAll() {
	i.mu.Lock()
	defer i.mu.Unlock()

	hidden := i.hiddenSet()
	for _, id := range i.order {
		e := i.entries[id]
		if !e.settable {
			continue
		}
		if hidden[id] {
			delete(i.violations, id)
			continue
		}
		i.violations[id] = i.check(e, i.values[id], true)
	}
}

// IsValid reports whether no visible field has violations and every
// required visible field is populated.
func (i *Instance) IsValid() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.valid(i.hiddenSet())
}

func (i *Instance) valid(hidden map[string]bool) bool {
	for _, id := range i.order {
		e := i.entries[id]
		if !e.settable || hidden[id] {
			continue
		}
		if len(i.violations[id]) > 0 {
			return false
		}
		if e.field.Required && missing(e.descriptor, i.values[id]) {
			return false
		}
	}
	return true
}

// Value returns the stored value for fieldID.
func (i *Instance) Value(fieldID string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	value, ok := i.values[fieldID]
	if !ok {
		return nil, false
	}
	return model.CloneValue(value), true
}

// Values returns every stored value, hidden fields included. Sessions use it
// to carry values into a rebuilt instance.
func (i *Instance) Values() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.values))
	for id, value := range i.values {
		out[id] = model.CloneValue(value)
	}
	return out
}

// Violations returns the current violations of fieldID. Hidden fields have
// none.
func (i *Instance) Violations(fieldID string) []model.Violation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.hiddenSet()[fieldID] {
		return nil
	}
	return append([]model.Violation(nil), i.violations[fieldID]...)
}

// AllViolations maps visible field ids to their non-empty violation lists.
func (i *Instance) AllViolations() map[string][]model.Violation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	hidden := i.hiddenSet()
	out := make(map[string][]model.Violation)
	for id, list := range i.violations {
		if len(list) == 0 || hidden[id] {
			continue
		}
		out[id] = append([]model.Violation(nil), list...)
	}
	return out
}

// Snapshot maps field ids to values, omitting unset and hidden fields.
func (i *Instance) Snapshot() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	hidden := i.hiddenSet()
	out := make(map[string]any, len(i.values))
	for id, value := range i.values {
		if hidden[id] {
			continue
		}
		out[id] = model.CloneValue(value)
	}
	return out
}

// Hidden reports whether fieldID is hidden by a visibility rule on itself or
// an ancestor.
func (i *Instance) Hidden(fieldID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.hiddenSet()[fieldID]
}

// FieldIDs lists every field id in document order.
func (i *Instance) FieldIDs() []string {
	return append([]string(nil), i.order...)
}

func (i *Instance) settable(fieldID string) (*entry, error) {
	e, ok := i.entries[fieldID]
	if !ok {
		return nil, &model.FieldNotFoundError{ID: fieldID}
	}
	if !e.settable {
		return nil, notValueField(fieldID, e.field.Kind)
	}
	return e, nil
}

// hiddenSet evaluates visibility for every field. Callers hold i.mu.
func (i *Instance) hiddenSet() map[string]bool {
	hidden := make(map[string]bool)
	ctx := visibility.Context{Values: i.values, Extras: i.extras}
	for _, id := range i.order {
		e := i.entries[id]
		if e.parent != "" && hidden[e.parent] {
			hidden[id] = true
			continue
		}
		rule, _ := e.field.Options[model.OptionVisibleWhen].(string)
		if rule == "" {
			continue
		}
		visible, err := i.visibility.Eval(id, rule, ctx)
		if err == nil && !visible {
			hidden[id] = true
		}
	}
	return hidden
}

// check validates one value against field e. Kind validators and rules only
// see non-empty values; required is reported separately.
func (i *Instance) check(e *entry, value any, withRequired bool) []model.Violation {
	if missing(e.descriptor, value) {
		if withRequired && e.field.Required {
			return []model.Violation{model.RequiredFieldMissing()}
		}
		if model.IsEmptyValue(value) {
			return nil
		}
	}

	violations := e.descriptor.Validator(value, e.field.Options)
	violations = append(violations, i.registry.ValidateRules(e.field.ValidationRules, value)...)
	if e.descriptor.Render.Repeatable {
		violations = append(violations, i.checkEntries(e, value)...)
	}
	return violations
}

// checkEntries validates each repeater entry against the repeater's
// children. Violations carry the entry index and child id in Params.
func (i *Instance) checkEntries(repeater *entry, value any) []model.Violation {
	list, ok := model.NormalizeValue(value).([]any)
	if !ok {
		return nil
	}
	children := i.templateFields(repeater.field.Children)

	var out []model.Violation
	for idx, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, child := range children {
			for _, v := range i.check(child, item[child.field.ID], true) {
				params := make(map[string]string, len(v.Params)+2)
				for k, p := range v.Params {
					params[k] = p
				}
				params["index"] = fmt.Sprint(idx)
				params["field"] = child.field.ID
				v.Params = params
				out = append(out, v)
			}
		}
		for _, key := range unknownKeys(item, children) {
			out = append(out, model.Violation{
				Code:    model.CodeType,
				Message: fmt.Sprintf("entry has unknown field %q", key),
				Params:  map[string]string{"index": fmt.Sprint(idx), "field": key},
			})
		}
	}
	return out
}

// templateFields flattens the value-holding fields under a repeater. Groups
// inside a repeater only structure the entry; nested repeaters stay as one
// list-valued key.
func (i *Instance) templateFields(fields []model.FieldDefinition) []*entry {
	var out []*entry
	for _, field := range fields {
		e := i.entries[field.ID]
		if e == nil {
			continue
		}
		if e.descriptor.HoldsValue() {
			out = append(out, e)
			continue
		}
		out = append(out, i.templateFields(field.Children)...)
	}
	return out
}

func unknownKeys(item map[string]any, children []*entry) []string {
	known := make(map[string]struct{}, len(children))
	for _, child := range children {
		known[child.field.ID] = struct{}{}
	}
	var out []string
	for key := range item {
		if _, ok := known[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// missing reports whether value does not satisfy a required field: empty
// values, and false for boolean kinds.
func missing(descriptor registry.Descriptor, value any) bool {
	if model.IsEmptyValue(value) {
		return true
	}
	if descriptor.ValueType == model.ValueTypeBoolean {
		switch typed := value.(type) {
		case bool:
			return !typed
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(typed))
			return err == nil && !b
		}
	}
	return false
}
