package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// ErrFrozen is returned by Register once the registry has been frozen.
var ErrFrozen = errors.New("registry: registry is frozen")

// Validator checks a non-empty value against kind-specific options and
// returns the violations found. Validators must be pure.
type Validator func(value any, options map[string]any) []model.Violation

// RenderDescriptor describes what a renderer needs to know about a kind. It
// is a capability description, not markup.
type RenderDescriptor struct {
	// Widget names the control renderers should use (input, textarea,
	// select, checkbox, fieldset, repeater).
	Widget string `json:"widget"`
	// InputType is the HTML-ish input type hint (text, email, number, date).
	InputType string `json:"inputType,omitempty"`
	// Multiple marks kinds whose value is a list of choices.
	Multiple bool `json:"multiple,omitempty"`
	// HasChoices marks kinds that read Options["choices"].
	HasChoices bool `json:"hasChoices,omitempty"`
	// Container marks kinds that accept child fields.
	Container bool `json:"container,omitempty"`
	// Repeatable marks containers whose children are repeated per entry.
	Repeatable bool `json:"repeatable,omitempty"`
}

// Descriptor is the catalog entry for a field kind.
type Descriptor struct {
	Kind           string
	ValueType      model.ValueType
	DefaultOptions map[string]any
	Validator      Validator
	Render         RenderDescriptor
}

// HoldsValue reports whether fields of this kind carry a value of their own.
func (d Descriptor) HoldsValue() bool {
	return d.ValueType != model.ValueTypeNone
}

// Registry catalogs field kinds. It is populated once at start-up and then
// treated as read-only; Freeze enforces that.
type Registry struct {
	mu     sync.RWMutex
	kinds  map[string]Descriptor
	frozen bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		kinds: make(map[string]Descriptor),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry holding the built-in kinds. It is
// populated on first use and frozen afterwards.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewWithBuiltins()
		defaultRegistry.Freeze()
	})
	return defaultRegistry
}

// NewWithBuiltins returns an unfrozen registry seeded with the built-in kinds
// so callers can add their own before freezing it.
func NewWithBuiltins() *Registry {
	reg := New()
	for _, descriptor := range builtins() {
		reg.MustRegister(descriptor.Kind, descriptor)
	}
	return reg
}

// Register adds a descriptor under kind. Registering the same kind twice
// returns *model.DuplicateKindError.
func (r *Registry) Register(kind string, descriptor Descriptor) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("registry: kind is required")
	}
	if descriptor.Validator == nil {
		return fmt.Errorf("registry: validator for %q is nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	if _, exists := r.kinds[kind]; exists {
		return &model.DuplicateKindError{Kind: kind}
	}

	descriptor.Kind = kind
	descriptor.DefaultOptions = model.NormalizeOptions(descriptor.DefaultOptions)
	r.kinds[kind] = descriptor
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(kind string, descriptor Descriptor) {
	if err := r.Register(kind, descriptor); err != nil {
		panic(err)
	}
}

// Freeze rejects any further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Resolve returns the descriptor for kind or *model.UnknownKindError.
func (r *Registry) Resolve(kind string) (Descriptor, error) {
	r.mu.RLock()
	descriptor, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, &model.UnknownKindError{Kind: kind}
	}
	descriptor.DefaultOptions = cloneOptions(descriptor.DefaultOptions)
	return descriptor, nil
}

// HasKind satisfies model.KindResolver.
func (r *Registry) HasKind(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate runs the kind validator against value. Empty values are not
// handed to validators; required checks belong to the caller.
func (r *Registry) Validate(kind string, value any, options map[string]any) ([]model.Violation, error) {
	descriptor, err := r.Resolve(kind)
	if err != nil {
		return nil, err
	}
	if model.IsEmptyValue(value) {
		return nil, nil
	}
	return descriptor.Validator(value, options), nil
}

// ValidateRules evaluates rule references in order against a non-empty
// value. Unknown rule kinds produce a CodeRule violation.
func (r *Registry) ValidateRules(rules []model.ValidationRule, value any) []model.Violation {
	if len(rules) == 0 || model.IsEmptyValue(value) {
		return nil
	}
	var out []model.Violation
	for _, rule := range rules {
		if violation, failed := evaluateRule(rule, value); failed {
			out = append(out, violation)
		}
	}
	return out
}

func cloneOptions(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = model.CloneValue(v)
	}
	return out
}
