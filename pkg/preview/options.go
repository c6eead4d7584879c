package preview

import (
	"github.com/goliatone/go-formbuilder/pkg/visibility"
)

// Option configures an Instance.
type Option func(*Instance)

// WithValues prefills the instance. Ids that are unknown or do not hold a
// value are ignored so values can be carried over after a schema edit.
func WithValues(values map[string]any) Option {
	return func(i *Instance) {
		i.prefill = values
	}
}

// WithVisibility sets the evaluator for "visibleWhen" rules. Without it
// every field is visible.
func WithVisibility(evaluator visibility.Evaluator) Option {
	return func(i *Instance) {
		if evaluator != nil {
			i.visibility = evaluator
		}
	}
}

// WithExtras exposes caller facts to visibility rules as "extras.<key>".
func WithExtras(extras map[string]any) Option {
	return func(i *Instance) {
		i.extras = extras
	}
}
