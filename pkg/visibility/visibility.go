// Package visibility decides whether a field is shown for the current form
// values. Fields opt in through the "visibleWhen" option, a rule string
// evaluated by an Evaluator (see the expr subpackage).
package visibility

// Evaluator reports whether the field identified by fieldID should be
// visible under rule.
type Evaluator interface {
	Eval(fieldID, rule string, ctx Context) (bool, error)
}

// Context carries the inputs a rule can reference. Values is keyed by field
// id; Extras holds caller-supplied facts (roles, feature flags) addressed
// with the "extras." prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldID, rule string, ctx Context) (bool, error)

// Eval calls fn.
func (fn EvaluatorFunc) Eval(fieldID, rule string, ctx Context) (bool, error) {
	return fn(fieldID, rule, ctx)
}

// Always shows every field.
var Always Evaluator = EvaluatorFunc(func(string, string, Context) (bool, error) {
	return true, nil
})
