// Package expr evaluates visibility rules with github.com/expr-lang/expr.
//
// Field values are exposed by id and host extras under "extras":
//
//	subscribe                          truthiness
//	!subscribe                         negation
//	country == "us"                    == and != against strings, numbers, booleans, nil
//	age >= 18                          ordering against numbers or strings
//	country in ["ca", "mx"]            membership
//	"pro" in plan                      list fields
//	address?.city == "Lisbon"          nested maps, ?. when the parent may be unset
//	extras.role == "admin"             host extras
//	a && (b || !c)                     composition with parentheses
//
// Unset fields read as nil. Operands of !, && and || and the rule result use
// form truthiness: nil, false, blank strings, zero numbers and empty
// collections are false.
package expr

import (
	"fmt"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-formbuilder/pkg/visibility"
)

const (
	extrasKey  = "extras"
	truthyFunc = "truthy"
)

// Program is a compiled rule.
type Program struct {
	source  string
	program *vm.Program
}

// Compile compiles rule. Blank rules compile to a program that is always true.
func Compile(rule string, opts ...exprlang.Option) (*Program, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return &Program{}, nil
	}

	options := append([]exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.Function(truthyFunc, func(params ...any) (any, error) {
			return truthy(params[0]), nil
		}, new(func(any) bool)),
		exprlang.Patch(truthyOperands{}),
	}, opts...)

	program, err := exprlang.Compile(rule, options...)
	if err != nil {
		return nil, fmt.Errorf("expr: %s", firstLine(err))
	}
	return &Program{source: rule, program: program}, nil
}

// String returns the trimmed rule source.
func (p *Program) String() string { return p.source }

// Run evaluates the program against ctx.
func (p *Program) Run(ctx visibility.Context) (bool, error) {
	if p.program == nil {
		return true, nil
	}

	env := make(map[string]any, len(ctx.Values)+1)
	for id, value := range ctx.Values {
		env[id] = value
	}
	extras := ctx.Extras
	if extras == nil {
		extras = map[string]any{}
	}
	env[extrasKey] = extras

	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("expr: %s", firstLine(err))
	}
	return truthy(out), nil
}

// Evaluator implements visibility.Evaluator and caches compiled rules.
type Evaluator struct {
	mu      sync.RWMutex
	cache   map[string]*Program
	options []exprlang.Option
}

var _ visibility.Evaluator = (*Evaluator)(nil)

// New returns an evaluator with an empty cache. opts are appended to every
// compile, for example exprlang.Function to register helpers.
func New(opts ...exprlang.Option) *Evaluator {
	return &Evaluator{cache: make(map[string]*Program), options: opts}
}

// Eval compiles (or reuses) rule and runs it against ctx.
func (e *Evaluator) Eval(fieldID, rule string, ctx visibility.Context) (bool, error) {
	program, err := e.program(rule)
	if err != nil {
		return false, fmt.Errorf("expr: rule for %q: %w", fieldID, err)
	}
	return program.Run(ctx)
}

func (e *Evaluator) program(rule string) (*Program, error) {
	e.mu.RLock()
	program, ok := e.cache[rule]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := Compile(rule, e.options...)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[rule] = program
	e.mu.Unlock()
	return program, nil
}

// truthyOperands wraps bare field references used as boolean operands in a
// truthy() call, so `!newsletter` works before the checkbox is touched.
type truthyOperands struct{}

func (truthyOperands) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.UnaryNode:
		if n.Operator == "!" || n.Operator == "not" {
			wrapTruthy(&n.Node)
		}
	case *ast.BinaryNode:
		switch n.Operator {
		case "&&", "||", "and", "or":
			wrapTruthy(&n.Left)
			wrapTruthy(&n.Right)
		}
	}
}

func wrapTruthy(node *ast.Node) {
	switch (*node).(type) {
	case *ast.IdentifierNode, *ast.MemberNode:
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: truthyFunc},
			Arguments: []ast.Node{*node},
		})
	}
}

// firstLine drops the source snippet expr appends to its errors.
func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return strings.TrimSpace(msg)
}

func truthy(v any) bool {
	switch typed := v.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return strings.TrimSpace(typed) != ""
	case []any:
		return len(typed) > 0
	case []string:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	case float64:
		return typed != 0
	case float32:
		return typed != 0
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case int32:
		return typed != 0
	case uint:
		return typed != 0
	case uint64:
		return typed != 0
	}
	return true
}
