package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/visibility/expr"
)

// Format selects the document syntax for Lint.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Issue is a single lint finding. Path is a JSON pointer into the document;
// Field is the id of the field involved, when known.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result collects every finding of a lint run.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

var knownRules = map[string]struct{}{
	model.ValidationRuleMin:       {},
	model.ValidationRuleMax:       {},
	model.ValidationRuleMinLength: {},
	model.ValidationRuleMaxLength: {},
	model.ValidationRuleMinItems:  {},
	model.ValidationRuleMaxItems:  {},
	model.ValidationRulePattern:   {},
	model.ValidationRuleEmail:     {},
}

// Lint checks a persisted schema and reports every problem it finds instead
// of stopping at the first one. Parse and type errors end the run early.
func Lint(data []byte, format Format, reg *registry.Registry) Result {
	if reg == nil {
		reg = registry.Default()
	}

	var raw any
	var err error
	if format == FormatYAML {
		raw, err = parseYAML(data)
	} else {
		raw, err = parseJSON(data)
	}
	if err != nil {
		return Result{Issues: []Issue{issueFromError(err)}}
	}

	schema, err := decoder{}.schema(raw)
	if err != nil {
		return Result{Issues: []Issue{issueFromError(err)}}
	}

	l := &linter{registry: reg, seen: make(map[string]string)}
	l.fields(schema.Fields, "/fields")
	return Result{Valid: len(l.issues) == 0, Issues: l.issues}
}

type linter struct {
	registry *registry.Registry
	seen     map[string]string
	issues   []Issue
}

func (l *linter) add(path, field, format string, args ...any) {
	l.issues = append(l.issues, Issue{Path: path, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (l *linter) fields(fields []model.FieldDefinition, path string) {
	for idx, field := range fields {
		at := fmt.Sprintf("%s/%d", path, idx)
		l.field(field, idx, at)
	}
}

func (l *linter) field(field model.FieldDefinition, idx int, at string) {
	id := field.ID
	switch {
	case strings.TrimSpace(id) == "":
		l.add(at+"/id", "", "field id is empty")
	default:
		if first, dup := l.seen[id]; dup {
			l.add(at+"/id", id, "duplicate field id, first used at %s", first)
		} else {
			l.seen[id] = at
		}
	}

	if field.Order != idx {
		l.add(at+"/order", id, "order is %d but the field is at position %d", field.Order, idx)
	}

	descriptor, err := l.registry.Resolve(field.Kind)
	if err != nil {
		l.add(at+"/kind", id, "unknown field kind %q", field.Kind)
	} else {
		l.kindOptions(field, descriptor, at)
	}

	if rule, ok := field.Options[model.OptionVisibleWhen]; ok {
		text, isText := rule.(string)
		if !isText {
			l.add(at+"/options/"+model.OptionVisibleWhen, id, "visibility rule must be a string")
		} else if _, err := expr.Compile(text); err != nil {
			l.add(at+"/options/"+model.OptionVisibleWhen, id, "%s", strings.TrimPrefix(err.Error(), "expr: "))
		}
	}

	for ruleIdx, rule := range field.ValidationRules {
		rulePath := fmt.Sprintf("%s/validationRules/%d", at, ruleIdx)
		if _, ok := knownRules[rule.Kind]; !ok {
			l.add(rulePath+"/kind", id, "unknown validation rule %q", rule.Kind)
			continue
		}
		if rule.Kind == model.ValidationRulePattern {
			pattern := rule.Params["pattern"]
			if pattern == "" {
				pattern = rule.Params["value"]
			}
			if _, err := regexp.Compile(pattern); err != nil {
				l.add(rulePath+"/params", id, "invalid pattern %q", pattern)
			}
		}
	}

	l.fields(field.Children, at+"/children")
}

func (l *linter) kindOptions(field model.FieldDefinition, descriptor registry.Descriptor, at string) {
	if len(field.Children) > 0 && !descriptor.Render.Container {
		l.add(at+"/children", field.ID, "kind %q does not accept children", field.Kind)
	}
	if descriptor.Render.HasChoices && len(registry.ChoiceValues(field.Options)) == 0 {
		l.add(at+"/options/"+model.OptionChoices, field.ID, "kind %q needs at least one choice", field.Kind)
	}
}

func issueFromError(err error) Issue {
	var malformedErr *model.MalformedSchemaError
	if errors.As(err, &malformedErr) {
		msg := "malformed document"
		if malformedErr.Err != nil {
			msg = strings.TrimSpace(malformedErr.Err.Error())
		}
		return Issue{Path: malformedErr.Path, Message: msg}
	}
	return Issue{Message: strings.TrimSpace(err.Error())}
}
