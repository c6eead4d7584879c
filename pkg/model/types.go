package model

// ValueType is the simplified enum for the JSON type a field kind produces.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeInteger ValueType = "integer"
	ValueTypeNumber  ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeArray   ValueType = "array"
	ValueTypeObject  ValueType = "object"
	// ValueTypeNone marks container kinds (groups) that never hold a value.
	ValueTypeNone ValueType = ""
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRuleMinItems  = "minItems"
	ValidationRuleMaxItems  = "maxItems"
	ValidationRulePattern   = "pattern"
	ValidationRuleEmail     = "email"
)

// Well-known option keys shared by the registry, the preview and renderers.
const (
	OptionChoices     = "choices"
	OptionPlaceholder = "placeholder"
	OptionHelpText    = "helpText"
	OptionVisibleWhen = "visibleWhen"
	OptionDefault     = "default"
)

// ValidationRule references a named rule evaluated against a field value.
// Numeric bounds and length limits encode their threshold in Params["value"];
// pattern rules keep the expression in Params["pattern"]. Params["message"]
// overrides the violation message when present.
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// FieldDefinition is a single node of the schema tree. Children are only
// meaningful for container kinds (group, repeater).
type FieldDefinition struct {
	ID              string            `json:"id"`
	Kind            string            `json:"kind"`
	Label           string            `json:"label"`
	Required        bool              `json:"required"`
	Order           int               `json:"order"`
	Options         map[string]any    `json:"options"`
	ValidationRules []ValidationRule  `json:"validationRules"`
	Children        []FieldDefinition `json:"children,omitempty"`
	// Extra holds keys the codec did not recognise so they survive a
	// load/save cycle. Validation ignores them.
	Extra map[string]any `json:"-"`
}

// FormSchema is the serialisable definition of a form.
type FormSchema struct {
	Title   string            `json:"title"`
	Version int               `json:"version"`
	Fields  []FieldDefinition `json:"fields"`
	Extra   map[string]any    `json:"-"`
}

// FieldPatch carries a partial update for a field. Nil members are left
// untouched; Options replaces the whole options map when non-nil.
type FieldPatch struct {
	ID              *string
	Label           *string
	Required        *bool
	Options         map[string]any
	ValidationRules *[]ValidationRule
}

// Empty reports whether the patch changes nothing.
func (p FieldPatch) Empty() bool {
	return p.ID == nil && p.Label == nil && p.Required == nil && p.Options == nil && p.ValidationRules == nil
}

// Apply copies the patched members onto field.
func (p FieldPatch) Apply(field *FieldDefinition) {
	if field == nil {
		return
	}
	if p.ID != nil {
		field.ID = *p.ID
	}
	if p.Label != nil {
		field.Label = *p.Label
	}
	if p.Required != nil {
		field.Required = *p.Required
	}
	if p.Options != nil {
		field.Options = NormalizeOptions(p.Options)
	}
	if p.ValidationRules != nil {
		field.ValidationRules = cloneRules(*p.ValidationRules)
	}
}

// KindResolver reports whether a field kind is known. The field registry
// satisfies it.
type KindResolver interface {
	HasKind(kind string) bool
}

// KindResolverFunc adapts a function into a KindResolver.
type KindResolverFunc func(kind string) bool

// HasKind calls the underlying function.
func (fn KindResolverFunc) HasKind(kind string) bool {
	return fn(kind)
}

// Violation is a single reason a field value fails validation.
type Violation struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Params  map[string]string `json:"params,omitempty"`
}

// Violation codes emitted by the built-in validators.
const (
	// CodeRequired marks a required field without a value (RequiredFieldMissing).
	CodeRequired = "required"
	CodeType     = "type"
	CodeChoice   = "choice"
	CodeRange    = "range"
	CodeLength   = "length"
	CodeItems    = "items"
	CodePattern  = "pattern"
	CodeFormat   = "format"
	CodeRule     = "rule"
)

// RequiredFieldMissing builds the violation reported for an empty required
// field.
func RequiredFieldMissing() Violation {
	return Violation{Code: CodeRequired, Message: "this field is required"}
}
