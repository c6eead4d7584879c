// Package model defines the form schema shared by the builder, the preview
// and the codec. A FormSchema is an ordered tree of FieldDefinition values
// plus form-level metadata (title, version). Fields reference a kind that is
// resolved through the field registry; kind-specific settings live in the
// free-form Options map while ValidationRules carry rule references such as
// minLength/maxLength, min/max and pattern with string parameters so JSON
// snapshots stay deterministic.
//
// Structural invariants (unique ids across the whole tree, sibling orders
// contiguous from zero, resolvable kinds) are enforced by CheckStructure and
// reported as *InvalidSchemaError. All structural error kinds used by the
// other packages are declared in this package so callers can match them with
// errors.Is and errors.As regardless of which component raised them.
package model
