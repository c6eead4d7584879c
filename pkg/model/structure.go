package model

import (
	"fmt"
	"strings"
)

// CheckStructure verifies the schema invariants: every id is non-empty and
// unique across the whole tree, sibling Order values equal their position
// (contiguous from zero) and every kind resolves. A nil resolver skips the
// kind check. The first broken invariant is returned as *InvalidSchemaError.
func CheckStructure(schema FormSchema, resolver KindResolver) error {
	seen := make(map[string]struct{})
	return checkGroup(schema.Fields, "", seen, resolver)
}

func checkGroup(fields []FieldDefinition, parent string, seen map[string]struct{}, resolver KindResolver) error {
	for idx, field := range fields {
		id := field.ID
		if strings.TrimSpace(id) == "" {
			return &InvalidSchemaError{
				Invariant: InvariantEmptyID,
				Detail:    fmt.Sprintf("field at position %d under %s has no id", idx, describeParent(parent)),
			}
		}
		if _, dup := seen[id]; dup {
			return &InvalidSchemaError{
				Invariant: InvariantDuplicateID,
				FieldID:   id,
				Detail:    "id is used by more than one field",
			}
		}
		seen[id] = struct{}{}

		if field.Order != idx {
			return &InvalidSchemaError{
				Invariant: InvariantOrder,
				FieldID:   id,
				Detail:    fmt.Sprintf("order %d under %s, want %d", field.Order, describeParent(parent), idx),
			}
		}

		if resolver != nil && !resolver.HasKind(field.Kind) {
			return &InvalidSchemaError{
				Invariant: InvariantUnknownKind,
				FieldID:   id,
				Detail:    fmt.Sprintf("kind %q is not registered", field.Kind),
				Err:       &UnknownKindError{Kind: field.Kind},
			}
		}

		if err := checkGroup(field.Children, id, seen, resolver); err != nil {
			return err
		}
	}
	return nil
}

func describeParent(parent string) string {
	if parent == "" {
		return "root"
	}
	return fmt.Sprintf("%q", parent)
}

// Walk visits every field depth-first in document order. The callback
// receives the parent id ("" for root fields); returning false stops the walk.
func Walk(fields []FieldDefinition, fn func(field FieldDefinition, parentID string) bool) {
	walk(fields, "", fn)
}

func walk(fields []FieldDefinition, parent string, fn func(FieldDefinition, string) bool) bool {
	for _, field := range fields {
		if !fn(field, parent) {
			return false
		}
		if !walk(field.Children, field.ID, fn) {
			return false
		}
	}
	return true
}

// Find returns a pointer to the field with id inside fields, or nil.
func Find(fields []FieldDefinition, id string) *FieldDefinition {
	for idx := range fields {
		if fields[idx].ID == id {
			return &fields[idx]
		}
		if found := Find(fields[idx].Children, id); found != nil {
			return found
		}
	}
	return nil
}

// IDs lists every field id in document order.
func (s FormSchema) IDs() []string {
	var ids []string
	Walk(s.Fields, func(field FieldDefinition, _ string) bool {
		ids = append(ids, field.ID)
		return true
	})
	return ids
}

// Field looks up a field by id.
func (s FormSchema) Field(id string) (FieldDefinition, bool) {
	found := Find(s.Fields, id)
	if found == nil {
		return FieldDefinition{}, false
	}
	return *found, true
}
