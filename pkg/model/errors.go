package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind matches *UnknownKindError.
	ErrUnknownKind = errors.New("model: unknown field kind")
	// ErrDuplicateKind matches *DuplicateKindError.
	ErrDuplicateKind = errors.New("model: duplicate field kind")
	// ErrFieldNotFound matches *FieldNotFoundError.
	ErrFieldNotFound = errors.New("model: field not found")
	// ErrParentNotFound matches *ParentNotFoundError.
	ErrParentNotFound = errors.New("model: parent not found")
	// ErrCyclicMove matches *CyclicMoveError.
	ErrCyclicMove = errors.New("model: cyclic move")
	// ErrInvalidSchema matches *InvalidSchemaError.
	ErrInvalidSchema = errors.New("model: invalid schema")
	// ErrMalformedSchema matches *MalformedSchemaError.
	ErrMalformedSchema = errors.New("model: malformed schema")
	// ErrNotContainer matches *NotContainerError.
	ErrNotContainer = errors.New("model: field cannot hold children")
)

// UnknownKindError reports a kind that does not resolve in the registry.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("model: unknown field kind %q", e.Kind)
}

func (e *UnknownKindError) Is(target error) bool { return target == ErrUnknownKind }

// DuplicateKindError reports a second registration for the same kind.
type DuplicateKindError struct {
	Kind string
}

func (e *DuplicateKindError) Error() string {
	return fmt.Sprintf("model: field kind %q already registered", e.Kind)
}

func (e *DuplicateKindError) Is(target error) bool { return target == ErrDuplicateKind }

// FieldNotFoundError reports an id absent from the schema.
type FieldNotFoundError struct {
	ID string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("model: field %q not found", e.ID)
}

func (e *FieldNotFoundError) Is(target error) bool { return target == ErrFieldNotFound }

// ParentNotFoundError reports a parent id absent from the schema.
type ParentNotFoundError struct {
	ID string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("model: parent field %q not found", e.ID)
}

func (e *ParentNotFoundError) Is(target error) bool { return target == ErrParentNotFound }

// CyclicMoveError reports an attempt to move a field into itself or into one
// of its descendants.
type CyclicMoveError struct {
	ID             string
	TargetParentID string
}

func (e *CyclicMoveError) Error() string {
	return fmt.Sprintf("model: cannot move field %q under %q: target is the field or one of its descendants", e.ID, e.TargetParentID)
}

func (e *CyclicMoveError) Is(target error) bool { return target == ErrCyclicMove }

// NotContainerError reports an attempt to nest fields under a kind that does
// not accept children.
type NotContainerError struct {
	ID   string
	Kind string
}

func (e *NotContainerError) Error() string {
	return fmt.Sprintf("model: field %q of kind %q cannot hold children", e.ID, e.Kind)
}

func (e *NotContainerError) Is(target error) bool { return target == ErrNotContainer }

// Invariant names the structural rule an invalid schema breaks.
type Invariant string

const (
	InvariantEmptyID     Invariant = "empty-id"
	InvariantDuplicateID Invariant = "duplicate-id"
	InvariantOrder       Invariant = "order"
	InvariantUnknownKind Invariant = "unknown-kind"
)

// InvalidSchemaError reports the first structural invariant a schema breaks.
type InvalidSchemaError struct {
	Invariant Invariant
	FieldID   string
	Detail    string
	Err       error
}

func (e *InvalidSchemaError) Error() string {
	msg := fmt.Sprintf("model: invalid schema: %s", e.Invariant)
	if e.FieldID != "" {
		msg += fmt.Sprintf(" (field %q)", e.FieldID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *InvalidSchemaError) Is(target error) bool { return target == ErrInvalidSchema }

func (e *InvalidSchemaError) Unwrap() error { return e.Err }

// MalformedSchemaError reports a persisted document that could not be parsed.
type MalformedSchemaError struct {
	Path string
	Err  error
}

func (e *MalformedSchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("model: malformed schema at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("model: malformed schema: %v", e.Err)
}

func (e *MalformedSchemaError) Is(target error) bool { return target == ErrMalformedSchema }

func (e *MalformedSchemaError) Unwrap() error { return e.Err }
