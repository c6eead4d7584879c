package builder

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

const maxIDAttempts = 16

// SchemaStore is the part of store.Store the controller needs.
type SchemaStore interface {
	Current() model.FormSchema
	Replace(schema model.FormSchema) error
}

// Controller is the sanctioned way to edit a schema. Each operation works on
// a private arena built from the store's current schema and commits the
// result with a single Replace, so either the whole edit lands or nothing
// changes.
type Controller struct {
	store    SchemaStore
	registry *registry.Registry
	newID    IDGenerator
	labeler  func(kind string) string
}

// New constructs a controller bound to store and registry.
func New(store SchemaStore, reg *registry.Registry, options ...Option) *Controller {
	c := &Controller{
		store:    store,
		registry: reg,
		newID:    UUIDGenerator(DefaultIDPrefix),
		labeler:  model.DefaultLabel,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// NewForm replaces the current schema with an empty one.
func (c *Controller) NewForm(title string) error {
	return c.store.Replace(model.FormSchema{
		Title:   strings.TrimSpace(title),
		Version: 1,
	})
}

// SetMetadata updates the form title and version.
func (c *Controller) SetMetadata(title string, version int) error {
	schema := c.store.Current()
	schema.Title = strings.TrimSpace(title)
	if version > 0 {
		schema.Version = version
	}
	return c.store.Replace(schema)
}

// Field returns a copy of the field with id.
func (c *Controller) Field(id string) (model.FieldDefinition, error) {
	field, ok := c.store.Current().Field(id)
	if !ok {
		return model.FieldDefinition{}, &model.FieldNotFoundError{ID: id}
	}
	return field, nil
}

// AddField inserts a new field of kind under parentID ("" for the root) at
// position and returns its generated id. Positions outside [0, len] append.
func (c *Controller) AddField(parentID, kind string, position int) (string, error) {
	descriptor, err := c.registry.Resolve(kind)
	if err != nil {
		return "", err
	}

	a := newArena(c.store.Current())
	if parentID != "" {
		parent, ok := a.nodes[parentID]
		if !ok {
			return "", &model.ParentNotFoundError{ID: parentID}
		}
		if err := c.ensureContainer(parent.field); err != nil {
			return "", err
		}
	}

	id, err := c.uniqueID(a)
	if err != nil {
		return "", err
	}

	a.nodes[id] = &node{field: model.FieldDefinition{
		ID:      id,
		Kind:    descriptor.Kind,
		Label:   c.labeler(descriptor.Kind),
		Options: descriptor.DefaultOptions,
	}}
	a.insert(parentID, position, id)

	if err := c.store.Replace(a.schema()); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveField deletes the field with id and its subtree.
func (c *Controller) RemoveField(id string) error {
	a := newArena(c.store.Current())
	if !a.has(id) {
		return &model.FieldNotFoundError{ID: id}
	}
	a.remove(id)
	return c.store.Replace(a.schema())
}

// MoveField relocates the subtree rooted at id under newParentID ("" for the
// root) at newPosition. Positions outside [0, len] append.
func (c *Controller) MoveField(id, newParentID string, newPosition int) error {
	a := newArena(c.store.Current())
	if !a.has(id) {
		return &model.FieldNotFoundError{ID: id}
	}
	if newParentID != "" {
		parent, ok := a.nodes[newParentID]
		if !ok {
			return &model.ParentNotFoundError{ID: newParentID}
		}
		if a.isSelfOrDescendant(id, newParentID) {
			return &model.CyclicMoveError{ID: id, TargetParentID: newParentID}
		}
		if err := c.ensureContainer(parent.field); err != nil {
			return err
		}
	}

	a.detach(id)
	a.insert(newParentID, newPosition, id)
	return c.store.Replace(a.schema())
}

// UpdateField applies patch to the field with id. The patched schema goes
// through the store's invariant checks, so a patch that would, for example,
// duplicate an id is rejected with *model.InvalidSchemaError and nothing
// changes.
func (c *Controller) UpdateField(id string, patch model.FieldPatch) error {
	schema := c.store.Current()
	field := model.Find(schema.Fields, id)
	if field == nil {
		return &model.FieldNotFoundError{ID: id}
	}
	if patch.Empty() {
		return nil
	}
	patch.Apply(field)
	return c.store.Replace(schema)
}

func (c *Controller) ensureContainer(field model.FieldDefinition) error {
	descriptor, err := c.registry.Resolve(field.Kind)
	if err != nil {
		return err
	}
	if !descriptor.Render.Container {
		return &model.NotContainerError{ID: field.ID, Kind: field.Kind}
	}
	return nil
}

func (c *Controller) uniqueID(a *arena) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := c.newID()
		if id != "" && !a.has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("builder: could not generate a unique field id after %d attempts", maxIDAttempts)
}
