package session

import (
	"context"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/preview"
)

// AddField adds a field and returns its id.
func (s *Session) AddField(ctx context.Context, parentID, kind string, position int) (string, error) {
	res, err := s.Do(ctx, AddField{ParentID: parentID, Kind: kind, Position: position})
	return res.ID, err
}

// RemoveField removes a field and its subtree.
func (s *Session) RemoveField(ctx context.Context, id string) error {
	_, err := s.Do(ctx, RemoveField{ID: id})
	return err
}

// MoveField relocates a field.
func (s *Session) MoveField(ctx context.Context, id, parentID string, position int) error {
	_, err := s.Do(ctx, MoveField{ID: id, ParentID: parentID, Position: position})
	return err
}

// UpdateField patches a field.
func (s *Session) UpdateField(ctx context.Context, id string, patch model.FieldPatch) error {
	_, err := s.Do(ctx, UpdateField{ID: id, Patch: patch})
	return err
}

// SetValue stores a preview value.
func (s *Session) SetValue(ctx context.Context, fieldID string, value any) error {
	_, err := s.Do(ctx, SetValue{FieldID: fieldID, Value: value})
	return err
}

// Submit validates the preview and returns its snapshot. Invalid forms
// yield ErrInvalidSubmission.
func (s *Session) Submit(ctx context.Context) (map[string]any, error) {
	res, err := s.Do(ctx, Submit{})
	return res.Values, err
}

// Load reads name from the backend and makes it the active schema. It
// returns persistence.ErrSuperseded when a newer load overtook it.
func (s *Session) Load(ctx context.Context, name string) error {
	_, err := s.Do(ctx, Load{Name: name})
	return err
}

// Save writes the active schema. An empty name reuses the current one.
func (s *Session) Save(ctx context.Context, name string) error {
	_, err := s.Do(ctx, Save{Name: name})
	return err
}

// View returns the preview view of the current state.
func (s *Session) View(ctx context.Context) (preview.View, error) {
	var view preview.View
	err := s.Inspect(ctx, func(st State) {
		view = st.Preview.View()
	})
	return view, err
}

// Name returns the name the active schema was last loaded or saved under.
func (s *Session) Name(ctx context.Context) (string, error) {
	var name string
	err := s.Inspect(ctx, func(st State) {
		name = st.Name
	})
	return name, err
}
