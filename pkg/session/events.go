package session

import (
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/persistence"
)

// Event is something the session loop applies. The concrete types below are
// the complete set.
type Event interface {
	isEvent()
}

// NewForm replaces the active schema with an empty one.
type NewForm struct {
	Name  string
	Title string
}

// SetMetadata updates title and version.
type SetMetadata struct {
	Title   string
	Version int
}

// AddField inserts a field of Kind under ParentID ("" for root).
type AddField struct {
	ParentID string
	Kind     string
	Position int
}

// RemoveField deletes a field and its subtree.
type RemoveField struct {
	ID string
}

// MoveField relocates a field and its subtree.
type MoveField struct {
	ID       string
	ParentID string
	Position int
}

// UpdateField applies a partial update to a field.
type UpdateField struct {
	ID    string
	Patch model.FieldPatch
}

// SetValue stores a preview value.
type SetValue struct {
	FieldID string
	Value   any
}

// ClearValue unsets a preview value.
type ClearValue struct {
	FieldID string
}

// ValidateAll re-runs validation for every preview field.
type ValidateAll struct{}

// Submit validates the preview and yields its snapshot when valid.
type Submit struct{}

// Load reads the named form through the backend. The schema is swapped in
// when the matching LoadCompleted arrives.
type Load struct {
	Name string
}

// Save writes the active schema under Name; an empty Name reuses the name
// of the last load or save.
type Save struct {
	Name string
}

// LoadCompleted carries the result of a Load back into the loop.
type LoadCompleted struct {
	persistence.Completion
}

// SaveCompleted carries the result of a Save back into the loop.
type SaveCompleted struct {
	persistence.Completion
}

func (NewForm) isEvent()       {}
func (SetMetadata) isEvent()   {}
func (AddField) isEvent()      {}
func (RemoveField) isEvent()   {}
func (MoveField) isEvent()     {}
func (UpdateField) isEvent()   {}
func (SetValue) isEvent()      {}
func (ClearValue) isEvent()    {}
func (ValidateAll) isEvent()   {}
func (Submit) isEvent()        {}
func (Load) isEvent()          {}
func (Save) isEvent()          {}
func (LoadCompleted) isEvent() {}
func (SaveCompleted) isEvent() {}

// ChangeKind classifies a Change notification.
type ChangeKind string

const (
	ChangeSchema ChangeKind = "schema"
	ChangeValues ChangeKind = "values"
	ChangeLoaded ChangeKind = "loaded"
	ChangeSaved  ChangeKind = "saved"
	ChangeFailed ChangeKind = "failed"
)

// Change is sent to OnChange listeners after the loop handles an event.
type Change struct {
	Kind     ChangeKind
	Event    Event
	Name     string
	Revision uint64
	Err      error
}

// Result is what a synchronous Do call receives once its event has been
// handled. ID is set for AddField; Values for Submit.
type Result struct {
	ID     string
	Values map[string]any
}
