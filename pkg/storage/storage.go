// Package storage keeps serialized form schemas under a name. It knows
// nothing about the schema format; callers pass bytes produced by the codec.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound is returned when no form is stored under a name.
	ErrNotFound = errors.New("storage: form not found")
	// ErrInvalidName is returned for names that are empty or contain path
	// separators or other characters outside [A-Za-z0-9._-].
	ErrInvalidName = errors.New("storage: invalid form name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Entry describes a stored form.
type Entry struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
	Size      int64     `json:"size"`
}

// Backend persists form documents.
type Backend interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// ValidateName checks that name can be used as a form key.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
