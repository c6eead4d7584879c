package preview

import (
	"errors"
	"fmt"
)

// ErrNotValueField is returned when a value is assigned to a field that
// cannot hold one: groups, and fields inside a repeater (their values live
// in the repeater's entries).
var ErrNotValueField = errors.New("preview: field does not hold a value")

func notValueField(id, kind string) error {
	return fmt.Errorf("%w: %q (%s)", ErrNotValueField, id, kind)
}
