package builder

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultIDPrefix is prepended to generated field ids.
const DefaultIDPrefix = "fld_"

// IDGenerator returns a fresh field id candidate. The controller retries
// when a candidate collides with an existing id.
type IDGenerator func() string

// UUIDGenerator returns ids made of prefix and a random UUID without dashes.
func UUIDGenerator(prefix string) IDGenerator {
	return func() string {
		return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}

// SequentialIDs returns ids prefix1, prefix2, ... Handy for tests and
// fixtures that need stable ids.
func SequentialIDs(prefix string) IDGenerator {
	var counter atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, counter.Add(1))
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator overrides the id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithLabeler overrides how default labels are derived from the kind.
func WithLabeler(labeler func(kind string) string) Option {
	return func(c *Controller) {
		if labeler != nil {
			c.labeler = labeler
		}
	}
}
