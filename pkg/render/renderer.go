package render

import (
	"context"

	"github.com/goliatone/go-formbuilder/pkg/preview"
)

// Renderer turns a live preview into a byte representation (HTML, a JSON
// snapshot collected from a terminal, ...). Renderers consume
// preview.Instance.View and never reach into the schema on their own.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, instance *preview.Instance) ([]byte, error)
}
