package session

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formbuilder/pkg/builder"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/storage"
	"github.com/goliatone/go-formbuilder/pkg/visibility"
)

const defaultQueueSize = 64

// Option customises a Session.
type Option func(*Session)

// WithRegistry injects the field registry. Defaults to registry.Default().
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Session) {
		s.registry = reg
	}
}

// WithBackend sets where Load and Save read and write. Without a backend
// those events fail with ErrNoBackend.
func WithBackend(backend storage.Backend) Option {
	return func(s *Session) {
		s.backend = backend
	}
}

// WithLogger attaches a logger shared with the store and the requester.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithVisibility overrides the evaluator for "visibleWhen" rules. Defaults
// to the expr language.
func WithVisibility(evaluator visibility.Evaluator) Option {
	return func(s *Session) {
		s.visibility = evaluator
	}
}

// WithBuilderOptions forwards options to the builder controller, e.g.
// builder.WithIDGenerator.
func WithBuilderOptions(options ...builder.Option) Option {
	return func(s *Session) {
		s.builderOptions = append(s.builderOptions, options...)
	}
}

// WithInitial starts the session on schema instead of an empty form.
func WithInitial(name string, schema model.FormSchema) Option {
	return func(s *Session) {
		s.name = name
		s.initial = &schema
	}
}

// WithQueueSize sets the event queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}
