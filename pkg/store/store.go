// Package store owns the active form schema. Every mutation goes through
// Replace, which checks the structural invariants before swapping and then
// notifies subscribers synchronously, in subscription order.
//
// Replace calls wait for each other, but not for notifications: while the
// subscribers of one Replace run, every other Replace fails with
// ErrReentrantReplace, whichever goroutine it comes from. Drive the store
// from a single goroutine (sessions do) or retry on that error.
package store

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

// ErrReentrantReplace is returned when Replace is called while subscribers
// of a previous Replace are still being notified, either from a listener or
// from another goroutine.
var ErrReentrantReplace = errors.New("store: replace called during notification")

// Listener receives a copy of the schema after every successful Replace.
type Listener func(schema model.FormSchema, revision uint64)

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger used for rejected replacements and
// subscriber panics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInitial seeds the store with a schema. The schema is checked by New.
func WithInitial(schema model.FormSchema) Option {
	return func(s *Store) {
		s.initial = &schema
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// Store holds one FormSchema at a time.
type Store struct {
	resolver model.KindResolver
	logger   zerolog.Logger
	initial  *model.FormSchema

	// writeMu serialises Replace calls including their notifications so
	// subscribers observe revisions in order.
	writeMu   sync.Mutex
	notifying atomic.Bool

	mu          sync.RWMutex
	current     model.FormSchema
	revision    uint64
	subscribers []subscription
	nextSubID   uint64
}

// New creates a store that validates kinds against resolver. The store
// starts with an empty schema unless WithInitial is given.
func New(resolver model.KindResolver, options ...Option) (*Store, error) {
	s := &Store{
		resolver: resolver,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.initial != nil {
		if err := model.CheckStructure(*s.initial, resolver); err != nil {
			return nil, err
		}
		s.current = s.initial.Normalized()
		s.initial = nil
	}
	return s, nil
}

// Current returns a copy of the active schema.
func (s *Store) Current() model.FormSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Revision returns the number of successful replacements so far.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Replace checks the structural invariants of schema and swaps in a
// normalized copy (see model.FormSchema.Normalized). On failure it returns
// *model.InvalidSchemaError and the previous schema stays active. A listener
// that panics is logged and skipped; the remaining listeners still run.
func (s *Store) Replace(schema model.FormSchema) error {
	if s.notifying.Load() {
		return ErrReentrantReplace
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := model.CheckStructure(schema, s.resolver); err != nil {
		s.logger.Debug().Err(err).Msg("schema replacement rejected")
		return err
	}

	next := schema.Normalized()

	s.mu.Lock()
	s.current = next
	s.revision++
	revision := s.revision
	subscribers := append([]subscription(nil), s.subscribers...)
	s.mu.Unlock()

	s.notifying.Store(true)
	defer s.notifying.Store(false)
	for _, sub := range subscribers {
		s.notify(sub, next.Clone(), revision)
	}
	return nil
}

func (s *Store) notify(sub subscription, schema model.FormSchema, revision uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Uint64("subscriber", sub.id).
				Uint64("revision", revision).
				Msg("store subscriber panicked")
		}
	}()
	sub.listener(schema, revision)
}

// Subscribe registers listener and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, listener: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for idx, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:idx:idx], s.subscribers[idx+1:]...)
					return
				}
			}
		})
	}
}
