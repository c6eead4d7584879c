package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formbuilder/pkg/builder"
	"github.com/goliatone/go-formbuilder/pkg/codec"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/persistence"
	"github.com/goliatone/go-formbuilder/pkg/preview"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/storage"
	"github.com/goliatone/go-formbuilder/pkg/store"
	"github.com/goliatone/go-formbuilder/pkg/visibility"
	"github.com/goliatone/go-formbuilder/pkg/visibility/expr"
)

var (
	// ErrClosed is returned once Close has been called or Run has returned.
	ErrClosed = errors.New("session: closed")
	// ErrRunning is returned by a second concurrent Run.
	ErrRunning = errors.New("session: already running")
	// ErrNoBackend is returned by Load and Save without WithBackend.
	ErrNoBackend = errors.New("session: no storage backend configured")
	// ErrNoName is returned by Save when no name is given or known.
	ErrNoName = errors.New("session: form name is required")
	// ErrInvalidSubmission is returned by Submit when the preview has
	// violations.
	ErrInvalidSubmission = errors.New("session: form has violations")
)

// State is what Inspect exposes to a caller. Preview must be treated as
// read-only outside the loop.
type State struct {
	Name     string
	Revision uint64
	Schema   model.FormSchema
	Preview  *preview.Instance
}

type outcome struct {
	result Result
	err    error
}

type envelope struct {
	event Event
	reply chan outcome
}

// inspect runs fn on the loop goroutine.
type inspect struct {
	fn func(State)
}

func (inspect) isEvent() {}

type changeListener struct {
	id uint64
	fn func(Change)
}

// Session is the state container for one editing session: it owns the
// schema store, the builder, the live preview and the persistence
// requester. All state changes happen on the goroutine running Run, in the
// order events were dispatched.
type Session struct {
	registry       *registry.Registry
	backend        storage.Backend
	logger         zerolog.Logger
	visibility     visibility.Evaluator
	builderOptions []builder.Option
	initial        *model.FormSchema
	queueSize      int

	store     *store.Store
	builder   *builder.Controller
	requester *persistence.Requester

	queue     chan envelope
	quit      chan struct{}
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once

	listenersMu  sync.Mutex
	listeners    []changeListener
	nextListener uint64

	// owned by the loop
	name        string
	instance    *preview.Instance
	waiting     map[persistence.Op]map[uint64]chan outcome
	unsubscribe func()
}

// New builds a session. The loop does not start until Run is called.
func New(options ...Option) (*Session, error) {
	s := &Session{
		logger:    zerolog.Nop(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.registry == nil {
		s.registry = registry.Default()
	}
	if s.visibility == nil {
		s.visibility = expr.New()
	}

	storeOptions := []store.Option{store.WithLogger(s.logger)}
	if s.initial != nil {
		storeOptions = append(storeOptions, store.WithInitial(*s.initial))
	}
	st, err := store.New(s.registry, storeOptions...)
	if err != nil {
		return nil, fmt.Errorf("session: initial schema: %w", err)
	}
	s.store = st
	s.initial = nil

	s.instance, err = s.newPreview(st.Current(), nil)
	if err != nil {
		return nil, fmt.Errorf("session: initial preview: %w", err)
	}
	s.unsubscribe = st.Subscribe(s.rebuild)
	s.builder = builder.New(st, s.registry, s.builderOptions...)

	if s.backend != nil {
		s.requester = persistence.New(s.backend, s.deliver, persistence.WithLogger(s.logger))
	}
	s.queue = make(chan envelope, s.queueSize)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.waiting = map[persistence.Op]map[uint64]chan outcome{
		persistence.OpLoad: {},
		persistence.OpSave: {},
	}
	return s, nil
}

// Registry returns the field registry in use.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Schema returns a copy of the active schema. Safe from any goroutine.
func (s *Session) Schema() model.FormSchema { return s.store.Current() }

// Revision returns the store revision. Safe from any goroutine.
func (s *Session) Revision() uint64 { return s.store.Revision() }

// Run processes events until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(s.done)

	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	s.logger.Debug().Msg("session loop started")
	defer s.logger.Debug().Msg("session loop stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		case env := <-s.queue:
			s.handle(ctx, env)
		}
	}
}

// Close stops the loop, cancels pending I/O and waits for the persistence
// workers. The backend is left open. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.running.Load() {
			<-s.done
		}
		if s.requester != nil {
			s.requester.Close()
		}
		s.unsubscribe()
	})
	return nil
}

// Dispatch enqueues ev without waiting for it to be handled. Failures are
// reported to OnChange listeners as ChangeFailed.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	return s.enqueue(ctx, envelope{event: ev})
}

// Do enqueues ev and waits until it has been handled. Load and Save return
// once their I/O has completed and been applied.
func (s *Session) Do(ctx context.Context, ev Event) (Result, error) {
	reply := make(chan outcome, 1)
	if err := s.enqueue(ctx, envelope{event: ev, reply: reply}); err != nil {
		return Result{}, err
	}
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.quit:
		return Result{}, ErrClosed
	case <-s.done:
		return Result{}, ErrClosed
	}
}

func (s *Session) enqueue(ctx context.Context, env envelope) error {
	if env.event == nil {
		return errors.New("session: nil event")
	}
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}
	select {
	case s.queue <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}
}

// OnChange registers fn for change notifications. fn runs on the loop
// goroutine and must not call Do.
func (s *Session) OnChange(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, changeListener{id: id, fn: fn})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for idx, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:idx:idx], s.listeners[idx+1:]...)
					return
				}
			}
		})
	}
}

// Inspect runs fn on the loop goroutine with the current state.
func (s *Session) Inspect(ctx context.Context, fn func(State)) error {
	_, err := s.Do(ctx, inspect{fn: fn})
	return err
}

func (s *Session) handle(ctx context.Context, env envelope) {
	s.logger.Debug().Str("event", eventName(env.event)).Msg("handling event")

	var (
		result Result
		err    error
		kind   ChangeKind
	)
	switch ev := env.event.(type) {
	case inspect:
		ev.fn(State{
			Name:     s.name,
			Revision: s.store.Revision(),
			Schema:   s.store.Current(),
			Preview:  s.instance,
		})
	case NewForm:
		kind = ChangeSchema
		if err = s.builder.NewForm(ev.Title); err == nil && strings.TrimSpace(ev.Name) != "" {
			s.name = strings.TrimSpace(ev.Name)
		}
	case SetMetadata:
		kind = ChangeSchema
		err = s.builder.SetMetadata(ev.Title, ev.Version)
	case AddField:
		kind = ChangeSchema
		result.ID, err = s.builder.AddField(ev.ParentID, ev.Kind, ev.Position)
	case RemoveField:
		kind = ChangeSchema
		err = s.builder.RemoveField(ev.ID)
	case MoveField:
		kind = ChangeSchema
		err = s.builder.MoveField(ev.ID, ev.ParentID, ev.Position)
	case UpdateField:
		kind = ChangeSchema
		err = s.builder.UpdateField(ev.ID, ev.Patch)
	case SetValue:
		kind = ChangeValues
		err = s.instance.SetValue(ev.FieldID, ev.Value)
	case ClearValue:
		kind = ChangeValues
		err = s.instance.Clear(ev.FieldID)
	case ValidateAll:
		kind = ChangeValues
		s.instance.ValidateAll()
	case Submit:
		kind = ChangeValues
		result.Values, err = s.submit()
	case Load:
		if err = s.startLoad(ctx, ev, env.reply); err == nil {
			return
		}
		kind = ChangeFailed
	case Save:
		if err = s.startSave(ctx, ev, env.reply); err == nil {
			return
		}
		kind = ChangeFailed
	case LoadCompleted:
		s.finishLoad(ev)
		return
	case SaveCompleted:
		s.finishSave(ev)
		return
	default:
		err = fmt.Errorf("session: unsupported event %T", env.event)
		kind = ChangeFailed
	}

	reply(env.reply, result, err)
	if kind != "" {
		s.emit(kind, env.event, err)
	}
}

func (s *Session) submit() (map[string]any, error) {
	s.instance.ValidateAll()
	if !s.instance.IsValid() {
		return nil, fmt.Errorf("%w: %d field(s)", ErrInvalidSubmission, len(s.instance.AllViolations()))
	}
	return s.instance.Snapshot(), nil
}

func (s *Session) startLoad(ctx context.Context, ev Load, replyTo chan outcome) error {
	if s.requester == nil {
		return ErrNoBackend
	}
	if err := storage.ValidateName(ev.Name); err != nil {
		return err
	}
	ticket, err := s.requester.Load(ctx, ev.Name)
	if err != nil {
		return err
	}
	s.park(persistence.OpLoad, ticket, replyTo)
	return nil
}

func (s *Session) startSave(ctx context.Context, ev Save, replyTo chan outcome) error {
	if s.requester == nil {
		return ErrNoBackend
	}
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		name = s.name
	}
	if name == "" {
		return ErrNoName
	}
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	data, err := codec.Serialize(s.store.Current())
	if err != nil {
		return err
	}
	ticket, err := s.requester.Save(ctx, name, data)
	if err != nil {
		return err
	}
	s.park(persistence.OpSave, ticket, replyTo)
	return nil
}

func (s *Session) finishLoad(ev LoadCompleted) {
	replyTo := s.unpark(persistence.OpLoad, ev.Ticket)
	if !s.isLatest(persistence.OpLoad, ev.Ticket) {
		s.logger.Debug().Str("form", ev.Name).Uint64("ticket", ev.Ticket).Msg("stale load discarded")
		reply(replyTo, Result{}, persistence.ErrSuperseded)
		return
	}

	err := ev.Err
	if err == nil {
		var schema model.FormSchema
		if schema, err = codec.Deserialize(ev.Data, s.registry); err == nil {
			err = s.store.Replace(schema)
		}
	}
	if err != nil {
		err = fmt.Errorf("session: load %s: %w", ev.Name, err)
		s.logger.Error().Err(err).Msg("load failed")
		reply(replyTo, Result{}, err)
		s.emit(ChangeFailed, ev, err)
		return
	}
	s.name = ev.Name
	reply(replyTo, Result{}, nil)
	s.emit(ChangeLoaded, ev, nil)
}

func (s *Session) finishSave(ev SaveCompleted) {
	replyTo := s.unpark(persistence.OpSave, ev.Ticket)
	if !s.isLatest(persistence.OpSave, ev.Ticket) {
		s.logger.Debug().Str("form", ev.Name).Uint64("ticket", ev.Ticket).Msg("stale save discarded")
		reply(replyTo, Result{}, persistence.ErrSuperseded)
		return
	}
	if ev.Err != nil {
		err := fmt.Errorf("session: save %s: %w", ev.Name, ev.Err)
		s.logger.Error().Err(err).Msg("save failed")
		reply(replyTo, Result{}, err)
		s.emit(ChangeFailed, ev, err)
		return
	}
	s.name = ev.Name
	reply(replyTo, Result{}, nil)
	s.emit(ChangeSaved, ev, nil)
}

// deliver runs on requester workers and hands completions to the loop.
func (s *Session) deliver(c persistence.Completion) {
	var ev Event
	switch c.Op {
	case persistence.OpLoad:
		ev = LoadCompleted{Completion: c}
	default:
		ev = SaveCompleted{Completion: c}
	}
	select {
	case s.queue <- envelope{event: ev}:
	case <-s.quit:
	case <-s.done:
	}
}

// rebuild is the store listener. It runs inside Replace, which is only
// called from the loop.
func (s *Session) rebuild(schema model.FormSchema, revision uint64) {
	var carried map[string]any
	if s.instance != nil {
		carried = s.instance.Values()
	}
	inst, err := s.newPreview(schema, carried)
	if err != nil {
		s.logger.Error().Err(err).Uint64("revision", revision).Msg("preview rebuild failed")
		return
	}
	s.instance = inst
}

func (s *Session) newPreview(schema model.FormSchema, values map[string]any) (*preview.Instance, error) {
	return preview.New(schema, s.registry,
		preview.WithValues(values),
		preview.WithVisibility(s.visibility),
	)
}

func (s *Session) isLatest(op persistence.Op, ticket uint64) bool {
	return s.requester != nil && s.requester.IsLatest(op, ticket)
}

func (s *Session) park(op persistence.Op, ticket uint64, replyTo chan outcome) {
	if replyTo != nil {
		s.waiting[op][ticket] = replyTo
	}
}

func (s *Session) unpark(op persistence.Op, ticket uint64) chan outcome {
	replyTo := s.waiting[op][ticket]
	delete(s.waiting[op], ticket)
	return replyTo
}

func (s *Session) emit(kind ChangeKind, ev Event, err error) {
	if err != nil {
		kind = ChangeFailed
	}
	change := Change{
		Kind:     kind,
		Event:    ev,
		Name:     s.name,
		Revision: s.store.Revision(),
		Err:      err,
	}
	s.listenersMu.Lock()
	listeners := append([]changeListener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range listeners {
		l.fn(change)
	}
}

func reply(replyTo chan outcome, result Result, err error) {
	if replyTo != nil {
		replyTo <- outcome{result: result, err: err}
	}
}

func eventName(ev Event) string {
	name := fmt.Sprintf("%T", ev)
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
