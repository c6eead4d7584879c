// Package persistence runs storage I/O off the caller's goroutine. Each
// request gets a ticket; only the latest ticket per operation counts, so a
// slow response to an older request can be recognised and dropped.
package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formbuilder/pkg/storage"
)

var (
	// ErrClosed is returned for requests issued after Close.
	ErrClosed = errors.New("persistence: requester closed")
	// ErrSuperseded is reported for a save skipped because a newer save was
	// issued before it started writing.
	ErrSuperseded = errors.New("persistence: superseded by a newer request")
)

// Op identifies the operation a ticket belongs to.
type Op string

const (
	OpLoad Op = "load"
	OpSave Op = "save"
)

// Completion is delivered once per request.
type Completion struct {
	Op     Op
	Ticket uint64
	Name   string
	Data   []byte
	Err    error
}

// Option configures a Requester.
type Option func(*Requester)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Requester) {
		r.logger = logger
	}
}

// Requester issues backend calls on worker goroutines and hands results to
// deliver. deliver is called from those goroutines.
type Requester struct {
	backend storage.Backend
	deliver func(Completion)
	logger  zerolog.Logger

	mu      sync.Mutex
	closed  bool
	latest  map[Op]uint64
	cancels map[Op]context.CancelFunc
	root    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// saveMu orders writes so the newest save is the last one on disk.
	saveMu sync.Mutex
}

// New returns a requester over backend.
func New(backend storage.Backend, deliver func(Completion), options ...Option) *Requester {
	root, stop := context.WithCancel(context.Background())
	r := &Requester{
		backend: backend,
		deliver: deliver,
		logger:  zerolog.Nop(),
		latest:  make(map[Op]uint64),
		cancels: make(map[Op]context.CancelFunc),
		root:    root,
		stop:    stop,
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Load reads name in the background and returns the request ticket. A
// pending load is cancelled.
func (r *Requester) Load(ctx context.Context, name string) (uint64, error) {
	return r.start(ctx, OpLoad, name, func(ctx context.Context, ticket uint64) Completion {
		data, err := r.backend.Load(ctx, name)
		return Completion{Op: OpLoad, Ticket: ticket, Name: name, Data: data, Err: err}
	})
}

// Save writes data under name in the background and returns the request
// ticket. A pending save that has not started writing is skipped.
func (r *Requester) Save(ctx context.Context, name string, data []byte) (uint64, error) {
	body := append([]byte(nil), data...)
	return r.start(ctx, OpSave, name, func(ctx context.Context, ticket uint64) Completion {
		r.saveMu.Lock()
		defer r.saveMu.Unlock()
		if !r.IsLatest(OpSave, ticket) {
			return Completion{Op: OpSave, Ticket: ticket, Name: name, Err: ErrSuperseded}
		}
		err := r.backend.Save(ctx, name, body)
		return Completion{Op: OpSave, Ticket: ticket, Name: name, Err: err}
	})
}

// IsLatest reports whether ticket is the newest one issued for op.
func (r *Requester) IsLatest(op Op, ticket uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[op] == ticket
}

func (r *Requester) start(ctx context.Context, op Op, name string, run func(context.Context, uint64) Completion) (uint64, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrClosed
	}
	r.latest[op]++
	ticket := r.latest[op]
	if cancel := r.cancels[op]; cancel != nil && op == OpLoad {
		cancel()
	}
	reqCtx, cancel := context.WithCancel(r.root)
	r.cancels[op] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	// ctx bounds the request as well as the requester's own lifetime
	stopAfter := context.AfterFunc(ctx, cancel)

	r.logger.Debug().Str("op", string(op)).Str("form", name).Uint64("ticket", ticket).Msg("request issued")
	go func() {
		defer r.wg.Done()
		defer stopAfter()
		defer cancel()
		completion := run(reqCtx, ticket)
		if r.deliver != nil {
			r.deliver(completion)
		}
	}()
	return ticket, nil
}

// Close cancels pending requests and waits for their workers to return.
// Completions of cancelled requests are still delivered.
func (r *Requester) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
}
