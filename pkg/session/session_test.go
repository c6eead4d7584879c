package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formbuilder/pkg/builder"
	"github.com/goliatone/go-formbuilder/pkg/codec"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/persistence"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/session"
	"github.com/goliatone/go-formbuilder/pkg/storage"
	"github.com/goliatone/go-formbuilder/pkg/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func start(t *testing.T, options ...session.Option) *session.Session {
	t.Helper()

	options = append([]session.Option{
		session.WithBuilderOptions(builder.WithIDGenerator(builder.SequentialIDs("f"))),
	}, options...)
	s, err := session.New(options...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		s.Close()
		<-errCh
	})
	return s
}

func fsBackend(t *testing.T) *storage.FS {
	t.Helper()
	backend, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	return backend
}

// slowBackend serves canned documents. Loads of names in gates block until
// the gate is closed and ignore cancellation, so a superseded load still
// completes with data.
type slowBackend struct {
	mu      sync.Mutex
	docs    map[string][]byte
	gates   map[string]chan struct{}
	started chan string
}

func (b *slowBackend) Load(_ context.Context, name string) ([]byte, error) {
	b.started <- name
	b.mu.Lock()
	gate := b.gates[name]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *slowBackend) Save(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[name] = data
	return nil
}

func (b *slowBackend) List(context.Context) ([]storage.Entry, error) { return nil, nil }
func (b *slowBackend) Delete(context.Context, string) error          { return nil }
func (b *slowBackend) Close() error                                  { return nil }

func mustSerialize(t *testing.T, schema model.FormSchema) []byte {
	t.Helper()
	data, err := codec.Serialize(schema)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return data
}

func TestBuilderEventsRebuildPreview(t *testing.T) {
	ctx := testsupport.Context(t)
	s := start(t)

	name, err := s.AddField(ctx, "", registry.KindText, 0)
	if err != nil {
		t.Fatalf("add field: %v", err)
	}
	required := true
	if err := s.UpdateField(ctx, name, model.FieldPatch{Required: &required}); err != nil {
		t.Fatalf("update field: %v", err)
	}

	if _, err := s.Submit(ctx); !errors.Is(err, session.ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
	if err := s.SetValue(ctx, name, "Ada"); err != nil {
		t.Fatalf("set value: %v", err)
	}

	// a further edit rebuilds the preview and keeps the value of the
	// surviving field
	if _, err := s.AddField(ctx, "", registry.KindCheckbox, 1); err != nil {
		t.Fatalf("add checkbox: %v", err)
	}
	values, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"f1": "Ada"}, values); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	view, err := s.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Fields) != 2 || !view.Valid {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestBuilderErrorsLeaveSchemaUntouched(t *testing.T) {
	ctx := testsupport.Context(t)
	s := start(t, session.WithInitial("contact", testsupport.ContactForm()))

	before := s.Revision()
	if _, err := s.AddField(ctx, "", "nope", 0); !errors.Is(err, model.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	newID := "email"
	if err := s.UpdateField(ctx, "name", model.FieldPatch{ID: &newID}); !errors.Is(err, model.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if err := s.SetValue(ctx, "missing", "x"); !errors.Is(err, model.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
	if got := s.Revision(); got != before {
		t.Fatalf("revision moved from %d to %d", before, got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := testsupport.Context(t)
	s := start(t,
		session.WithBackend(fsBackend(t)),
		session.WithInitial("contact", testsupport.ContactForm()),
	)

	if err := s.Save(ctx, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Do(ctx, session.NewForm{Name: "scratch", Title: "Scratch"}); err != nil {
		t.Fatalf("new form: %v", err)
	}
	if got := s.Schema().Title; got != "Scratch" {
		t.Fatalf("expected scratch form, got %q", got)
	}

	if err := s.Load(ctx, "contact"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(testsupport.ContactForm(), s.Schema(), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("loaded schema mismatch (-want +got):\n%s", diff)
	}
	name, err := s.Name(ctx)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	if name != "contact" {
		t.Fatalf("expected name contact, got %q", name)
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	ctx := testsupport.Context(t)

	slowGate := make(chan struct{})
	backend := &slowBackend{
		docs: map[string][]byte{
			"slow": mustSerialize(t, model.FormSchema{Title: "Slow", Version: 1}),
			"fast": mustSerialize(t, model.FormSchema{Title: "Fast", Version: 1}),
		},
		gates:   map[string]chan struct{}{"slow": slowGate},
		started: make(chan string, 4),
	}
	s := start(t, session.WithBackend(backend))

	slowErr := make(chan error, 1)
	go func() { slowErr <- s.Load(ctx, "slow") }()
	select {
	case <-backend.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("slow load never started")
	}

	if err := s.Load(ctx, "fast"); err != nil {
		t.Fatalf("fast load: %v", err)
	}
	revision := s.Revision()

	close(slowGate)
	select {
	case err := <-slowErr:
		if !errors.Is(err, persistence.ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded for the stale load, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("slow load never completed")
	}

	if got := s.Schema().Title; got != "Fast" {
		t.Fatalf("stale load overwrote schema: title %q", got)
	}
	if got := s.Revision(); got != revision {
		t.Fatalf("stale load moved revision from %d to %d", revision, got)
	}
}

func TestMalformedLoadKeepsRevision(t *testing.T) {
	ctx := testsupport.Context(t)
	backend := fsBackend(t)
	if err := backend.Save(ctx, "broken", []byte(`{"title": "Broken", "fields": [`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := start(t,
		session.WithBackend(backend),
		session.WithInitial("contact", testsupport.ContactForm()),
	)

	var changes []session.Change
	var mu sync.Mutex
	unsubscribe := s.OnChange(func(c session.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	defer unsubscribe()

	before := s.Revision()
	err := s.Load(ctx, "broken")
	if !errors.Is(err, model.ErrMalformedSchema) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}
	if got := s.Revision(); got != before {
		t.Fatalf("failed load moved revision from %d to %d", before, got)
	}
	if got := s.Schema().Title; got != "Contact" {
		t.Fatalf("failed load replaced schema: title %q", got)
	}

	if err := s.Load(ctx, "absent"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || changes[0].Kind != session.ChangeFailed || changes[1].Kind != session.ChangeFailed {
		t.Fatalf("expected two failure notifications, got %+v", changes)
	}
}

func TestChangeNotifications(t *testing.T) {
	ctx := testsupport.Context(t)
	s := start(t, session.WithBackend(fsBackend(t)))

	var kinds []session.ChangeKind
	var mu sync.Mutex
	unsubscribe := s.OnChange(func(c session.Change) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, c.Kind)
	})

	id, err := s.AddField(ctx, "", registry.KindText, 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetValue(ctx, id, "x"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if err := s.Save(ctx, "draft"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Load(ctx, "draft"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.RemoveField(ctx, "missing"); err == nil {
		t.Fatalf("expected remove of missing field to fail")
	}
	unsubscribe()
	unsubscribe()
	if _, err := s.Do(ctx, session.ValidateAll{}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []session.ChangeKind{
		session.ChangeSchema,
		session.ChangeValues,
		session.ChangeSaved,
		session.ChangeLoaded,
		session.ChangeFailed,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("change kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistenceWithoutBackendOrName(t *testing.T) {
	ctx := testsupport.Context(t)

	bare := start(t)
	if err := bare.Load(ctx, "contact"); !errors.Is(err, session.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}

	unnamed := start(t, session.WithBackend(fsBackend(t)))
	if err := unnamed.Save(ctx, ""); !errors.Is(err, session.ErrNoName) {
		t.Fatalf("expected ErrNoName, got %v", err)
	}
	if err := unnamed.Load(ctx, "../escape"); !errors.Is(err, storage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestDispatchIsProcessedInOrder(t *testing.T) {
	ctx := testsupport.Context(t)
	s := start(t)

	for i := 0; i < 5; i++ {
		if err := s.Dispatch(ctx, session.AddField{Kind: registry.KindText, Position: 0}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	// Do is queued behind the dispatched events
	if _, err := s.Do(ctx, session.ValidateAll{}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var ids []string
	for _, f := range s.Schema().Fields {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{"f5", "f4", "f3", "f2", "f1"}, ids); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	s, err := session.New(session.WithBackend(fsBackend(t)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	if _, err := s.Do(context.Background(), session.ValidateAll{}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, session.ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}

	s.Close()
	s.Close()
	if err := <-errCh; err != nil {
		t.Fatalf("run returned %v", err)
	}
	if _, err := s.Do(context.Background(), session.ValidateAll{}); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
