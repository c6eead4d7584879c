package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/goliatone/go-formbuilder/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedBackend blocks Load for names listed in gates until the gate is
// closed or the request context ends.
type gatedBackend struct {
	mu    sync.Mutex
	data  map[string][]byte
	gates map[string]chan struct{}
	saves []string
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{data: map[string][]byte{}, gates: map[string]chan struct{}{}}
}

func (b *gatedBackend) gate(name string) chan struct{} {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[name] = ch
	b.mu.Unlock()
	return ch
}

func (b *gatedBackend) wait(ctx context.Context, name string) error {
	b.mu.Lock()
	ch := b.gates[name]
	b.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *gatedBackend) Save(ctx context.Context, name string, data []byte) error {
	if err := b.wait(ctx, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[name] = append([]byte(nil), data...)
	b.saves = append(b.saves, string(data))
	return nil
}

func (b *gatedBackend) Load(ctx context.Context, name string) ([]byte, error) {
	if err := b.wait(ctx, name); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *gatedBackend) List(context.Context) ([]storage.Entry, error) { return nil, nil }
func (b *gatedBackend) Delete(context.Context, string) error          { return nil }
func (b *gatedBackend) Close() error                                  { return nil }

func collect() (func(Completion), <-chan Completion) {
	ch := make(chan Completion, 16)
	return func(c Completion) { ch <- c }, ch
}

func next(t *testing.T, ch <-chan Completion) Completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatalf("no completion delivered")
		return Completion{}
	}
}

func TestLoad_DeliversData(t *testing.T) {
	backend := newGatedBackend()
	backend.data["contact"] = []byte(`{"title":"Contact"}`)
	deliver, ch := collect()
	r := New(backend, deliver)
	defer r.Close()

	ticket, err := r.Load(context.Background(), "contact")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := next(t, ch)
	if c.Op != OpLoad || c.Ticket != ticket || c.Err != nil || string(c.Data) != `{"title":"Contact"}` {
		t.Fatalf("unexpected completion %+v", c)
	}
	if !r.IsLatest(OpLoad, ticket) {
		t.Fatalf("expected ticket %d to be latest", ticket)
	}
}

func TestLoad_SupersededRequestIsCancelled(t *testing.T) {
	backend := newGatedBackend()
	backend.data["slow"] = []byte(`{"title":"Slow"}`)
	backend.data["fast"] = []byte(`{"title":"Fast"}`)
	backend.gate("slow")
	deliver, ch := collect()
	r := New(backend, deliver)
	defer r.Close()

	first, err := r.Load(context.Background(), "slow")
	if err != nil {
		t.Fatalf("load slow: %v", err)
	}
	second, err := r.Load(context.Background(), "fast")
	if err != nil {
		t.Fatalf("load fast: %v", err)
	}
	if second <= first {
		t.Fatalf("tickets not increasing: %d then %d", first, second)
	}

	got := map[uint64]Completion{}
	for i := 0; i < 2; i++ {
		c := next(t, ch)
		got[c.Ticket] = c
	}
	if !errors.Is(got[first].Err, context.Canceled) {
		t.Fatalf("expected superseded load to be cancelled, got %v", got[first].Err)
	}
	if r.IsLatest(OpLoad, first) {
		t.Fatalf("superseded ticket reported as latest")
	}
	if got[second].Err != nil || string(got[second].Data) != `{"title":"Fast"}` {
		t.Fatalf("unexpected latest completion %+v", got[second])
	}
}

func TestSave_LatestWins(t *testing.T) {
	backend := newGatedBackend()
	gate := backend.gate("contact")
	deliver, ch := collect()
	r := New(backend, deliver)
	defer r.Close()

	var tickets []uint64
	for _, body := range []string{"v1", "v2", "v3"} {
		ticket, err := r.Save(context.Background(), "contact", []byte(body))
		if err != nil {
			t.Fatalf("save %s: %v", body, err)
		}
		tickets = append(tickets, ticket)
	}
	close(gate)

	for range tickets {
		next(t, ch)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if string(backend.data["contact"]) != "v3" {
		t.Fatalf("expected newest save on disk, got %q (writes %v)", backend.data["contact"], backend.saves)
	}
	if !r.IsLatest(OpSave, tickets[2]) {
		t.Fatalf("expected last ticket to be latest")
	}
}

func TestSave_CopiesInput(t *testing.T) {
	backend := newGatedBackend()
	gate := backend.gate("contact")
	deliver, ch := collect()
	r := New(backend, deliver)
	defer r.Close()

	body := []byte("original")
	if _, err := r.Save(context.Background(), "contact", body); err != nil {
		t.Fatalf("save: %v", err)
	}
	copy(body, "mutated!")
	close(gate)
	next(t, ch)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if string(backend.data["contact"]) != "original" {
		t.Fatalf("save observed caller mutation: %q", backend.data["contact"])
	}
}

func TestClose_CancelsPendingAndRejectsNewRequests(t *testing.T) {
	backend := newGatedBackend()
	backend.gate("slow")
	deliver, ch := collect()
	r := New(backend, deliver)

	if _, err := r.Load(context.Background(), "slow"); err != nil {
		t.Fatalf("load: %v", err)
	}
	r.Close()

	c := next(t, ch)
	if !errors.Is(c.Err, context.Canceled) {
		t.Fatalf("expected cancelled completion, got %v", c.Err)
	}
	if _, err := r.Load(context.Background(), "slow"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	r.Close()
}

func TestCallerContextCancelsRequest(t *testing.T) {
	backend := newGatedBackend()
	backend.gate("slow")
	deliver, ch := collect()
	r := New(backend, deliver)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.Load(ctx, "slow"); err != nil {
		t.Fatalf("load: %v", err)
	}
	cancel()

	if c := next(t, ch); !errors.Is(c.Err, context.Canceled) {
		t.Fatalf("expected cancelled completion, got %v", c.Err)
	}
}
