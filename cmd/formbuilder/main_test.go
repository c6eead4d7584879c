package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-formbuilder/pkg/codec"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer lets the watch test read output while the session loop writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, dir: t.TempDir()}
}

func (h *harness) args(args ...string) []string {
	return append([]string{
		"--config", filepath.Join(h.dir, "missing.yaml"),
		"--dir", filepath.Join(h.dir, "forms"),
	}, args...)
}

func (h *harness) exec(ctx context.Context, out *syncBuffer, args ...string) error {
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(h.args(args...))
	return cmd.ExecuteContext(ctx)
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	out := &syncBuffer{}
	err := h.exec(context.Background(), out, args...)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("formbuilder %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (h *harness) addField(form, kind, id string, extra ...string) {
	h.t.Helper()
	generated := strings.TrimSpace(h.mustRun(append([]string{"add", form, kind}, extra...)...))
	if generated == "" {
		h.t.Fatalf("add %s printed no id", kind)
	}
	h.mustRun("update", form, generated, "--id", id)
}

func (h *harness) schema(form string) model.FormSchema {
	h.t.Helper()
	schema, err := codec.Deserialize([]byte(h.mustRun("show", form)), registry.Default())
	if err != nil {
		h.t.Fatalf("decode show output: %v", err)
	}
	return schema
}

func (h *harness) writeFile(name string, data []byte) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func fieldIDs(fields []model.FieldDefinition) []string {
	ids := make([]string, 0, len(fields))
	for _, field := range fields {
		ids = append(ids, field.ID)
	}
	return ids
}

func (h *harness) buildContact() {
	h.t.Helper()
	h.mustRun("new", "contact", "--title", "Contact us")
	h.addField("contact", registry.KindEmail, "email", "--label", "Email", "--required")
	h.addField("contact", registry.KindText, "name", "-l", "Name", "-r", "--rule", "minLength=2")
	h.addField("contact", registry.KindSelect, "topic", "-l", "Topic", "-o", "choices=[sales, support]")
}

func TestCLI_BuildEditAndDelete(t *testing.T) {
	h := newHarness(t)

	if out := h.mustRun("list"); !strings.Contains(out, "no forms stored yet") {
		t.Fatalf("expected empty listing, got %q", out)
	}

	h.buildContact()
	if _, err := h.run("new", "contact"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate form error, got %v", err)
	}

	schema := h.schema("contact")
	if schema.Title != "Contact us" {
		t.Fatalf("title = %q", schema.Title)
	}
	if diff := cmp.Diff([]string{"email", "name", "topic"}, fieldIDs(schema.Fields)); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	name := model.Find(schema.Fields, "name")
	wantRules := []model.ValidationRule{{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "2"}}}
	if diff := cmp.Diff(wantRules, name.ValidationRules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
	topic := model.Find(schema.Fields, "topic")
	if diff := cmp.Diff([]any{"sales", "support"}, topic.Options[model.OptionChoices]); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}

	// option patches merge into the existing options
	h.mustRun("update", "contact", "topic", "-o", "placeholder=Pick one")
	topic = model.Find(h.schema("contact").Fields, "topic")
	if topic.Options[model.OptionPlaceholder] != "Pick one" || topic.Options[model.OptionChoices] == nil {
		t.Fatalf("unexpected topic options %#v", topic.Options)
	}

	h.mustRun("move", "contact", "name", "--position", "0")
	h.mustRun("remove", "contact", "topic")
	if diff := cmp.Diff([]string{"name", "email"}, fieldIDs(h.schema("contact").Fields)); diff != "" {
		t.Fatalf("field order after move/remove mismatch (-want +got):\n%s", diff)
	}

	if _, err := h.run("update", "contact", "missing", "-l", "x"); err == nil {
		t.Fatalf("expected error updating an unknown field")
	}
	if _, err := h.run("add", "contact", "no-such-kind"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}

	if out := h.mustRun("ls"); !strings.Contains(out, "contact") {
		t.Fatalf("listing missing contact:\n%s", out)
	}
	h.mustRun("delete", "contact")
	if out := h.mustRun("list"); !strings.Contains(out, "no forms stored yet") {
		t.Fatalf("expected empty listing after delete, got %q", out)
	}
}

func TestCLI_ImportShowAndKinds(t *testing.T) {
	h := newHarness(t)

	yamlSource, err := codec.ExportYAML(testsupport.SignupForm())
	if err != nil {
		t.Fatalf("export yaml: %v", err)
	}
	path := h.writeFile("signup.yaml", yamlSource)
	if out := h.mustRun("import", path, "signup"); !strings.Contains(out, "imported") {
		t.Fatalf("unexpected import output %q", out)
	}

	schema := h.schema("signup")
	if diff := cmp.Diff(fieldIDs(testsupport.SignupForm().Fields), fieldIDs(schema.Fields)); diff != "" {
		t.Fatalf("imported fields mismatch (-want +got):\n%s", diff)
	}
	if out := h.mustRun("show", "signup", "--yaml"); !strings.Contains(out, "title: Signup") {
		t.Fatalf("yaml output missing title:\n%s", out)
	}

	out := h.mustRun("kinds")
	for _, kind := range []string{registry.KindText, registry.KindMultiSelect, registry.KindRepeater} {
		if !strings.Contains(out, kind) {
			t.Fatalf("kinds output missing %s:\n%s", kind, out)
		}
	}
}

func TestCLI_Lint(t *testing.T) {
	h := newHarness(t)

	valid, err := codec.Serialize(testsupport.ContactForm())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	validPath := h.writeFile("contact.json", valid)
	invalidPath := h.writeFile("broken.json", []byte(`{"title":"Broken","version":1,"fields":[
		{"id":"a","kind":"text","label":"A","required":false,"order":0,"options":{},"validationRules":[]},
		{"id":"a","kind":"nope","label":"B","required":false,"order":1,"options":{},"validationRules":[]}
	]}`))

	if out := h.mustRun("lint", validPath); !strings.HasPrefix(out, "ok") {
		t.Fatalf("expected ok, got %q", out)
	}

	out, err := h.run("lint", validPath, invalidPath)
	if !errors.Is(err, errLintFailed) {
		t.Fatalf("expected errLintFailed, got %v", err)
	}
	if !strings.Contains(out, "fail "+invalidPath) {
		t.Fatalf("lint output missing failure line:\n%s", out)
	}

	h.buildContact()
	if out := h.mustRun("lint", "--stored", "contact"); !strings.Contains(out, "ok   contact") {
		t.Fatalf("stored lint output %q", out)
	}
}

func TestCLI_Preview(t *testing.T) {
	h := newHarness(t)
	h.buildContact()

	good := h.writeFile("good.json", []byte(`{"name":"Ada","email":"ada@example.com","topic":"sales"}`))
	if out := h.mustRun("preview", "validate", "contact", good); !strings.HasPrefix(out, "ok") {
		t.Fatalf("expected valid payload, got %q", out)
	}

	bad := h.writeFile("bad.json", []byte(`{"name":"A","email":"not-an-email"}`))
	out, err := h.run("preview", "validate", "contact", bad)
	if !errors.Is(err, errInvalidPayload) {
		t.Fatalf("expected errInvalidPayload, got %v", err)
	}
	for _, path := range []string{"/name", "/email"} {
		if !strings.Contains(out, "fail "+path) {
			t.Fatalf("validate output missing %s:\n%s", path, out)
		}
	}

	html := h.mustRun("preview", "render", "contact", "--values", good)
	for _, fragment := range []string{
		`<h2 class="fb-title">Contact us</h2>`,
		`id="fb-email" name="email" value="ada@example.com"`,
		`<option value="sales" selected>sales</option>`,
	} {
		if !strings.Contains(html, fragment) {
			t.Fatalf("render output missing %q\n%s", fragment, html)
		}
	}

	received := h.writeFile("received.json", []byte(`{"name":"Ada","email":"ada@example.com","extra":true}`))
	rejected := h.mustRun("preview", "render", "contact", "--submission", received)
	if !strings.Contains(rejected, `class="fb-form-errors"`) {
		t.Fatalf("expected form-level errors for the unknown key:\n%s", rejected)
	}
	if _, err := h.run("preview", "render", "contact", "--values", good, "--submission", received); err == nil {
		t.Fatalf("expected --values and --submission to be mutually exclusive")
	}

	target := filepath.Join(h.dir, "contact.html")
	h.mustRun("preview", "render", "contact", "-O", target)
	if data, err := os.ReadFile(target); err != nil || !strings.Contains(string(data), "<form") {
		t.Fatalf("render to file: %v\n%s", err, data)
	}

	var body struct {
		Required             []string       `json:"required"`
		Properties           map[string]any `json:"properties"`
		AdditionalProperties bool           `json:"additionalProperties"`
	}
	if err := json.Unmarshal([]byte(h.mustRun("preview", "schema", "contact", "--body-only")), &body); err != nil {
		t.Fatalf("decode body schema: %v", err)
	}
	if diff := cmp.Diff([]string{"email", "name"}, body.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	if len(body.Properties) != 3 || body.AdditionalProperties {
		t.Fatalf("unexpected body schema %+v", body)
	}

	doc := h.mustRun("preview", "schema", "contact", "--yaml", "--path", "/contact")
	for _, fragment := range []string{"openapi: 3.0.3", "/contact:", "operationId: submitForm"} {
		if !strings.Contains(doc, fragment) {
			t.Fatalf("document missing %q\n%s", fragment, doc)
		}
	}
}

func TestCLI_WatchReloadsOnChange(t *testing.T) {
	h := newHarness(t)
	h.buildContact()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	finished := make(chan error, 1)
	go func() { finished <- h.exec(ctx, out, "watch", "contact") }()

	waitFor := func(fragment string, count int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for strings.Count(out.String(), fragment) < count {
			if time.Now().After(deadline) {
				cancel()
				<-finished
				t.Fatalf("timed out waiting for %d x %q\n%s", count, fragment, out.String())
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	waitFor("watching contact", 1)
	h.mustRun("remove", "contact", "topic")
	waitFor("field(s)", 2)
	if !strings.Contains(out.String(), "2 field(s)") {
		t.Fatalf("reload did not pick up the removal:\n%s", out.String())
	}

	cancel()
	if err := <-finished; err != nil {
		t.Fatalf("watch returned %v", err)
	}
}
