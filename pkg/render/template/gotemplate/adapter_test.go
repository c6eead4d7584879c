package gotemplate_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formbuilder/pkg/render/template/gotemplate"
)

func newEngine(t *testing.T, options ...gotemplate.Option) *gotemplate.Engine {
	t.Helper()

	files := fstest.MapFS{
		"hello.tpl":      {Data: []byte(`Hello {{ name }}!`)},
		"use-global.tpl": {Data: []byte(`env={{ settings.env }}`)},
		"use-filter.tpl": {Data: []byte(`{{ name|shout }}`)},
		"escape.tpl":     {Data: []byte(`<p>{{ label }}</p><p>{{ trusted|safe }}</p>`)},
		"struct.tpl":     {Data: []byte(`{{ form.title }}:{% for f in form.fields %}{{ f.id }};{% endfor %}`)},
	}
	engine, err := gotemplate.New(append([]gotemplate.Option{gotemplate.WithFS(files)}, options...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestRenderTemplate_WritesResultAndWriters(t *testing.T) {
	engine := newEngine(t)

	var buf strings.Builder
	got, err := engine.RenderTemplate("hello", map[string]any{"name": "Ada"}, &buf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Hello Ada!" || buf.String() != got {
		t.Fatalf("unexpected output %q / %q", got, buf.String())
	}
}

func TestRenderTemplate_Autoescapes(t *testing.T) {
	engine := newEngine(t)

	got, err := engine.RenderTemplate("escape", map[string]any{
		"label":   `<script>x</script>`,
		"trusted": `<b>ok</b>`,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<p>&lt;script&gt;x&lt;/script&gt;</p><p><b>ok</b></p>`
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestRenderTemplate_StructDataUsesJSONNames(t *testing.T) {
	engine := newEngine(t)

	type field struct {
		ID string `json:"id"`
	}
	type form struct {
		Title  string  `json:"title"`
		Fields []field `json:"fields"`
	}
	got, err := engine.RenderTemplate("struct", map[string]any{"form": nil})
	if err != nil {
		t.Fatalf("render nil form: %v", err)
	}
	if got != ":" {
		t.Fatalf("unexpected output for nil form %q", got)
	}

	got, err = engine.RenderTemplate("struct", struct {
		Form form `json:"form"`
	}{Form: form{Title: "Contact", Fields: []field{{ID: "a"}, {ID: "b"}}}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Contact:a;b;" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestGlobalContext(t *testing.T) {
	engine := newEngine(t, gotemplate.WithGlobals(map[string]any{
		"settings": map[string]any{"env": "dev"},
	}))

	got, err := engine.RenderTemplate("use-global", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "env=dev" {
		t.Fatalf("unexpected output %q", got)
	}

	if err := engine.GlobalContext(map[string]any{"settings": map[string]any{"env": "staging"}}); err != nil {
		t.Fatalf("global context: %v", err)
	}
	got, err = engine.RenderTemplate("use-global", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "env=staging" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRegisterFilter(t *testing.T) {
	engine := newEngine(t)
	shout := func(input any, _ any) (any, error) {
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	}
	// filters are process-wide, so a repeated run finds it registered
	if err := engine.RegisterFilter("shout", shout); err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("register filter: %v", err)
	}
	if err := engine.RegisterFilter("shout", shout); err == nil {
		t.Fatalf("expected duplicate filter registration to fail")
	}

	got, err := engine.RenderTemplate("use-filter", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "ADA!" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderString_AndErrors(t *testing.T) {
	engine := newEngine(t)

	got, err := engine.RenderString(`{{ a }}+{{ b }}`, map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("render string: %v", err)
	}
	if got != "1+2" {
		t.Fatalf("unexpected output %q", got)
	}

	if _, err := engine.RenderString(`{% if %}`, nil); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := engine.RenderTemplate("missing", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := gotemplate.New(); err == nil {
		t.Fatalf("expected error without template source")
	}
}

func TestBaseDirAndExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "card.html"), []byte(`<b>{{ title }}</b>`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	engine, err := gotemplate.New(gotemplate.WithBaseDir(dir), gotemplate.WithExtension("html"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	got, err := engine.RenderTemplate("card", map[string]any{"title": "Hi"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<b>Hi</b>" {
		t.Fatalf("unexpected output %q", got)
	}
}
