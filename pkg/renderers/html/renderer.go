// Package html renders a preview instance as an HTML form. Markup comes
// from pongo2 templates; labels and help text may carry a small set of inline
// tags and pass through a bluemonday policy before reaching the template.
package html

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formbuilder/pkg/preview"
	"github.com/goliatone/go-formbuilder/pkg/render"
	rendertemplate "github.com/goliatone/go-formbuilder/pkg/render/template"
	"github.com/goliatone/go-formbuilder/pkg/render/template/gotemplate"
)

// Name is the renderer name used in render.Registry.
const Name = "html"

// Option configures the renderer.
type Option func(*config)

type config struct {
	templateFS  fs.FS
	templates   rendertemplate.TemplateRenderer
	policy      *bluemonday.Policy
	options     render.Options
	stylesheet  bool
	submitLabel string
}

// WithTemplatesFS supplies an alternate template bundle. It must contain
// templates/form.tpl.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads the template bundle from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.templateFS = os.DirFS(path)
		}
	}
}

// WithTemplateRenderer injects a template engine, bypassing the pongo2
// default.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templates = renderer
		}
	}
}

// WithPolicy replaces the sanitizing policy for labels and help text.
func WithPolicy(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.policy = policy
		}
	}
}

// WithRenderOptions sets action, method, hidden inputs and server errors.
func WithRenderOptions(options render.Options) Option {
	return func(cfg *config) {
		cfg.options = options
	}
}

// WithInlineStylesheet embeds the default stylesheet in a <style> tag.
func WithInlineStylesheet(enabled bool) Option {
	return func(cfg *config) {
		cfg.stylesheet = enabled
	}
}

// WithSubmitLabel overrides the submit button text.
func WithSubmitLabel(label string) Option {
	return func(cfg *config) {
		if label = strings.TrimSpace(label); label != "" {
			cfg.submitLabel = label
		}
	}
}

// LabelPolicy is the default policy: inline emphasis, code, line breaks
// and links with safe URLs. Everything else is stripped.
func LabelPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "code", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Renderer is the HTML form renderer.
type Renderer struct {
	templates   rendertemplate.TemplateRenderer
	policy      *bluemonday.Policy
	options     render.Options
	stylesheet  string
	submitLabel string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS(), submitLabel: "Submit"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.policy == nil {
		cfg.policy = LabelPolicy()
	}

	templates := cfg.templates
	if templates == nil {
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithSetName("formbuilder-html"),
		)
		if err != nil {
			return nil, fmt.Errorf("html renderer: configure template renderer: %w", err)
		}
		templates = engine
	}

	r := &Renderer{
		templates:   templates,
		policy:      cfg.policy,
		options:     cfg.options,
		submitLabel: cfg.submitLabel,
	}
	if cfg.stylesheet {
		r.stylesheet = defaultStylesheet()
	}
	return r, nil
}

func (r *Renderer) Name() string { return Name }

func (r *Renderer) ContentType() string { return "text/html; charset=utf-8" }

// Render executes templates/form.tpl against the instance view.
func (r *Renderer) Render(ctx context.Context, instance *preview.Instance) ([]byte, error) {
	if instance == nil {
		return nil, fmt.Errorf("html renderer: instance is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := instance.View()
	method := strings.ToLower(strings.TrimSpace(r.options.Method))
	if method == "" {
		method = "post"
	}
	hidden := append([]render.HiddenField{render.VersionField(view.Version)}, r.options.Hidden...)

	out, err := r.templates.RenderTemplate("templates/form", map[string]any{
		"form":        view,
		"rows":        r.rows(view.Fields, "", r.options.Errors),
		"action":      strings.TrimSpace(r.options.Action),
		"method":      method,
		"hidden":      render.MergeHiddenFields(hidden...),
		"formErrors":  render.MergeFormErrors(r.options.FormErrors),
		"stylesheet":  r.stylesheet,
		"submitLabel": r.submitLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: render template: %w", err)
	}
	return []byte(out), nil
}
