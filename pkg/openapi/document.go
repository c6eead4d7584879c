package openapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

const defaultOperationID = "submitForm"

type documentConfig struct {
	path        string
	operationID string
	serverURL   string
}

// DocumentOption customizes Document.
type DocumentOption func(*documentConfig)

// WithPath sets the submission endpoint. Defaults to "/forms/" followed by a
// slug of the form title.
func WithPath(path string) DocumentOption {
	return func(cfg *documentConfig) {
		if path != "" {
			cfg.path = path
		}
	}
}

// WithOperationID overrides the operation id of the submit operation.
func WithOperationID(id string) DocumentOption {
	return func(cfg *documentConfig) {
		if id != "" {
			cfg.operationID = id
		}
	}
}

// WithServerURL adds a server entry to the document.
func WithServerURL(url string) DocumentOption {
	return func(cfg *documentConfig) {
		cfg.serverURL = url
	}
}

// Document wraps the submission schema of form in a minimal OpenAPI 3
// document exposing a single POST operation. The document is validated
// before it is returned.
func Document(ctx context.Context, form model.FormSchema, reg *registry.Registry, options ...DocumentOption) (*openapi3.T, error) {
	cfg := documentConfig{
		path:        "/forms/" + slug(form.Title),
		operationID: defaultOperationID,
	}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	schema, err := SubmissionSchema(form, reg)
	if err != nil {
		return nil, err
	}

	title := form.Title
	if title == "" {
		title = "Form"
	}
	version := "1"
	if form.Version > 0 {
		version = strconv.Itoa(form.Version)
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: title, Version: version},
		Paths:   openapi3.NewPaths(),
	}
	if cfg.serverURL != "" {
		doc.Servers = openapi3.Servers{{URL: cfg.serverURL}}
	}

	op := openapi3.NewOperation()
	op.OperationID = cfg.operationID
	op.Summary = "Submit " + title
	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(schema),
	}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(http.StatusNoContent, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription("Submission accepted"),
		}),
		openapi3.WithStatus(http.StatusUnprocessableEntity, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("Submission rejected").
				WithJSONSchema(errorPayloadSchema()),
		}),
	)
	doc.AddOperation(cfg.path, http.MethodPost, op)

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: validate document: %w", err)
	}
	return doc, nil
}

// errorPayloadSchema matches SubmissionError.Payload: messages keyed by JSON
// pointer.
func errorPayloadSchema() *openapi3.Schema {
	messages := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	return openapi3.NewObjectSchema().WithAdditionalProperties(messages)
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "form"
	}
	return out
}
