package openapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
)

// ErrInvalidSubmission is matched by errors returned from ValidateSubmission
// when the payload does not satisfy the submission schema.
var ErrInvalidSubmission = errors.New("openapi: invalid submission")

// Issue is one schema failure. Path is a JSON pointer into the payload; an
// empty path refers to the payload as a whole.
type Issue struct {
	Path    string
	Message string
}

// SubmissionError lists every issue found in a payload.
type SubmissionError struct {
	Issues []Issue
}

func (e *SubmissionError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("openapi: invalid submission: %s", e.Issues[0])
	}
	return fmt.Sprintf("openapi: invalid submission: %d issues", len(e.Issues))
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrInvalidSubmission
}

// Payload groups issue messages by path, the shape render.MapErrorPayload
// accepts.
func (e *SubmissionError) Payload() map[string][]string {
	out := make(map[string][]string, len(e.Issues))
	for _, issue := range e.Issues {
		key := issue.Path
		if key == "" {
			key = "form"
		}
		out[key] = append(out[key], issue.Message)
	}
	return out
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidateSubmission checks payload against the submission schema of form.
// Schema failures are reported as a *SubmissionError.
func ValidateSubmission(form model.FormSchema, reg *registry.Registry, payload map[string]any) error {
	schema, err := SubmissionSchema(form, reg)
	if err != nil {
		return err
	}

	value := model.NormalizeValue(payload)
	if payload == nil {
		value = map[string]any{}
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		issues := collectIssues(err, nil)
		if len(issues) == 0 {
			return fmt.Errorf("openapi: validate submission: %w", err)
		}
		return &SubmissionError{Issues: issues}
	}
	return nil
}

func collectIssues(err error, out []Issue) []Issue {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, inner := range multi {
			out = collectIssues(inner, out)
		}
		return sortIssues(out)
	}

	var schemaErr *openapi3.SchemaError
	if !errors.As(err, &schemaErr) {
		return out
	}
	pointer := schemaErr.JSONPointer()
	path := ""
	if len(pointer) > 0 {
		path = "/" + strings.Join(pointer, "/")
	}
	message := schemaErr.Reason
	if message == "" {
		message = schemaErr.Error()
	}
	return append(out, Issue{Path: path, Message: message})
}

func sortIssues(issues []Issue) []Issue {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})
	return issues
}
