package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/openapi"
	"github.com/goliatone/go-formbuilder/pkg/preview"
	"github.com/goliatone/go-formbuilder/pkg/render"
	"github.com/goliatone/go-formbuilder/pkg/renderers/html"
	"github.com/goliatone/go-formbuilder/pkg/renderers/tui"
	"github.com/goliatone/go-formbuilder/pkg/visibility/expr"
)

var errInvalidPayload = errors.New("payload is invalid")

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render, fill and validate stored forms",
	}
	cmd.AddCommand(
		newPreviewRenderCmd(a),
		newPreviewFillCmd(a),
		newPreviewValidateCmd(a),
		newPreviewSchemaCmd(a),
	)
	return cmd
}

// instance builds a preview of a stored form, optionally prefilled from a
// JSON values file.
func (a *app) instance(cmd *cobra.Command, name, valuesPath string) (*preview.Instance, error) {
	schema, err := a.loadSchema(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	options := []preview.Option{preview.WithVisibility(expr.New())}
	if valuesPath != "" {
		values, err := readValues(valuesPath)
		if err != nil {
			return nil, err
		}
		options = append(options, preview.WithValues(values))
	}
	return preview.New(schema, a.registry, options...)
}

func readValues(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	normalized, _ := model.NormalizeValue(values).(map[string]any)
	return normalized, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "written to %s\n", path)
	return nil
}

func newPreviewRenderCmd(a *app) *cobra.Command {
	var (
		output         string
		valuesPath     string
		submissionPath string
		validate       bool
	)
	cmd := &cobra.Command{
		Use:   "render <form>",
		Short: "Render a stored form as HTML",
		Long:  "render prints the HTML preview of a stored form. With --submission the form is prefilled from a received payload and the payload's schema issues are shown as server-side errors.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefill := valuesPath
			if submissionPath != "" {
				prefill = submissionPath
			}
			inst, err := a.instance(cmd, args[0], prefill)
			if err != nil {
				return err
			}
			if validate {
				inst.ValidateAll()
			}

			renderOptions := render.Options{
				Action: a.cfg.Render.Action,
				Method: a.cfg.Render.Method,
			}
			if submissionPath != "" {
				if err := a.submissionErrors(inst, submissionPath, &renderOptions); err != nil {
					return err
				}
			}

			options := []html.Option{
				html.WithRenderOptions(renderOptions),
				html.WithInlineStylesheet(a.cfg.Render.InlineStylesheet),
			}
			if a.cfg.Render.TemplatesDir != "" {
				options = append(options, html.WithTemplatesDir(a.cfg.Render.TemplatesDir))
			}
			if a.cfg.Render.SubmitLabel != "" {
				options = append(options, html.WithSubmitLabel(a.cfg.Render.SubmitLabel))
			}
			renderer, err := html.New(options...)
			if err != nil {
				return err
			}
			renderers, err := render.NewRegistry(renderer)
			if err != nil {
				return err
			}

			data, contentType, err := renderers.Render(cmd.Context(), html.Name, inst)
			if err != nil {
				return err
			}
			a.logger.Debug().Str("contentType", contentType).Int("bytes", len(data)).Msg("rendered form")
			return writeOutput(cmd, output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "out", "O", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON file with values to prefill")
	cmd.Flags().StringVar(&submissionPath, "submission", "", "JSON payload to prefill and check against the submission schema")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate prefilled values and show violations")
	cmd.MarkFlagsMutuallyExclusive("values", "submission")
	return cmd
}

// submissionErrors checks the payload at path against the submission schema
// and maps the issues onto fields the way a server response would be.
func (a *app) submissionErrors(inst *preview.Instance, path string, options *render.Options) error {
	payload, err := readValues(path)
	if err != nil {
		return err
	}
	err = openapi.ValidateSubmission(inst.Schema(), a.registry, payload)
	var subErr *openapi.SubmissionError
	switch {
	case errors.As(err, &subErr):
		mapped := render.MapErrorPayload(inst.Schema(), subErr.Payload())
		options.Errors = mapped.Fields
		options.FormErrors = mapped.Form
		a.logger.Debug().Int("issues", len(subErr.Issues)).Str("payload", path).Msg("submission rejected")
	case err != nil:
		return err
	}
	return nil
}

func newPreviewFillCmd(a *app) *cobra.Command {
	var (
		output      string
		format      string
		valuesPath  string
		maxAttempts int
	)
	cmd := &cobra.Command{
		Use:   "fill <form>",
		Short: "Fill a stored form interactively and print the submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(cmd, args[0], valuesPath)
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.Preview.Output
			}
			if maxAttempts == 0 {
				maxAttempts = a.cfg.Preview.MaxAttempts
			}

			renderer, err := tui.New(
				tui.WithOutputFormat(tui.OutputFormat(format)),
				tui.WithMaxAttempts(maxAttempts),
				tui.WithTheme(tui.Theme{InfoPrefix: "# ", ErrorPrefix: errorColor.Sprint("! ")}),
			)
			if err != nil {
				return err
			}
			renderers, err := render.NewRegistry(renderer)
			if err != nil {
				return err
			}
			data, _, err := renderers.Render(cmd.Context(), tui.Name, inst)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "out", "O", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&format, "format", "", "output format: json, form or pretty (default from config)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON file with values used as defaults")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "prompts per field before giving up (default from config)")
	return cmd
}

func newPreviewValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <form> <payload.json>",
		Short: "Validate a submission payload against a stored form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := a.instance(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			values, err := readValues(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			issues := map[string][]string{}

			// field validators see visibility; the schema check sees the
			// payload exactly as submitted
			inst.ValidateAll()
			for id, violations := range inst.AllViolations() {
				for _, v := range violations {
					issues["/"+id] = append(issues["/"+id], v.Message)
				}
			}
			err = openapi.ValidateSubmission(inst.Schema(), a.registry, values)
			var subErr *openapi.SubmissionError
			switch {
			case errors.As(err, &subErr):
				for path, messages := range subErr.Payload() {
					issues[path] = appendUnique(issues[path], messages...)
				}
			case err != nil:
				return err
			}

			if len(issues) == 0 {
				okColor.Fprint(out, "ok")
				fmt.Fprintf(out, "   %s is valid for %s\n", args[1], args[0])
				return nil
			}
			printIssues(out, issues)
			return errInvalidPayload
		},
	}
}

func appendUnique(list []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, existing := range list {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			list = append(list, value)
		}
	}
	return list
}

func printIssues(out io.Writer, issues map[string][]string) {
	paths := make([]string, 0, len(issues))
	for path := range issues {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		for _, message := range issues[path] {
			errorColor.Fprint(out, "fail")
			fmt.Fprint(out, " ")
			pathColor.Fprint(out, path)
			fmt.Fprintf(out, " %s\n", message)
		}
	}
}

func newPreviewSchemaCmd(a *app) *cobra.Command {
	var (
		output   string
		path     string
		server   string
		asYAML   bool
		bodyOnly bool
	)
	cmd := &cobra.Command{
		Use:   "schema <form>",
		Short: "Print the OpenAPI description of a form submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.loadSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var doc any
			if bodyOnly {
				doc, err = openapi.SubmissionSchema(schema, a.registry)
			} else {
				doc, err = openapi.Document(cmd.Context(), schema, a.registry,
					openapi.WithPath(path), openapi.WithServerURL(server))
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			if asYAML {
				var generic any
				if err := json.Unmarshal(data, &generic); err != nil {
					return err
				}
				if data, err = yaml.Marshal(generic); err != nil {
					return err
				}
			} else {
				data = append(data, '\n')
			}
			return writeOutput(cmd, output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "out", "O", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&path, "path", "", "submission endpoint path")
	cmd.Flags().StringVar(&server, "server", "", "server URL to include")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")
	cmd.Flags().BoolVar(&bodyOnly, "body-only", false, "print only the request body schema")
	return cmd
}
