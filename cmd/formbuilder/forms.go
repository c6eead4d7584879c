package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formbuilder/pkg/codec"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/session"
	"github.com/goliatone/go-formbuilder/pkg/storage"
)

var headerColor = color.New(color.Bold)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "home"},
		Short:   "List stored forms",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.backend.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no forms stored yet")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			headerColor.Fprintln(tw, "NAME\tUPDATED\tSIZE")
			for _, entry := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", entry.Name, entry.UpdatedAt.Local().Format(time.DateTime), entry.Size)
			}
			return tw.Flush()
		},
	}
}

func newNewCmd(a *app) *cobra.Command {
	var (
		title string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !force {
				_, err := a.backend.Load(cmd.Context(), name)
				switch {
				case err == nil:
					return fmt.Errorf("form %q already exists (use --force to replace it)", name)
				case !errors.Is(err, storage.ErrNotFound):
					return err
				}
			}
			if title == "" {
				title = model.DefaultLabel(name)
			}

			err := a.withSession(cmd.Context(), func(ctx context.Context, s *session.Session) error {
				if _, err := s.Do(ctx, session.NewForm{Name: name, Title: title}); err != nil {
					return err
				}
				return s.Save(ctx, "")
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "form title (defaults to a label derived from the name)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing form")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.loadSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var data []byte
			if asYAML {
				data, err = codec.ExportYAML(schema)
			} else {
				data, err = codec.Serialize(schema)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file> <name>",
		Short: "Store a JSON or YAML schema file under name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, name := args[0], args[1]
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var schema model.FormSchema
			if codec.FormatFromPath(path) == codec.FormatYAML {
				schema, err = codec.ImportYAML(raw, a.registry)
			} else {
				schema, err = codec.Deserialize(raw, a.registry)
			}
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}

			data, err := codec.Serialize(schema)
			if err != nil {
				return err
			}
			if err := a.backend.Save(cmd.Context(), name, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s\n", path, name)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored form",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.backend.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newKindsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered field kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			headerColor.Fprintln(tw, "KIND\tVALUE\tWIDGET\tCONTAINER")
			for _, kind := range a.registry.Kinds() {
				desc, err := a.registry.Resolve(kind)
				if err != nil {
					return err
				}
				value := string(desc.ValueType)
				if value == "" {
					value = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", kind, value, desc.Render.Widget, desc.Render.Container)
			}
			return tw.Flush()
		},
	}
}
