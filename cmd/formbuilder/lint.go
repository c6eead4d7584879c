package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formbuilder/pkg/codec"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	pathColor  = color.New(color.FgCyan)
)

// errLintFailed is returned so the process exits non-zero; the issues have
// already been printed.
var errLintFailed = errors.New("lint failed")

func newLintCmd(a *app) *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "lint <file>...",
		Short: "Check schema files and report every problem",
		Long:  "lint parses JSON or YAML schema files and reports every structural problem instead of stopping at the first. With --stored the arguments are names of stored forms.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false
			for _, arg := range args {
				data, format, err := a.lintSource(cmd, arg, stored)
				if err != nil {
					return err
				}
				result := codec.Lint(data, format, a.registry)
				if result.Valid {
					okColor.Fprint(out, "ok")
					fmt.Fprintf(out, "   %s\n", arg)
					continue
				}
				failed = true
				errorColor.Fprint(out, "fail")
				fmt.Fprintf(out, " %s (%d issue(s))\n", arg, len(result.Issues))
				for _, issue := range result.Issues {
					location := issue.Path
					if location == "" {
						location = "/"
					}
					fmt.Fprint(out, "  ")
					pathColor.Fprint(out, location)
					if issue.Field != "" {
						fmt.Fprintf(out, " [%s]", issue.Field)
					}
					fmt.Fprintf(out, " %s\n", issue.Message)
				}
			}
			if failed {
				return errLintFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "lint stored forms by name")
	return cmd
}

func (a *app) lintSource(cmd *cobra.Command, arg string, stored bool) ([]byte, codec.Format, error) {
	if stored {
		data, err := a.backend.Load(cmd.Context(), arg)
		return data, codec.FormatJSON, err
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, "", err
	}
	return data, codec.FormatFromPath(arg), nil
}
