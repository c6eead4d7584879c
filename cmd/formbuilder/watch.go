package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/session"
)

type watcher interface {
	Watch(ctx context.Context, name string, fn func(name string)) (<-chan struct{}, error)
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <form>",
		Short: "Reload a stored form whenever its file changes",
		Long:  "watch keeps a session open on a form and reloads it each time the stored file is edited outside formbuilder. Only the fs storage driver can be watched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, ok := a.backend.(watcher)
			if !ok {
				return fmt.Errorf("watch requires the fs storage driver, got %q", a.cfg.Storage.Driver)
			}
			name := args[0]
			out := cmd.OutOrStdout()

			return a.withSession(cmd.Context(), func(ctx context.Context, s *session.Session) error {
				// runs on the session loop, one change at a time
				unsubscribe := s.OnChange(func(change session.Change) {
					switch change.Kind {
					case session.ChangeLoaded:
						schema := s.Schema()
						okColor.Fprint(out, "loaded")
						fmt.Fprintf(out, " %s revision %d, %d field(s)\n", change.Name, change.Revision, countFields(schema))
					case session.ChangeFailed:
						errorColor.Fprint(out, "error")
						fmt.Fprintf(out, " %v\n", change.Err)
					}
				})
				defer unsubscribe()

				if err := s.Load(ctx, name); err != nil {
					return err
				}
				done, err := w.Watch(ctx, name, func(changed string) {
					if err := s.Dispatch(ctx, session.Load{Name: changed}); err != nil {
						a.logger.Debug().Err(err).Str("form", changed).Msg("reload not queued")
					}
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "watching %s (ctrl+c to stop)\n", name)

				<-ctx.Done()
				<-done
				return nil
			})
		},
	}
}

func countFields(schema model.FormSchema) int {
	n := 0
	model.Walk(schema.Fields, func(model.FieldDefinition, string) bool {
		n++
		return true
	})
	return n
}
