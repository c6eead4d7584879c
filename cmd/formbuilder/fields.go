package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/session"
)

// fieldFlags are the patch flags shared by add and update.
type fieldFlags struct {
	label      string
	required   bool
	options    []string
	unset      []string
	rules      []string
	clearRules bool
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "field label")
	cmd.Flags().BoolVarP(&f.required, "required", "r", false, "mark the field as required")
	cmd.Flags().StringArrayVarP(&f.options, "option", "o", nil, "set an option as key=value, value parsed as YAML (repeatable)")
	cmd.Flags().StringArrayVar(&f.unset, "unset", nil, "remove an option (repeatable)")
	cmd.Flags().StringArrayVar(&f.rules, "rule", nil, "validation rule as kind[=value], replaces existing rules (repeatable)")
	cmd.Flags().BoolVar(&f.clearRules, "clear-rules", false, "remove all validation rules")
}

// patch builds a FieldPatch from the flags the user actually set. Options
// are merged into current because a patch replaces the whole option map.
func (f *fieldFlags) patch(cmd *cobra.Command, current model.FieldDefinition) (model.FieldPatch, error) {
	var p model.FieldPatch
	if cmd.Flags().Changed("label") {
		p.Label = &f.label
	}
	if cmd.Flags().Changed("required") {
		p.Required = &f.required
	}

	if len(f.options) > 0 || len(f.unset) > 0 {
		options := make(map[string]any, len(current.Options)+len(f.options))
		for key, value := range current.Options {
			options[key] = value
		}
		for _, raw := range f.options {
			key, value, err := parseOption(raw)
			if err != nil {
				return p, err
			}
			options[key] = value
		}
		for _, key := range f.unset {
			delete(options, key)
		}
		p.Options = options
	}

	if f.clearRules {
		rules := []model.ValidationRule{}
		p.ValidationRules = &rules
	}
	if len(f.rules) > 0 {
		rules := make([]model.ValidationRule, 0, len(f.rules))
		for _, raw := range f.rules {
			rules = append(rules, parseRule(raw))
		}
		p.ValidationRules = &rules
	}
	return p, nil
}

func parseOption(raw string) (string, any, error) {
	key, text, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("option %q must be key=value", raw)
	}
	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return "", nil, fmt.Errorf("option %s: %w", key, err)
	}
	return key, value, nil
}

func parseRule(raw string) model.ValidationRule {
	kind, value, ok := strings.Cut(raw, "=")
	rule := model.ValidationRule{Kind: strings.TrimSpace(kind)}
	if !ok {
		return rule
	}
	param := "value"
	if rule.Kind == model.ValidationRulePattern {
		param = "pattern"
	}
	rule.Params = map[string]string{param: value}
	return rule
}

func currentField(s *session.Session, id string) (model.FieldDefinition, error) {
	schema := s.Schema()
	field := model.Find(schema.Fields, id)
	if field == nil {
		return model.FieldDefinition{}, &model.FieldNotFoundError{ID: id}
	}
	return *field, nil
}

func newAddCmd(a *app) *cobra.Command {
	var (
		parent   string
		position int
		flags    fieldFlags
	)
	cmd := &cobra.Command{
		Use:   "add <form> <kind>",
		Short: "Add a field to a stored form",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			err := a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) error {
				var err error
				if id, err = s.AddField(ctx, parent, args[1], position); err != nil {
					return err
				}
				field, err := currentField(s, id)
				if err != nil {
					return err
				}
				patch, err := flags.patch(cmd, field)
				if err != nil || patch.Empty() {
					return err
				}
				return s.UpdateField(ctx, id, patch)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "container field to add into (top level when empty)")
	cmd.Flags().IntVar(&position, "position", -1, "sibling position; out of range appends")
	flags.register(cmd)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <form> <field>",
		Short: "Remove a field and its children",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) error {
				return s.RemoveField(ctx, args[1])
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	var (
		parent   string
		position int
	)
	cmd := &cobra.Command{
		Use:   "move <form> <field>",
		Short: "Move a field to another position or container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) error {
				return s.MoveField(ctx, args[1], parent, position)
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "target container (top level when empty)")
	cmd.Flags().IntVar(&position, "position", 0, "target sibling position; out of range appends")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		newID string
		flags fieldFlags
	)
	cmd := &cobra.Command{
		Use:   "update <form> <field>",
		Short: "Change the label, id, options or rules of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.edit(cmd.Context(), args[0], func(ctx context.Context, s *session.Session) error {
				field, err := currentField(s, args[1])
				if err != nil {
					return err
				}
				patch, err := flags.patch(cmd, field)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("id") {
					patch.ID = &newID
				}
				if patch.Empty() {
					return fmt.Errorf("nothing to update for %s", args[1])
				}
				return s.UpdateField(ctx, args[1], patch)
			})
		},
	}
	cmd.Flags().StringVar(&newID, "id", "", "rename the field")
	flags.register(cmd)
	return cmd
}
