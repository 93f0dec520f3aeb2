package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id> [field]",
		Short: "Read field values of a post or user",
		Long: `Get prints the value tree of an entity, or a single field when one is named.

Example:
  metafields get post 10
  metafields get user 20 nickname --json`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return a.withService(ctx, func(svc *fields.Service, _ types.Store) error {
				if len(args) == 2 {
					vals, err := svc.All(ctx, ref)
					if err != nil {
						return storeError("get", err)
					}
					if vals == nil {
						return userError("%s: %w", ref, types.ErrNotFound)
					}
					return a.printValues(out, vals)
				}
				name := args[2]
				v, err := svc.Value(ctx, ref, name)
				if err != nil {
					return storeError("get", err)
				}
				if v == nil {
					return userError("field %q of %s not found", name, ref)
				}
				return a.printValue(out, name, v)
			})
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <kind> <id> <json>",
		Short: "Save field values through the schemas",
		Long: `Save takes a JSON object keyed by field name, or by group name for repeatable
groups, and flattens it into metadata. Keys the schemas do not declare are ignored.

Example:
  metafields save post 10 '{"text":"hoge","group-name-3":[{"checkbox3":["1"]},{"checkbox3":["2","3"]}]}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			var input map[string]any
			if err := json.Unmarshal([]byte(args[2]), &input); err != nil {
				return userError("decode values: %v: %w", err, types.ErrInvalidInput)
			}
			ctx := cmd.Context()
			return a.withService(ctx, func(svc *fields.Service, _ types.Store) error {
				if err := svc.Save(ctx, ref, input); err != nil {
					return storeError("save", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", ref)
				return nil
			})
		},
	}
}
