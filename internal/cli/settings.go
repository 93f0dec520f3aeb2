package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newSettingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "settings <kind> <type-or-role> <id>",
		Short: "List the schemas that apply to an entity",
		Long: `Settings resolves the schemas for a post type or user role and entity id
without reading the store.

Example:
  metafields settings post post 10
  metafields settings user editor 20 --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[2])
			if err != nil {
				return err
			}
			target := types.Target{Kind: ref.Kind, TypeOrRole: args[1], ID: ref.ID}
			ctx := cmd.Context()
			svc := a.newService(nil)
			schemas, err := svc.Settings(ctx, target)
			if err != nil {
				return storeError("resolve schemas", err)
			}
			return a.printSchemas(cmd.OutOrStdout(), schemas)
		},
	}
}
