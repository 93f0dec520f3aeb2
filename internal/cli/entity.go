package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	var (
		entityType string
		roles      []string
		parentID   int64
	)
	cmd := &cobra.Command{
		Use:   "entity <kind> <id>",
		Short: "Create or replace a post or user",
		Long: `Entity records the post type or user roles schemas are matched against.

Example:
  metafields entity post 10 --type post
  metafields entity post 11 --type revision --parent 10
  metafields entity user 20 --role editor`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			e := &types.Entity{Ref: ref, Type: entityType, Roles: roles, ParentID: parentID}
			ctx := cmd.Context()
			return a.withService(ctx, func(_ *fields.Service, store types.Store) error {
				if err := store.PutEntity(ctx, e); err != nil {
					return storeError("put entity", err)
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), e)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", ref)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "post type (posts only)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "user role, most significant first (users only)")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "parent post of a revision")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <kind> <id> <key> <value...>",
		Short: "Append raw metadata values",
		Long: `Add appends values under key without consulting any schema, the way
content editors write metadata one row at a time. The reserved row
partition key takes exactly one value, which replaces the stored record.

Example:
  metafields add post 10 checkbox3 1 2 3
  metafields add post 10 smart-cf-repeat-multiple-data '{"checkbox3":[1,2]}'`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			key, values := args[2], args[3:]
			if key == types.RepeatMultipleDataKey && len(values) != 1 {
				return userError("%s takes exactly one value", key)
			}
			ctx := cmd.Context()
			return a.withService(ctx, func(_ *fields.Service, store types.Store) error {
				return addValues(ctx, store, ref, key, values)
			})
		},
	}
}

func addValues(ctx context.Context, store types.Store, ref types.EntityRef, key string, values []string) error {
	if key == types.RepeatMultipleDataKey {
		if err := store.SetStructured(ctx, ref, key, []byte(values[0])); err != nil {
			return storeError("set "+key, err)
		}
		return nil
	}
	for _, v := range values {
		if err := store.AddValue(ctx, ref, key, v); err != nil {
			return storeError("add "+key, err)
		}
	}
	return nil
}
