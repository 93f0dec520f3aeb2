package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/fields"
	"github.com/mesh-intelligence/metafields/pkg/types"
)

func newCopyCmd(a *app) *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "copy <from> <to>",
		Short: "Copy every field value from one entity to another",
		Long: `Copy replaces the target's values with the source's for every field the
source's schemas declare. Fields empty on the source are removed from the target.

Example:
  metafields copy 10 12
  metafields copy 20 21 --kind user`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseRef(kindFlag, args[0])
			if err != nil {
				return err
			}
			to, err := parseRef(kindFlag, args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withService(ctx, func(svc *fields.Service, _ types.Store) error {
				if err := svc.Copy(ctx, from, from, to); err != nil {
					return storeError("copy", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "copied %s to %s\n", from, to)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", string(types.MetaKindPost), "entity kind: post or user")
	return cmd
}

// revisionCopy is SaveRevision or RestoreRevision.
type revisionCopy func(svc *fields.Service, ctx context.Context, postID, revisionID int64) error

// newRevisionCmds returns save-revision and restore-revision.
func newRevisionCmds(a *app) []*cobra.Command {
	return []*cobra.Command{
		newRevisionCmd(a, "save-revision", "Copy a post's field values onto its revision",
			"saved post %d to revision %d", (*fields.Service).SaveRevision),
		newRevisionCmd(a, "restore-revision", "Copy a revision's field values back onto the post",
			"restored post %d from revision %d", (*fields.Service).RestoreRevision),
	}
}

func newRevisionCmd(a *app, name, short, done string, run revisionCopy) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <post> <revision>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := parseID(args[0])
			if err != nil {
				return err
			}
			rev, err := parseID(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withService(ctx, func(svc *fields.Service, _ types.Store) error {
				if err := run(svc, ctx, post, rev); err != nil {
					return storeError(name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), done+"\n", post, rev)
				return nil
			})
		},
	}
}
