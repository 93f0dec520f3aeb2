package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/metafields/pkg/fields"
)

const modulePath = "github.com/mesh-intelligence/metafields"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the metafields version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "metafields v%s\nmodule: %s\n", fields.Version, modulePath)
			return nil
		},
	}
}
