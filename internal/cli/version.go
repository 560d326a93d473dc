package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
)

func newVersionCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crudkit version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": crudkit.Version,
					"module":  crudkit.ModulePath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crudkit v%s\nmodule: %s\n", crudkit.Version, crudkit.ModulePath)
			return nil
		},
	}
}
