package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/jsonl"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <model> <file>",
		Short: "Write every record of a model to a JSONL file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			st, m, err := e.model(args[0])
			if err != nil {
				return err
			}
			defer st.Detach()

			n, err := jsonl.Export(cmd.Context(), m, args[1])
			if err != nil {
				return exitError(exitSysError, "export %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", n, args[1])
			return nil
		},
	}
}

func newImportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Create the records of a JSONL file in a model",
		Long: "Create one record per line of a JSONL file. Malformed lines are\n" +
			"skipped. The import stores nothing when any record is rejected.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			st, m, err := e.model(args[0])
			if err != nil {
				return err
			}
			defer st.Detach()

			created, skipped, err := jsonl.Import(cmd.Context(), m, args[1])
			if err != nil {
				return exitError(exitUserError, "import %s: %w", args[0], err)
			}
			if skipped > 0 {
				e.log.Warn("skipped malformed lines", "file", args[1], "count", skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", created, args[0])
			return nil
		},
	}
}
