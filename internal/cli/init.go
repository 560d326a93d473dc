package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/modeldef"
)

func newInitCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize crudkit configuration and storage",
		Long: "Create the configuration directory with config.yaml and a sample\n" +
			"models.yaml, then create the storage for every model.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := writeIfMissing(e.modelsFile, modeldef.DefaultFile); err != nil {
				return exitError(exitSysError, "write models file: %w", err)
			}

			file, err := e.models()
			if err != nil {
				return err
			}
			st, err := e.open(file)
			if err != nil {
				return err
			}
			if err := st.Detach(); err != nil {
				return exitError(exitSysError, "finalize storage: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "crudkit initialized successfully")
			fmt.Fprintf(out, "config:  %s\n", e.configDir)
			fmt.Fprintf(out, "models:  %s\n", e.modelsFile)
			fmt.Fprintf(out, "backend: %s\n", e.cfg.Backend)
			return nil
		},
	}
}

// writeIfMissing writes data to path unless the file already exists.
func writeIfMissing(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
