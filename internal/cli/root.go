// Package cli implements the crudkit command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/config"
	"github.com/mesh-intelligence/crudkit/internal/modeldef"
	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
	"github.com/mesh-intelligence/crudkit/pkg/store"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir  string
	dataDir    string
	modelsFile string
	backend    string
	jsonMode   bool
}

// NewRootCmd creates the top-level "crudkit" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "crudkit",
		Short: "Serve CRUD endpoints for models declared in YAML",
		Long: "crudkit declares models and routes in a models file and serves\n" +
			"create, update, get and delete handlers for them over HTTP.",
		Version:       crudkit.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: .crudkit-db)")
	root.PersistentFlags().StringVar(&f.modelsFile, "models", "", "models file (default: models.yaml in the config directory)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "storage backend: sqlite, memory or mongo")
	root.PersistentFlags().BoolVar(&f.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd(f))
	root.AddCommand(newInitCmd(f))
	root.AddCommand(newServeCmd(f))
	root.AddCommand(newModelsCmd(f))
	root.AddCommand(newExportCmd(f))
	root.AddCommand(newImportCmd(f))
	root.AddCommand(newTokenCmd(f))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and returns the process exit code.
func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// exitErr carries the exit code for a failed command.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

// exitError wraps err with an exit code.
func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, err: fmt.Errorf(format, args...)}
}

// env is the resolved environment of one command invocation.
type env struct {
	configDir  string
	modelsFile string
	cfg        *config.Config
	log        *slog.Logger
}

// load resolves directories and reads config.yaml.
func (f *rootFlags) load(cmd *cobra.Command) (*env, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, exitError(exitSysError, "resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, exitError(exitSysError, "load config: %w", err)
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	cfg.DataDir, err = paths.ResolveDataDir(f.dataDir, cfg.DataDir)
	if err != nil {
		return nil, exitError(exitSysError, "resolve data dir: %w", err)
	}
	modelsFile, err := paths.ResolveModelsFile(firstNonEmpty(f.modelsFile, cfg.ModelsFile), configDir)
	if err != nil {
		return nil, exitError(exitSysError, "resolve models file: %w", err)
	}
	log, err := config.Logger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, exitError(exitUserError, "%w", err)
	}
	return &env{configDir: configDir, modelsFile: modelsFile, cfg: cfg, log: log}, nil
}

// models reads the models file.
func (e *env) models() (*modeldef.File, error) {
	file, err := modeldef.Load(e.modelsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, exitError(exitUserError, "models file %s not found (run crudkit init)", e.modelsFile)
	}
	if err != nil {
		return nil, exitError(exitUserError, "%w", err)
	}
	return file, nil
}

// open attaches the configured store with the models of file. The caller
// must Detach the store.
func (e *env) open(file *modeldef.File) (types.Store, error) {
	cfg := e.cfg.Store()
	cfg.Models = file.Models
	st, err := store.Open(cfg)
	if err != nil {
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrBackendEmpty) {
			return nil, exitError(exitUserError, "%w", err)
		}
		return nil, exitError(exitSysError, "open store: %w", err)
	}
	return st, nil
}

// model opens the store and resolves one model.
func (e *env) model(name string) (types.Store, types.Model, error) {
	file, err := e.models()
	if err != nil {
		return nil, nil, err
	}
	st, err := e.open(file)
	if err != nil {
		return nil, nil, err
	}
	m, err := st.GetModel(name)
	if err != nil {
		st.Detach()
		return nil, nil, exitError(exitUserError, "unknown model %q (valid: %v)", name, file.ModelNames())
	}
	return st, m, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
