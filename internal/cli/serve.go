package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/server"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routes of the models file over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = e.cfg.Listen
			}
			file, err := e.models()
			if err != nil {
				return err
			}
			st, err := e.open(file)
			if err != nil {
				return err
			}
			defer st.Detach()

			if e.cfg.JWTSecret == "" {
				e.log.Warn("jwt_secret is not set; routes requiring auth reject every request")
			}
			srv, err := server.New(st, server.Options{
				Logger:    e.log,
				JWTSecret: []byte(e.cfg.JWTSecret),
				Mode:      gin.ReleaseMode,
			})
			if err != nil {
				return exitError(exitSysError, "create server: %w", err)
			}
			if err := srv.Mount(file.Routes); err != nil {
				return exitError(exitUserError, "mount routes: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx, listen); err != nil {
				return exitError(exitSysError, "serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: config listen)")
	return cmd
}
