package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slopdrop/slopdrop/pkg/server"
)

// NewServeCommand creates the HTTP server command.
func NewServeCommand() *cobra.Command {
	var (
		addr  string
		token string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP JSON API",
		Long: `Serve the evaluation API over HTTP. Requests carrying the configured
bearer token run with admin privileges; without a token, admin operations
are unavailable over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(GlobalConfig)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := GlobalConfig.ServerConfig()
			if addr != "" {
				cfg.Addr = addr
			}
			if token != "" {
				cfg.AdminToken = token
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Serving on %s\n", cfg.Addr)
			return server.New(eng, cfg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&token, "auth-token", "", "Admin bearer token (overrides config)")

	return cmd
}
