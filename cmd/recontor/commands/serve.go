package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recontor/recontor/pkg/server/app"
)

// NewServeCommand constructs the 'serve' command: the long-running API
// server plus the queue dispatcher that drains pending scans.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the scan API server and queue dispatcher",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}

			log.Info().
				Str("component", "serve").
				Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Addr, cfg.Server.Port)).
				Bool("jobs_enabled", cfg.Server.JobsEnabled).
				Msg("starting server")

			return a.Run(ctx)
		},
	}
	return cmd
}
