package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/companyblog/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.cfg.NewLogger(cmd.OutOrStdout())

			srv, err := server.New(cmd.Context(), a.cfg, logger)
			if err != nil {
				return err
			}

			// Start blocks until Ctrl+C or SIGTERM, then closes the database.
			return srv.Start(cmd.Context())
		},
	}
}
