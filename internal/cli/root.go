// Package cli is the blog's command line: `blog serve` runs the web server,
// `blog users create` adds an account from a terminal.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/companyblog/internal/config"
)

// app holds what every subcommand shares: the flags of the root command and
// the configuration loaded from them.
type app struct {
	cfgFile string
	envFile string
	cfg     *config.Config
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "blog",
		Short: "Company Blog - a small server-rendered blog",
		Long: `Company Blog serves a multi-user blog over HTTP.

Configuration comes from defaults, an optional YAML file (--config) and
BLOG_* environment variables, in that order. A .env file is loaded first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			if err := config.LoadDotEnv(a.envFile); err != nil {
				return err
			}

			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newUsersCmd(a))

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
