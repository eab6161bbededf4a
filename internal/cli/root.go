package cli

import (
	"fmt"
	"os"

	"github.com/fjod/go_shop/internal/config"
	"github.com/fjod/go_shop/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// NewRootCommand creates the root command for the shop binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "shop",
		Short:         "shop - catalog, cart and checkout API",
		Long:          "Runs the shop HTTP API and its maintenance tasks against MongoDB, Postgres, Redis and Kafka.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file loaded before the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// load reads the configuration and builds the process logger.
func (o *RootOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout), nil
}
