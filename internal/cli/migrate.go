package cli

import (
	"context"
	"time"

	"github.com/fjod/go_shop/internal/repository"
	"github.com/spf13/cobra"
)

// NewMigrateCommand applies the Postgres migrations and creates the Mongo
// indexes.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := openResources(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer res.Close(context.WithoutCancel(ctx))

			if err := migrate(ctx, res); err != nil {
				return err
			}
			logger.Info().Msg("database migrations completed")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	return cmd
}

func migrate(ctx context.Context, res *resources) error {
	if err := res.orders.RunMigrations(); err != nil {
		return err
	}
	return repository.CreateMongoIndexes(ctx, res.mongo)
}
