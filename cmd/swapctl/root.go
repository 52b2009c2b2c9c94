package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/bootstrap"
	"github.com/noah-isme/course-swap-api/pkg/config"
	"github.com/noah-isme/course-swap-api/pkg/logger"
)

// storeOpener is replaced in tests.
var storeOpener = func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*bootstrap.Stores, error) {
	if cfg.Storage.Driver != config.StorageDriverPostgres {
		return nil, errors.New("swapctl requires STORAGE_DRIVER=postgres")
	}
	cfg.Storage.SeedDemo = false
	return bootstrap.OpenStores(ctx, cfg, log)
}

type cliContext struct {
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	cli := &cliContext{}
	root := &cobra.Command{
		Use:   "swapctl",
		Short: "Operate the course swap service",
		Long: `swapctl runs maintenance tasks against the course swap database.

Example usage:
  swapctl migrate up
  swapctl seed
  swapctl admin create --email ops@example.com --password s3cret --name "Ops"
  swapctl swaps list --status PENDING`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cli.verbose {
				cfg.Log.Level = "debug"
			}
			cfg.Log.Format = "console"
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			cli.cfg = cfg
			cli.logger = log
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newMigrateCmd(cli), newSeedCmd(cli), newAdminCmd(cli), newSwapsCmd(cli))
	return root
}

func (c *cliContext) stores(ctx context.Context) (*bootstrap.Stores, error) {
	return storeOpener(ctx, c.cfg, c.logger)
}
