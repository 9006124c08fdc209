// Package cli implements fitadmin, the operator command line for the
// fitness coach backend.
package cli

import (
	"context"
	"fmt"
	"io"

	"alcyxob/fitness-coach/internal/app"
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"github.com/spf13/cobra"
)

// Backend is what the commands operate on.
type Backend struct {
	Users         repository.UserRepository
	SweepExpired  func(ctx context.Context) (int64, error)
	EnsureIndexes func(ctx context.Context) error
	Clock         timeutil.Clock
}

// Opener connects a Backend from the config found in dir. The returned func
// releases it.
type Opener func(ctx context.Context, dir string) (*Backend, func(), error)

type options struct {
	configDir    string
	outputFormat string
	open         Opener
	out          io.Writer
}

// Execute runs fitadmin against the configured database.
func Execute() error {
	return NewRootCmd(OpenMongo).Execute()
}

func NewRootCmd(open Opener) *cobra.Command {
	opts := &options{open: open}
	cmd := &cobra.Command{
		Use:   "fitadmin",
		Short: "Operator tools for the fitness coach backend",
		Long: `fitadmin runs maintenance tasks against the fitness coach database:
downgrading expired premium memberships, creating indexes and
adjusting user roles.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "directory containing config.yaml")
	cmd.PersistentFlags().StringVarP(&opts.outputFormat, "output", "o", "table", "output format: table, json, yaml")

	cmd.AddCommand(newSweepCmd(opts))
	cmd.AddCommand(newIndexesCmd(opts))
	cmd.AddCommand(newSetRoleCmd(opts))
	cmd.AddCommand(newUserCmd(opts))
	return cmd
}

// withBackend opens the backend for the duration of fn.
func (o *options) withBackend(ctx context.Context, fn func(b *Backend) error) error {
	b, release, err := o.open(ctx, o.configDir)
	if err != nil {
		return err
	}
	defer release()
	return fn(b)
}

// OpenMongo is the production Opener.
func OpenMongo(ctx context.Context, dir string) (*Backend, func(), error) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console"})

	db, disconnect, err := app.Database(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	repos := app.NewRepositories(db)
	// Media storage is not needed by any command.
	services, err := app.NewServices(cfg, repos, nil, timeutil.SystemClock(), log)
	if err != nil {
		_ = disconnect()
		return nil, nil, err
	}
	release := func() {
		if err := disconnect(); err != nil {
			log.ErrorWithErr(err, "failed to disconnect mongodb")
		}
	}
	return &Backend{
		Users:         repos.Users,
		SweepExpired:  services.Premium.SweepExpired,
		EnsureIndexes: func(ctx context.Context) error { return app.EnsureIndexes(ctx, db) },
		Clock:         timeutil.SystemClock(),
	}, release, nil
}
