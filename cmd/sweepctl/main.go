// Package main is the entry point for sweepctl, which runs the message
// expiration sweep outside Lambda.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"message-sweeper/internal/config"
	"message-sweeper/internal/integrations/paramstore"
	"message-sweeper/internal/logging"
	"message-sweeper/internal/repository"
	"message-sweeper/internal/repository/sqlite"
	"message-sweeper/internal/scheduler"
	"message-sweeper/internal/usecase"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sweepctl",
		Short:         "Delete expired chat messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", "", "Load environment variables from this file before reading configuration")
	root.AddCommand(versionCmd(), runCmd(), scheduleCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sweepctl %s (commit: %s)\n", version, commit)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.close() }()

			res, err := env.sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found %d, deleted %d in %d batch(es)\n", res.Found, res.Deleted, res.Batches)
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the sweep on SWEEP_SCHEDULE until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.close() }()

			sched := scheduler.New(env.logger)
			if err := sched.Register(&scheduler.SweepJob{
				Sweeper:      env.sweeper,
				ScheduleExpr: env.cfg.SweepSchedule,
				Instances:    env.cfg.SweepMaxInstances,
			}); err != nil {
				return err
			}
			if err := sched.Start(); err != nil {
				return err
			}

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
}

// sweepEnv holds everything a command needs to sweep.
type sweepEnv struct {
	cfg     config.Config
	logger  *slog.Logger
	sweeper *usecase.SweepService
	close   func() error
}

func setup(ctx context.Context, cmd *cobra.Command) (*sweepEnv, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sweeper, err := usecase.NewSweepService(store, logger, cfg.SweepMaxBatchSize)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	return &sweepEnv{cfg: cfg, logger: logger, sweeper: sweeper, close: closeStore}, nil
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (usecase.MessageStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, nil, err
		}
		table, err := params.ResolveTableName(ctx, cfg.MessagesTable, cfg.MessagesTableParam)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}
