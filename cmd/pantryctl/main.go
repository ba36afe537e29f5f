package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/app"
	"github.com/mamadbah2/pantry/internal/config"
	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
	"github.com/mamadbah2/pantry/pkg/logger"
)

var (
	envFile  string
	timeout  time.Duration
	userID   string
	logLevel string

	rootCmd = &cobra.Command{
		Use:           "pantryctl",
		Short:         "Operator commands for the pantry service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate-ids",
		Short: "Rewrite legacy string product ids as numbers",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run the low-stock sweep once and deliver its notifications",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile [collection...]",
		Short: "Repair a user's collections (duplicates, orphans, remote-only records)",
		RunE:  runReconcile,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to an env file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	reconcileCmd.Flags().StringVar(&userID, "user", "", "user id to reconcile")
	_ = reconcileCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(migrateCmd, sweepCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, builds the services and runs fn under the deadline.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, log *zap.Logger) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.New(level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, log.Named("pantryctl"))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Error("close failed", zap.Error(err))
		}
	}()

	return fn(ctx, a, log)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
		migrated, err := a.MigrateLegacyIDs(ctx)
		for _, collection := range models.Collections() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d document(s) migrated\n", collection, migrated[collection])
		}
		return err
	})
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
		signals, err := a.Inventory.Sweep(ctx)
		a.Notifier.Drain()
		fmt.Fprintf(cmd.OutOrStdout(), "%d low-stock signal(s) raised\n", signals)
		return err
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	collections := args
	if len(collections) == 0 {
		collections = models.Collections()
	}
	for _, c := range collections {
		if !models.IsCollection(c) {
			return fmt.Errorf("%w: %s", models.ErrUnknownCollection, c)
		}
	}

	return withApp(cmd, func(ctx context.Context, a *app.App, _ *zap.Logger) error {
		user, err := a.Repo.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		ctx = auth.WithUser(ctx, user)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, collection := range collections {
			report, err := a.Inventory.Reconcile(ctx, collection)
			if encErr := enc.Encode(report); encErr != nil {
				return encErr
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
