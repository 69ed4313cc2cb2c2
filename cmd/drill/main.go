package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bordercore/drill/internal/profile"
	"github.com/bordercore/drill/internal/version"
	"github.com/bordercore/drill/server"
	"github.com/bordercore/drill/server/service/reset"
	"github.com/bordercore/drill/store"
	"github.com/bordercore/drill/store/db"
)

const (
	greetingBanner = `drill - spaced repetition scheduling service`
)

var (
	instanceProfile *profile.Profile

	rootCmd = &cobra.Command{
		Use:   "drill",
		Short: "A spaced repetition drill service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			drillStore, err := openStore(ctx)
			if err != nil {
				return err
			}

			s, err := server.NewServer(ctx, instanceProfile, drillStore)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			fmt.Printf("%s\nversion %s, mode %s, driver %s\n",
				greetingBanner, instanceProfile.Version, instanceProfile.Mode, instanceProfile.Driver)

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return s.Start(gCtx)
			})
			g.Go(func() error {
				<-gCtx.Done()
				// Shutdown gets a fresh context; the group context is
				// already cancelled.
				s.Shutdown(context.Background())
				return nil
			})
			return g.Wait()
		},
	}

	resetIntervalsCmd = &cobra.Command{
		Use:   "reset-intervals <username>",
		Short: "Give every due question of a user a fresh randomized interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			drillStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := drillStore.Close(); err != nil {
					slog.Error("failed to close store", "error", err)
				}
			}()

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			minDays, _ := cmd.Flags().GetInt("min-interval")
			maxDays, _ := cmd.Flags().GetInt("max-interval")
			batchSize, _ := cmd.Flags().GetInt("batch-size")

			runner := reset.NewRunner(drillStore)
			summary, err := runner.Run(ctx, reset.Options{
				Username:  args[0],
				MinDays:   minDays,
				MaxDays:   maxDays,
				BatchSize: batchSize,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			action := "reset"
			if dryRun {
				action = "would reset"
			}
			fmt.Printf("%d due questions found, %s %d, skipped %d\n",
				summary.Found, action, summary.Processed, summary.Skipped)
			return nil
		},
	}
)

func openStore(ctx context.Context) (*store.Store, error) {
	driver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}

	drillStore := store.New(driver, instanceProfile)
	if err := drillStore.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return drillStore, nil
}

func init() {
	viper.SetEnvPrefix("drill")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8081, "binding port for the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	resetIntervalsCmd.Flags().Bool("dry-run", false, "log every reset without writing")
	resetIntervalsCmd.Flags().Int("min-interval", reset.DefaultMinDays, "minimum random interval in days")
	resetIntervalsCmd.Flags().Int("max-interval", reset.DefaultMaxDays, "maximum random interval in days")
	resetIntervalsCmd.Flags().Int("batch-size", reset.DefaultBatchSize, "questions per storage flush")

	rootCmd.AddCommand(resetIntervalsCmd)

	cobra.OnInitialize(func() {
		instanceProfile = &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}

		initLogger(instanceProfile)
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
