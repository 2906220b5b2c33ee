// Package main is the schema migration tool for review-sms.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/config"
	"github.com/popeskul/review-sms/internal/infrastructure/migrate"
)

var (
	cfgPath        string
	migrationsPath string
	upSteps        int
	downSteps      int

	rootCmd = &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the review-sms database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations (all of them unless --steps is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migrate.Runner) error {
			var (
				version uint
				err     error
			)
			if upSteps > 0 {
				version, err = r.Steps(upSteps)
			} else {
				version, err = r.Up()
			}
			if err != nil {
				return err
			}
			fmt.Printf("Migrated to version %d\n", version)
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back --steps migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps <= 0 {
			return fmt.Errorf("--steps must be positive for down")
		}
		return withRunner(func(r *migrate.Runner) error {
			version, err := r.Steps(-downSteps)
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Println("Rolled back all migrations")
			} else {
				fmt.Printf("Rolled back to version %d\n", version)
			}
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *migrate.Runner) error {
			version, dirty, err := r.Version()
			if err != nil {
				return err
			}
			if dirty {
				fmt.Printf("Current version: %d (dirty)\n", version)
			} else {
				fmt.Printf("Current version: %d\n", version)
			}
			return nil
		})
	},
}

func withRunner(fn func(*migrate.Runner) error) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	path := migrationsPath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	runner, err := migrate.NewRunner(cfg.Database.GetURL(), path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("Failed to close migration runner", zap.Error(err))
		}
	}()

	return fn(runner)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (defaults to database.migrations_path)")
	upCmd.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply")
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
