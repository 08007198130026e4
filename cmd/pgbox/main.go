package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jfyne/pgbox"
	"github.com/jfyne/pgbox/dbsync"
	"github.com/jfyne/pgbox/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "pgbox",
		Short: "Disposable PostgreSQL/PostGIS test database",
		Long: `pgbox launches a disposable PostgreSQL/PostGIS container for local
testing. Invoked without arguments it runs the database in the foreground
with fixed settings; stopping it removes the container entirely.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quiet {
				log.SetLevel("disabled")
				return
			}

			log.SetLevel(logLevel)
		},
		RunE: runUp,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "pgbox's own log level (never affects database output)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress pgbox's own logs (never affects database output)")

	cmd.AddCommand(newUpCmd())
	cmd.AddCommand(newSyncCmd())

	return cmd
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Launch the test database container in the foreground",
		Args:  cobra.NoArgs,
		RunE:  runUp,
	}
}

func runUp(cmd *cobra.Command, args []string) error {
	database := pgbox.NewDatabase()

	log.Logger.Info("launching test database container")

	if err := database.Start(); err != nil {
		return err
	}

	log.Logger.Info("database ready at %s", database.GetConnectionURL())

	// Stay attached until the container stops, handing its exit status on
	// unchanged.
	err := database.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}

	return err
}

func newSyncCmd() *cobra.Command {
	var (
		output  string
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy a source database into the test database",
		Long: `Sync recreates the schema of SOURCE_DB in TARGET_DB and writes a data
dump of SOURCE_DB. Configuration comes from the environment: SOURCE_DB,
TARGET_DB, ROW_LIMIT, SAMPLED_TABLES and SKIPPED_TABLES.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("unable to load env file %s: %w", envFile, err)
				}
			} else {
				// A .env in the working directory is picked up when present.
				_ = godotenv.Load()
			}

			cfg, err := dbsync.FromEnv()
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			syncer, err := dbsync.New(ctx, cfg)
			if err != nil {
				return err
			}

			defer func() {
				if err := syncer.Close(ctx); err != nil {
					log.Logger.Warn("unable to close source connections: %v", err)
				}
			}()

			return dbsync.WriteOutput(output, func(out io.Writer) error {
				return syncer.Run(ctx, out)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the dump to a file or archive instead of stdout")
	cmd.Flags().StringVar(&envFile, "env-file", "", "load environment from this file before reading configuration")

	return cmd
}
