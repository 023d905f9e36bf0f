package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"orgcommits/config"
	"orgcommits/logger"
	"orgcommits/service"
)

// v holds flags, environment and config file values for every command.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "orgcommits <organization>",
	Short: "Collect the commits of every repository in a GitHub organization.",
	Long: `orgcommits discovers the repositories of an organization, collects their
commits in bounded parallel batches and exports them to CSV or Parquet.`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runCollect,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("since", config.DefaultSince, "Collect commits after this ISO date")
	flags.String("until", "", "Collect commits before this ISO date")
	flags.Bool("stats", false, "Fetch line change statistics for each commit")
	flags.Bool("all-branches", false, "Collect from every branch instead of main")
	flags.String("author", "", "Keep only commits whose author resembles this name")
	flags.Bool("no-merge", false, "Drop merge commits")
	flags.Int("max-workers", config.DefaultMaxWorkers, "Repositories processed in parallel within a batch")
	flags.Int("batch-size", config.DefaultBatchSize, "Repositories per batch")
	flags.Duration("timeout", config.DefaultTimeout, "Timeout of a single remote request")
	flags.StringSlice("repos", nil, "Collect only these repositories (skips discovery)")
	flags.StringP("output", "o", "", "Output file (default derived from the options)")
	flags.String("format", "", "Output format: csv or parquet")
	flags.String("backend", config.DefaultBackend, "Remote backend: cli or api")
	flags.String("token", "", "GitHub token for the api backend (default $GITHUB_TOKEN)")
	flags.String("api-url", "", "GitHub Enterprise API url for the api backend")
	flags.String("database-url", "", "Postgres url to store collected commits in")
	flags.Int("db-max-open-conns", 25, "Maximum open database connections")
	flags.Int("db-max-idle-conns", 25, "Maximum idle database connections")
	flags.Duration("db-conn-max-lifetime", 0, "Maximum lifetime of a database connection")
	flags.Int("top", config.DefaultTopCommits, "Number of largest commits to report")

	rootCmd.PersistentFlags().String("config", "", "Config file (default is ./.orgcommits.yaml or $HOME/.orgcommits.yaml)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")

	_ = v.BindPFlags(flags)
	_ = v.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(reportCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, args[0])
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := cmd.Context()
	ser, err := service.NewService(ctx, cfg, v)
	if err != nil {
		return err
	}
	defer func() {
		if err := ser.Close(); err != nil {
			logger.Error("Error during service shutdown", zap.Error(err))
		}
	}()

	result, err := ser.Run(ctx)
	if err != nil {
		return err
	}
	if result.Output != "" {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nSaved %d commits to %s\n", len(result.Commits), result.Output)
	} else {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No commits found")
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
