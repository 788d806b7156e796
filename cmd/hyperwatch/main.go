// Command hyperwatch watches a roster of players and records every new match
// session with its stats delta.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"hyperwatch/internal/config"
	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/observability"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand shares
type app struct {
	configPath string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "hyperwatch",
		Short: "Track player statistics and record every new match session",
		Long: `hyperwatch polls lifetime statistics for a roster of players, turns each
batch of new matches into a bundle with its stats delta and posts a summary.

Commands:
  run       Start the update loop
  watch     Add a player to the roster
  unwatch   Remove a player from the roster
  watching  List the roster
  diff      Diff two snapshot files
  history   List recorded bundles of a player`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: hyperwatch.yaml in ., ./config or /etc/hyperwatch)")

	rootCmd.AddCommand(
		newRunCmd(a),
		newWatchCmd(a),
		newUnwatchCmd(a),
		newWatchingCmd(a),
		newDiffCmd(),
		newHistoryCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// load reads the .env file and the configuration and builds the logger
func (a *app) load(logOutput io.Writer) error {
	envPath := config.LoadDotEnv()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogConfig(), logOutput)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if envPath != "" {
		logger.Debug("config: loaded .env", "path", envPath)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) client() *hyperscape.Client {
	opts := append(a.cfg.ClientOptions(), hyperscape.WithLogger(a.logger))
	return hyperscape.NewClient(opts...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Runs without a config file
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hyperwatch %s\n", version)
		},
	}
}
