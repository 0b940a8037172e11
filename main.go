package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pathfinder",
		Short: "Stochastic path-seeking population simulator",
		Long: `pathfinder evolves a population of agents that search a grid for a
cheap route from a start cell to a goal cell. Agents move, reproduce and
die at times driven by their fitness; epidemics keep the population bounded.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")
	rootCmd.PersistentFlags().Bool("log-stats", false, "Output observations and milestones via slog (JSON on stdout)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
	)
	return rootCmd
}

// setupLogging installs the default slog handler: JSON on stdout for
// structured stats, text on stderr otherwise.
func setupLogging(cmd *cobra.Command, logStats bool) {
	var h slog.Handler
	if logStats {
		h = slog.NewJSONHandler(cmd.OutOrStdout(), nil)
	} else {
		h = slog.NewTextHandler(cmd.ErrOrStderr(), nil)
	}
	slog.SetDefault(slog.New(h))
}
