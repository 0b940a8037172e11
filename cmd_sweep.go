package main

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/pathfinder/persistence"
	"github.com/pthm-cable/pathfinder/simulator"
	"github.com/pthm-cable/pathfinder/telemetry"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [-f scenario.txt | -r " + scenarioArgs + "]",
		Short: "Run independent replicas of one scenario and summarize them",
		RunE: func(cmd *cobra.Command, args []string) error {
			replicas, _ := cmd.Flags().GetInt("replicas")
			workers, _ := cmd.Flags().GetInt("workers")
			if replicas < 1 {
				return fmt.Errorf("replicas must be at least 1, got %d", replicas)
			}

			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg.Telemetry.LogStats)

			started := time.Now()
			seeds := simulator.Seeds(cfg.Simulation.Seed, replicas)
			results, err := simulator.RunReplicas(cmd.Context(), cfg, seeds, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				if cfg.Telemetry.LogStats {
					slog.Info("replica", "result", r)
				}
			}
			summary := telemetry.Summarize(results)
			if cfg.Telemetry.LogStats {
				slog.Info("summary", "summary", summary)
			}
			if err := telemetry.WriteSummary(out, summary); err != nil {
				return err
			}

			if cfg.Persistence.DBPath == "" {
				return nil
			}
			db, err := persistence.Open(cfg.Persistence.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			for _, r := range results {
				if _, err := db.SaveRun(r, cfg, started); err != nil {
					return err
				}
			}
			slog.Info("replicas saved", "runs", len(results), "db", cfg.Persistence.DBPath)
			return nil
		},
	}

	addScenarioFlags(cmd)
	cmd.Flags().Int("replicas", 10, "Number of replicas")
	cmd.Flags().Int("workers", runtime.NumCPU(), "Replicas run concurrently (0 = unbounded)")
	return cmd
}
