package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/persistence"
	"github.com/pthm-cable/pathfinder/simulator"
	"github.com/pthm-cable/pathfinder/telemetry"
)

const scenarioArgs = "n m xi yi xf yf n_scz n_obs tau v vmax k mu delta ro"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [-f scenario.txt | -r " + scenarioArgs + "]",
		Short: "Run one simulation and print its observations",
		Long: `Run one simulation. The scenario comes from a scenario file (-f), from
the 15 parameters with random zones and obstacles (-r), or from the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			outputDir, _ := cmd.Flags().GetString("output-dir")
			if outputDir != "" {
				cfg.Telemetry.OutputDir = outputDir
			}
			setupLogging(cmd, cfg.Telemetry.LogStats)

			out := cmd.OutOrStdout()
			if err := cfg.WriteScenario(out); err != nil {
				return err
			}
			fmt.Fprintln(out)

			started := time.Now()
			sim, err := simulator.New(cfg, simulator.Options{
				LogStats: cfg.Telemetry.LogStats,
				OnObservation: func(o telemetry.Observation) {
					if err := telemetry.WriteReport(out, o); err != nil {
						slog.Error("failed to write report", "error", err)
					}
				},
			})
			if err != nil {
				return err
			}
			slog.Debug("starting simulation", "run_id", sim.RunID(), "seed", sim.Seed())

			r, err := sim.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := telemetry.WriteResult(out, r); err != nil {
				return err
			}

			if cfg.Persistence.DBPath == "" {
				return nil
			}
			return saveRun(cfg, r, sim.Observations(), started)
		},
	}

	addScenarioFlags(cmd)
	cmd.Flags().String("output-dir", "", "Output directory for CSV logs, snapshots and result (empty = config)")
	return cmd
}

// addScenarioFlags adds the flags shared by run and sweep.
func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Scenario file")
	cmd.Flags().BoolP("random", "r", false, "Random scenario from the parameters "+scenarioArgs)
	cmd.Flags().Int64("seed", 0, "RNG seed (0 = config, then time-based)")
	cmd.Flags().String("db", "", "SQLite run store (empty = config)")
}

// resolveConfig loads the config and applies the scenario source and flag
// overrides.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	file, _ := cmd.Flags().GetString("file")
	random, _ := cmd.Flags().GetBool("random")
	seed, _ := cmd.Flags().GetInt64("seed")
	dbPath, _ := cmd.Flags().GetString("db")
	logStats, _ := cmd.Flags().GetBool("log-stats")

	if file != "" && random {
		return nil, errors.New("use either --file or --random, not both")
	}
	if !random && len(args) > 0 {
		return nil, fmt.Errorf("unexpected arguments %v (parameters need --random)", args)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if seed != 0 {
		cfg.Simulation.Seed = seed
	}
	if dbPath != "" {
		cfg.Persistence.DBPath = dbPath
	}
	if logStats {
		cfg.Telemetry.LogStats = true
	}

	switch {
	case file != "":
		sc, err := config.LoadScenario(file)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyScenario(sc); err != nil {
			return nil, err
		}
	case random:
		// Pin the seed so the generated scenario and the run can be replayed.
		if cfg.Simulation.Seed == 0 {
			cfg.Simulation.Seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(cfg.Simulation.Seed))
		if err := cfg.ApplyRandomArgs(args, rng); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// saveRun stores a finished run and its observations.
func saveRun(cfg *config.Config, r telemetry.Result, obs []telemetry.Observation, started time.Time) error {
	db, err := persistence.Open(cfg.Persistence.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.SaveRun(r, cfg, started)
	if err != nil {
		return err
	}
	if err := db.SaveObservations(id, obs); err != nil {
		return err
	}
	slog.Info("run saved", "run_id", id, "db", cfg.Persistence.DBPath)
	return nil
}
