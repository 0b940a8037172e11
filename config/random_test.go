package config

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

var randomArgs = []string{"8", "6", "1", "1", "8", "6", "3", "10", "50", "5", "40", "2", "5", "1", "1"}

func TestRandomScenario(t *testing.T) {
	for _, layout := range []string{"uniform", "noise"} {
		t.Run(layout, func(t *testing.T) {
			cfg, err := Defaults()
			if err != nil {
				t.Fatal(err)
			}
			cfg.Random.Layout = layout
			cfg.Grid = GridConfig{Rows: 8, Cols: 6}
			cfg.Grid.Start.X, cfg.Grid.Start.Y = 1, 1
			cfg.Grid.Goal.X, cfg.Grid.Goal.Y = 8, 6
			cfg.Random.Zones, cfg.Random.Obstacles = 3, 10

			if err := cfg.Randomize(rand.New(rand.NewSource(11))); err != nil {
				t.Fatalf("Randomize failed: %v", err)
			}
			if len(cfg.Grid.Zones) != 3 {
				t.Errorf("zones = %d, want 3", len(cfg.Grid.Zones))
			}
			for _, z := range cfg.Grid.Zones {
				if z.Cost < 1 || z.Cost > cfg.Random.MaxZoneCost {
					t.Errorf("zone cost %d outside [1, %d]", z.Cost, cfg.Random.MaxZoneCost)
				}
			}
			if len(cfg.Grid.Obstacles) != 10 {
				t.Errorf("obstacles = %d, want 10", len(cfg.Grid.Obstacles))
			}
			for _, o := range cfg.Grid.Obstacles {
				if o == cfg.Grid.Start || o == cfg.Grid.Goal {
					t.Errorf("obstacle on endpoint %v", o)
				}
			}
			if _, err := cfg.BuildGrid(); err != nil {
				t.Errorf("BuildGrid failed: %v", err)
			}
		})
	}
}

func TestRandomScenarioFromArgs(t *testing.T) {
	a, err := RandomScenario(randomArgs, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("RandomScenario failed: %v", err)
	}
	b, err := RandomScenario(randomArgs, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a.Grid.Zones, b.Grid.Zones) || !slices.Equal(a.Grid.Obstacles, b.Grid.Obstacles) {
		t.Error("same seed produced different scenarios")
	}
	if a.Population.MaxSize != 40 || a.Simulation.Initial != 5 || a.Simulation.Horizon != 50 {
		t.Errorf("params not applied: %+v %+v", a.Simulation, a.Population)
	}
}

func TestRandomScenarioBadArgs(t *testing.T) {
	bad := slices.Clone(randomArgs)
	bad[3] = "one"
	if _, err := RandomScenario(bad, rand.New(rand.NewSource(1))); !errors.Is(err, ErrMalformedScenario) {
		t.Errorf("error = %v, want ErrMalformedScenario", err)
	}
	if _, err := RandomScenario(randomArgs[:10], rand.New(rand.NewSource(1))); !errors.Is(err, ErrMalformedScenario) {
		t.Errorf("error = %v, want ErrMalformedScenario", err)
	}
}

func TestObstacleCountCapped(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid = GridConfig{Rows: 2, Cols: 2}
	cfg.Grid.Goal.X, cfg.Grid.Goal.Y = 2, 2
	cfg.Grid.Start.X, cfg.Grid.Start.Y = 1, 1
	cfg.Random.Zones, cfg.Random.Obstacles = 0, 50

	if err := cfg.Randomize(rand.New(rand.NewSource(1))); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Grid.Obstacles) != 2 {
		t.Errorf("obstacles = %d, want 2 (all free cells)", len(cfg.Grid.Obstacles))
	}
}

func TestApplyRandomArgsKeepsLayout(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Random.Layout = "noise"
	cfg.Random.MaxZoneCost = 2
	cfg.Telemetry.OutputDir = "out"

	if err := cfg.ApplyRandomArgs(randomArgs, rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("ApplyRandomArgs failed: %v", err)
	}
	if cfg.Random.Layout != "noise" || cfg.Telemetry.OutputDir != "out" {
		t.Errorf("unrelated settings changed: %+v %+v", cfg.Random, cfg.Telemetry)
	}
	if cfg.Grid.Rows != 8 || cfg.Grid.Cols != 6 || len(cfg.Grid.Obstacles) != 10 {
		t.Errorf("grid = %dx%d with %d obstacles, want 8x6 with 10", cfg.Grid.Rows, cfg.Grid.Cols, len(cfg.Grid.Obstacles))
	}
	for _, z := range cfg.Grid.Zones {
		if z.Cost > 2 {
			t.Errorf("zone cost %d above max 2", z.Cost)
		}
	}
}
