package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/grid"
	"github.com/pthm-cable/pathfinder/telemetry"
)

func TestNormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, back[i], raw[i])
		}
	}
}

func TestClamp(t *testing.T) {
	pv := NewParamVector()
	got := pv.Clamp([]float64{-5, 100, 0.5, 123.6})
	want := []float64{1, 5, 0.5, 124}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
}

func TestApplyAndExtract(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	pv.ApplyToConfig(cfg, []float64{12, 0.5, 2, 80})

	got := pv.ExtractFromConfig(cfg)
	want := []float64{12, 0.5, 2, 80}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
	if err := cfg.Finalize(); err != nil {
		t.Errorf("applied config invalid: %v", err)
	}
}

func TestComputeFitness(t *testing.T) {
	tests := []struct {
		name string
		s    telemetry.Summary
		want float64
	}{
		{"none completed", telemetry.Summary{Runs: 4, GapMean: math.NaN()}, failurePenalty},
		{"all optimal", telemetry.Summary{Runs: 2, Completed: 2, SuccessRate: 1, GapMean: 0}, 1},
		{"half with gap", telemetry.Summary{Runs: 2, Completed: 1, SuccessRate: 0.5, GapMean: 0.5}, 0.75 + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeFitness(tt.s); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("computeFitness() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateUnreachableScenario(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulation.Horizon = 50
	cfg.Grid = config.GridConfig{
		Rows:      1,
		Cols:      3,
		Start:     grid.Cell{X: 1, Y: 1},
		Goal:      grid.Cell{X: 1, Y: 3},
		Obstacles: []grid.Cell{{X: 1, Y: 2}},
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	fe := NewFitnessEvaluator(NewParamVector(), []int64{1, 2}, 2, cfg)
	if got := fe.Evaluate(NewParamVector().DefaultVector()); got != failurePenalty {
		t.Errorf("Evaluate() = %v, want %v", got, failurePenalty)
	}
	if fe.LastSummary().Runs != 2 {
		t.Errorf("LastSummary().Runs = %d, want 2", fe.LastSummary().Runs)
	}
	if len(fe.BestResults()) != 2 {
		t.Errorf("BestResults() has %d results, want 2", len(fe.BestResults()))
	}
}
