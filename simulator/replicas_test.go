package simulator

import (
	"context"
	"reflect"
	"testing"
)

func TestSeeds(t *testing.T) {
	tests := []struct {
		base int64
		n    int
		want []int64
	}{
		{0, 3, []int64{1, 2, 3}},
		{10, 2, []int64{10, 11}},
		{5, 0, []int64{}},
	}
	for _, tt := range tests {
		if got := Seeds(tt.base, tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Seeds(%d, %d) = %v, want %v", tt.base, tt.n, got, tt.want)
		}
	}
}

func TestRunReplicasMatchesSingleRuns(t *testing.T) {
	cfg := openGridConfig(t, 10, 10)
	cfg.Simulation.Horizon = 200
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Telemetry.OutputDir = t.TempDir()

	seeds := []int64{3, 1, 2}
	results, err := RunReplicas(context.Background(), cfg, seeds, 2)
	if err != nil {
		t.Fatalf("RunReplicas failed: %v", err)
	}
	if len(results) != len(seeds) {
		t.Fatalf("got %d results, want %d", len(results), len(seeds))
	}

	for i, seed := range seeds {
		r := results[i]
		if r.Seed != seed {
			t.Errorf("results[%d].Seed = %d, want %d", i, r.Seed, seed)
		}

		single := cfg.Clone()
		single.Telemetry.OutputDir = ""
		_, want := mustRun(t, single, Options{Seed: seed, RunID: r.RunID})
		if !reflect.DeepEqual(r, want) {
			t.Errorf("seed %d: replica result differs from a single run:\n%+v\n%+v", seed, r, want)
		}
	}
}

func TestRunReplicasCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunReplicas(ctx, openGridConfig(t, 10, 10), Seeds(1, 4), 0)
	if err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
