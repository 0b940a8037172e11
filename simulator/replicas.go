package simulator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/telemetry"
)

// Seeds returns n consecutive seeds starting at base. A zero base starts
// at 1 so that no replica falls back to a clock seed.
func Seeds(base int64, n int) []int64 {
	if base == 0 {
		base = 1
	}
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = base + int64(i)
	}
	return seeds
}

// RunReplicas runs one independent replica of cfg per seed, at most
// workers at a time (0 = unbounded). Replicas never write file output.
// Results are returned in seed order.
func RunReplicas(ctx context.Context, cfg *config.Config, seeds []int64, workers int) ([]telemetry.Result, error) {
	results := make([]telemetry.Result, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, seed := range seeds {
		g.Go(func() error {
			rc := cfg.Clone()
			rc.Telemetry.OutputDir = ""

			sim, err := New(rc, Options{Seed: seed})
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			r, err := sim.Run(ctx)
			if err != nil {
				return fmt.Errorf("replica %d (seed %d): %w", i, seed, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
