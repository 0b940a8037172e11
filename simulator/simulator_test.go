package simulator

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/events"
	"github.com/pthm-cable/pathfinder/grid"
	"github.com/pthm-cable/pathfinder/telemetry"
)

// openGridConfig is a 5x5 grid without obstacles or zones, from (1,1) to (5,5).
func openGridConfig(t *testing.T, mu float64, initial int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	cfg.Simulation.Horizon = 1000
	cfg.Simulation.Initial = initial
	cfg.Simulation.Seed = 1
	cfg.Population = config.PopulationConfig{MaxSize: 50, K: 1, Mu: mu, Delta: 1, Ro: 1}
	cfg.Grid = config.GridConfig{
		Rows:  5,
		Cols:  5,
		Start: grid.Cell{X: 1, Y: 1},
		Goal:  grid.Cell{X: 5, Y: 5},
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return cfg
}

func mustRun(t *testing.T, cfg *config.Config, opts Options) (*Simulator, telemetry.Result) {
	t.Helper()
	sim, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return sim, r
}

// checkRoute verifies a best route walks adjacent free cells from start and
// that its cost is the sum of its edge costs.
func checkRoute(t *testing.T, g *grid.Grid, r telemetry.Result) {
	t.Helper()
	if len(r.BestPath) == 0 {
		return
	}
	if r.BestPath[0] != g.Start() {
		t.Errorf("best path starts at %v, want %v", r.BestPath[0], g.Start())
	}
	cost := 0
	for i := 1; i < len(r.BestPath); i++ {
		a, b := r.BestPath[i-1], r.BestPath[i]
		if a.Manhattan(b) != 1 {
			t.Fatalf("best path step %v -> %v is not adjacent", a, b)
		}
		if g.IsObstacle(b) {
			t.Fatalf("best path crosses obstacle %v", b)
		}
		cost += g.Cost(a, b)
	}
	if r.Complete && cost != r.BestCost {
		t.Errorf("BestCost = %d, edge sum = %d", r.BestCost, cost)
	}
}

// With one seed agent and mu = delta = ro = 1 the seed's death time
// (1 - ln(1 - 2/11) ≈ 1.20) precedes its first move (1 - ln(2/11) ≈ 2.70),
// so the run ends after three events and no observation.
func TestSingleSeedDiesBeforeMoving(t *testing.T) {
	cfg := openGridConfig(t, 1, 1)
	sim, r := mustRun(t, cfg, Options{})

	if sim.Queue().Len() != 0 {
		t.Errorf("pending = %d after run, want 0", sim.Queue().Len())
	}
	if r.Events != 3 {
		t.Errorf("Events = %d, want 3", r.Events)
	}
	if r.Complete || len(r.BestPath) != 0 {
		t.Errorf("best = %v (complete %t), want empty", r.BestPath, r.Complete)
	}
	if r.Deaths != 1 || r.FinalSize != 0 {
		t.Errorf("Deaths/FinalSize = %d/%d, want 1/0", r.Deaths, r.FinalSize)
	}
	if r.Observations != 0 {
		t.Errorf("Observations = %d, want 0", r.Observations)
	}
	if math.Abs(r.Time-(1-math.Log(2.0/11))) > 1e-9 {
		t.Errorf("Time = %v, want %v", r.Time, 1-math.Log(2.0/11))
	}
}

func TestOpenGridReachesGoal(t *testing.T) {
	completed := 0
	for _, seed := range Seeds(1, 5) {
		cfg := openGridConfig(t, 10, 10)
		sim, r := mustRun(t, cfg, Options{Seed: seed})

		if sim.Queue().Len() != 0 {
			t.Errorf("seed %d: pending = %d after run", seed, sim.Queue().Len())
		}
		if sim.Queue().Now() > cfg.Simulation.Horizon {
			t.Errorf("seed %d: clock %v past horizon", seed, sim.Queue().Now())
		}
		checkRoute(t, sim.Grid(), r)

		if !r.Reachable || r.OptimalCost != 8 {
			t.Errorf("seed %d: optimum = %d (reachable %t), want 8", seed, r.OptimalCost, r.Reachable)
		}
		if !r.Complete {
			continue
		}
		completed++
		if got := r.BestPath[len(r.BestPath)-1]; got != (grid.Cell{X: 5, Y: 5}) {
			t.Errorf("seed %d: complete best path ends at %v", seed, got)
		}
		if r.BestCost < 8 || r.BestCost < r.OptimalCost {
			t.Errorf("seed %d: BestCost = %d, below optimum %d", seed, r.BestCost, r.OptimalCost)
		}
	}
	if completed == 0 {
		t.Error("no replica reached the goal")
	}
}

func TestBlockedCorridorNeverCompletes(t *testing.T) {
	cfg := openGridConfig(t, 10, 10)
	cfg.Simulation.Horizon = 200
	cfg.Grid = config.GridConfig{
		Rows:      1,
		Cols:      5,
		Start:     grid.Cell{X: 1, Y: 1},
		Goal:      grid.Cell{X: 1, Y: 5},
		Obstacles: []grid.Cell{{X: 1, Y: 3}},
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}

	sim, err := New(cfg, Options{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	for {
		out, err := sim.Step()
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if sim.Population().Best().Complete {
			t.Fatal("goal reached through a blocked corridor")
		}
		if out == events.Empty {
			break
		}
	}

	r, err := sim.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if r.Complete || r.Reachable {
		t.Errorf("Complete/Reachable = %t/%t, want false/false", r.Complete, r.Reachable)
	}
	for _, c := range r.BestPath {
		if c.Y >= 3 {
			t.Errorf("best path reaches %v beyond the obstacle", c)
		}
	}
}

func TestRunDeterministicPerSeed(t *testing.T) {
	run := func() (telemetry.Result, []telemetry.Observation) {
		sim, r := mustRun(t, openGridConfig(t, 10, 10), Options{Seed: 42, RunID: "fixed"})
		return r, sim.Observations()
	}
	r1, obs1 := run()
	r2, obs2 := run()

	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("results differ for one seed:\n%+v\n%+v", r1, r2)
	}
	if !reflect.DeepEqual(obs1, obs2) {
		t.Error("observations differ for one seed")
	}
}

func TestObservationsAtBoundaries(t *testing.T) {
	cfg := openGridConfig(t, 10, 10)
	var seen []telemetry.Observation
	sim, r := mustRun(t, cfg, Options{Seed: 7, OnObservation: func(o telemetry.Observation) {
		seen = append(seen, o)
	}})

	obs := sim.Observations()
	if len(obs) > cfg.Simulation.Snapshots {
		t.Fatalf("%d observations, want at most %d", len(obs), cfg.Simulation.Snapshots)
	}
	if len(seen) != len(obs) || r.Observations != len(obs) {
		t.Errorf("callback saw %d, result reports %d, recorded %d", len(seen), r.Observations, len(obs))
	}

	interval := cfg.Derived.SnapshotInterval
	prevEvents := 0
	for i, o := range obs {
		if o.Index != i {
			t.Errorf("observation %d has index %d", i, o.Index)
		}
		want := interval * float64(i+1)
		if math.Abs(o.Time-want) > 1e-9 {
			t.Errorf("observation %d at time %v, want %v", i, o.Time, want)
		}
		if o.Events < prevEvents {
			t.Errorf("observation %d: events went from %d to %d", i, prevEvents, o.Events)
		}
		prevEvents = o.Events
		if o.Size > cfg.Population.MaxSize {
			t.Errorf("observation %d: size %d above cap", i, o.Size)
		}
	}
}

func TestBestCostNeverIncreases(t *testing.T) {
	cfg := openGridConfig(t, 10, 10)
	sim, err := New(cfg, Options{Seed: 11})
	if err != nil {
		t.Fatal(err)
	}

	bestCost := math.MaxInt
	for {
		out, err := sim.Step()
		if err != nil {
			t.Fatal(err)
		}
		if sim.Population().Size() > cfg.Population.MaxSize {
			t.Fatalf("size %d above cap", sim.Population().Size())
		}
		if b := sim.Population().Best(); b.Complete {
			if b.Cost > bestCost {
				t.Fatalf("best cost rose from %d to %d", bestCost, b.Cost)
			}
			bestCost = b.Cost
		}
		if out == events.Empty {
			break
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim, err := New(openGridConfig(t, 10, 10), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sim.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunWritesOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := openGridConfig(t, 10, 10)
	sim, r := mustRun(t, cfg, Options{Seed: 5, OutputDir: dir})

	for _, name := range []string{"config.yaml", "observations.csv", "milestones.csv", "result.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	final := filepath.Join(dir, "snapshots", "snapshot_"+strconv.Itoa(r.Events)+".json")
	snap, err := telemetry.LoadSnapshot(final)
	if err != nil {
		t.Fatalf("final snapshot: %v", err)
	}
	if len(snap.Agents) != sim.Population().Size() {
		t.Errorf("snapshot has %d agents, population %d", len(snap.Agents), sim.Population().Size())
	}
	if snap.Seed != 5 || snap.RunID != sim.RunID() {
		t.Errorf("snapshot seed/run = %d/%s", snap.Seed, snap.RunID)
	}
}
