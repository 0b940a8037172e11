// Package simulator drives one run: it builds the grid, population and
// event queue from a config, seeds the initial agents and steps the queue
// until it empties, turning every snapshot boundary into an observation.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/events"
	"github.com/pthm-cable/pathfinder/grid"
	"github.com/pthm-cable/pathfinder/population"
	"github.com/pthm-cable/pathfinder/telemetry"
)

var _ events.Agents = (*population.Population)(nil)

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 1024

// Options holds run settings that are not part of the config.
type Options struct {
	Seed      int64  // overrides simulation.seed when non-zero
	RunID     string // empty = random UUID
	OutputDir string // overrides telemetry.output_dir when non-empty
	LogStats  bool   // log observations and milestones via slog

	// OnObservation is called for every observation, after it is recorded.
	OnObservation func(telemetry.Observation)
}

// Simulator owns one run's state.
type Simulator struct {
	cfg   *config.Config
	opts  Options
	seed  int64
	runID string

	rng   *rand.Rand
	grid  *grid.Grid
	pop   *population.Population
	queue *events.Queue

	collector *telemetry.Collector
	detector  *telemetry.MilestoneDetector
	output    *telemetry.OutputManager

	observations []telemetry.Observation
	finished     bool
}

// New builds a simulator and seeds its initial agents.
func New(cfg *config.Config, opts Options) (*Simulator, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	g, err := cfg.BuildGrid()
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}

	pc := cfg.Population
	pop, err := population.New(g, population.Params{
		MaxSize: pc.MaxSize,
		K:       pc.K,
		Elite:   pc.Elite,
		Mu:      pc.Mu,
		Delta:   pc.Delta,
		Ro:      pc.Ro,
	})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	q, err := events.NewQueue(cfg.Simulation.Horizon, pop, rng,
		events.WithCadence(cfg.Derived.Cadence),
		events.WithSnapshots(cfg.Simulation.Snapshots),
	)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:       cfg,
		opts:      opts,
		seed:      seed,
		runID:     runID,
		rng:       rng,
		grid:      g,
		pop:       pop,
		queue:     q,
		collector: telemetry.NewCollector(),
		detector:  telemetry.NewMilestoneDetector(cfg.Telemetry.StagnationWindow, cfg.Telemetry.CrashFraction),
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cfg.Telemetry.OutputDir
	}
	if s.output, err = telemetry.NewOutputManager(outputDir); err != nil {
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		s.output.Close()
		return nil, err
	}

	if err := s.seedPopulation(); err != nil {
		s.output.Close()
		return nil, err
	}
	return s, nil
}

// seedPopulation places the initial agents on the start cell. Agents
// evicted while seeding get no events.
func (s *Simulator) seedPopulation() error {
	for range s.cfg.Simulation.Initial {
		e := s.pop.Spawn(s.rng)
		if !s.pop.Contains(e) {
			continue
		}
		if err := events.SeedAgent(s.queue, s.pop, e); err != nil {
			return fmt.Errorf("seeding agent: %w", err)
		}
	}
	slog.Debug("population seeded", "run_id", s.runID, "size", s.pop.Size(), "pending", s.queue.Len())
	return nil
}

// Step advances the queue by one step and records an observation when a
// snapshot boundary is crossed.
func (s *Simulator) Step() (events.Outcome, error) {
	out, err := s.queue.Next()
	if err != nil {
		return out, err
	}
	if out == events.Snapshot {
		s.observe()
	}
	return out, nil
}

// Run steps until the queue is empty, then finishes the run. It stops early
// with ctx's error if ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) (telemetry.Result, error) {
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				s.output.Close()
				return s.Result(), err
			}
		}
		out, err := s.Step()
		if err != nil {
			s.output.Close()
			return s.Result(), err
		}
		if out == events.Empty {
			break
		}
	}
	return s.Finish()
}

// Finish writes the final snapshot and result and closes file output.
// Calling it twice is a no-op apart from returning the result.
func (s *Simulator) Finish() (telemetry.Result, error) {
	r := s.Result()
	if s.finished {
		return r, nil
	}
	s.finished = true

	if s.opts.LogStats {
		slog.Info("run finished", "result", r)
	}
	if s.output == nil {
		return r, nil
	}
	if _, err := s.output.WriteSnapshot(s.Snapshot(nil)); err != nil {
		slog.Error("failed to save snapshot", "error", err)
	}
	if err := s.output.WriteResult(r); err != nil {
		s.output.Close()
		return r, err
	}
	return r, s.output.Close()
}

// observe flushes an observation and handles milestones.
func (s *Simulator) observe() {
	o := s.collector.Flush(s.queue.Now(), s.queue.EventsCount(), s.pop)
	s.observations = append(s.observations, o)

	if s.opts.OnObservation != nil {
		s.opts.OnObservation(o)
	}
	if s.opts.LogStats {
		o.LogStats()
	}
	if err := s.output.WriteObservation(o); err != nil {
		slog.Error("failed to write observation", "error", err)
	}

	for _, m := range s.detector.Check(o) {
		if s.opts.LogStats {
			m.LogMilestone()
		}
		if err := s.output.WriteMilestone(m); err != nil {
			slog.Error("failed to write milestone", "error", err)
		}
		if s.output != nil {
			path, err := s.output.WriteSnapshot(s.Snapshot(&m))
			if err != nil {
				slog.Error("failed to save snapshot", "error", err)
				continue
			}
			slog.Debug("snapshot saved", "path", path, "milestone", m.Type)
		}
	}
}

// Result summarizes the run so far.
func (s *Simulator) Result() telemetry.Result {
	best := s.pop.Best()
	stats := s.pop.Stats()
	optimal, reachable := s.grid.OptimalCost()

	r := telemetry.Result{
		RunID:        s.runID,
		Seed:         s.seed,
		Complete:     best.Complete,
		BestPath:     telemetry.Route(best.Path),
		BestComfort:  best.Comfort,
		OptimalCost:  optimal,
		Reachable:    reachable,
		Time:         s.queue.Now(),
		Events:       s.queue.EventsCount(),
		Observations: len(s.observations),
		FinalSize:    s.pop.Size(),
		Births:       stats.Births,
		Deaths:       stats.Deaths,
		Evictions:    stats.Evictions,
		Trapped:      stats.Trapped,
	}
	if best.Complete {
		r.BestCost = best.Cost
	}
	return r
}

// Snapshot captures the live population. m is attached when the snapshot
// is taken for a milestone.
func (s *Simulator) Snapshot(m *telemetry.Milestone) *telemetry.Snapshot {
	snap := &telemetry.Snapshot{
		Version:   telemetry.SnapshotVersion,
		RunID:     s.runID,
		Seed:      s.seed,
		Rows:      s.grid.Rows(),
		Cols:      s.grid.Cols(),
		Start:     s.grid.Start(),
		Goal:      s.grid.Goal(),
		Time:      s.queue.Now(),
		Events:    s.queue.EventsCount(),
		Milestone: m,
	}

	for _, e := range s.pop.Entities() {
		cells, cost, ok := s.pop.PathOf(e)
		if !ok {
			continue
		}
		comfort, _ := s.pop.ComfortOf(e)
		lin, _ := s.pop.LineageOf(e)
		snap.Agents = append(snap.Agents, telemetry.AgentState{
			ID:         lin.ID,
			ParentID:   lin.ParentID,
			Generation: lin.Generation,
			Comfort:    comfort,
			Cost:       cost,
			Path:       telemetry.Route(cells),
		})
	}
	return snap
}

// Seed returns the seed in use.
func (s *Simulator) Seed() int64 { return s.seed }

// RunID returns the run identifier.
func (s *Simulator) RunID() string { return s.runID }

// Grid returns the map.
func (s *Simulator) Grid() *grid.Grid { return s.grid }

// Population returns the live population.
func (s *Simulator) Population() *population.Population { return s.pop }

// Queue returns the event queue.
func (s *Simulator) Queue() *events.Queue { return s.queue }

// Observations returns the observations recorded so far.
func (s *Simulator) Observations() []telemetry.Observation { return s.observations }
