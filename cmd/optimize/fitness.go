package main

import (
	"context"
	"math"
	"sync"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/simulator"
	"github.com/pthm-cable/pathfinder/telemetry"
)

// failurePenalty is the fitness of a run that never reaches the goal. A
// completed run scores best cost / optimal cost, which is at least 1.
const failurePenalty = 10.0

// FitnessEvaluator runs replicas and computes fitness (lower = better).
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []int64
	workers    int
	baseConfig *config.Config

	mu          sync.Mutex
	bestFitness float64
	bestResults []telemetry.Result
	last        telemetry.Summary
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, workers int, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		workers:     workers,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// Evaluate computes fitness for a raw parameter vector: the success-weighted
// mean of best cost over optimal cost, with failurePenalty for runs that
// never reach the goal.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	if err := cfg.Finalize(); err != nil {
		return math.Inf(1)
	}

	results, err := simulator.RunReplicas(context.Background(), cfg, fe.seeds, fe.workers)
	if err != nil {
		return math.Inf(1)
	}
	summary := telemetry.Summarize(results)
	fitness := computeFitness(summary)

	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.last = summary
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestResults = results
	}
	return fitness
}

func computeFitness(s telemetry.Summary) float64 {
	if s.Completed == 0 || math.IsNaN(s.GapMean) {
		return failurePenalty
	}
	return s.SuccessRate*(1+s.GapMean) + (1-s.SuccessRate)*failurePenalty
}

// LastSummary returns the replica summary from the most recent evaluation.
func (fe *FitnessEvaluator) LastSummary() telemetry.Summary {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// BestResults returns the replica results of the best evaluation.
func (fe *FitnessEvaluator) BestResults() []telemetry.Result {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestResults
}
