package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/pathfinder/grid"
	"github.com/pthm-cable/pathfinder/population"
)

type fakePopulation struct {
	size     int
	best     population.Best
	stats    population.Stats
	comforts []float64
}

func (f *fakePopulation) Size() int { return f.size }
func (f *fakePopulation) Best() population.Best { return f.best }
func (f *fakePopulation) Stats() population.Stats { return f.stats }
func (f *fakePopulation) Comforts() []float64 { return f.comforts }

func TestCollectorWindows(t *testing.T) {
	pop := &fakePopulation{
		size:     3,
		best:     population.Best{Path: []grid.Cell{{X: 1, Y: 1}}, Cost: math.MaxInt, Comfort: 0.2},
		stats:    population.Stats{Births: 4, Deaths: 1, Evictions: 2},
		comforts: []float64{0.1, 0.2, 0.3},
	}
	c := NewCollector()

	first := c.Flush(5, 17, pop)
	if first.Index != 0 || first.Time != 5 || first.Events != 17 {
		t.Errorf("first = %+v", first)
	}
	if first.Births != 4 || first.Deaths != 1 || first.Evictions != 2 {
		t.Errorf("first window counters = %d/%d/%d, want 4/1/2", first.Births, first.Deaths, first.Evictions)
	}
	if first.BestCost != 0 {
		t.Errorf("BestCost = %d before completion, want 0", first.BestCost)
	}
	if math.Abs(first.ComfortMean-0.2) > 1e-9 {
		t.Errorf("ComfortMean = %v, want 0.2", first.ComfortMean)
	}

	pop.stats = population.Stats{Births: 10, Deaths: 3, Evictions: 2, Trapped: 1}
	pop.best = population.Best{Path: []grid.Cell{{X: 1, Y: 1}, {X: 1, Y: 2}}, Cost: 1, Comfort: 0.5, Complete: true}

	second := c.Flush(10, 40, pop)
	if second.Index != 1 {
		t.Errorf("Index = %d, want 1", second.Index)
	}
	if second.Births != 6 || second.Deaths != 2 || second.Evictions != 0 || second.Trapped != 1 {
		t.Errorf("second window counters = %+v", second)
	}
	if !second.Complete || second.BestCost != 1 {
		t.Errorf("best = %v/%d, want complete/1", second.Complete, second.BestCost)
	}
	if c.Observations() != 2 {
		t.Errorf("Observations() = %d, want 2", c.Observations())
	}
}
