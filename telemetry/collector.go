package telemetry

import "github.com/pthm-cable/pathfinder/population"

// Population is the state an observation samples.
// *population.Population implements it.
type Population interface {
	Size() int
	Best() population.Best
	Stats() population.Stats
	Comforts() []float64
}

// Collector turns population state at snapshot boundaries into
// Observations. Counters are reported per window.
type Collector struct {
	index int
	last  population.Stats
}

// NewCollector creates a collector whose first observation has index 0.
func NewCollector() *Collector {
	return &Collector{}
}

// Flush produces an Observation and starts the next window.
// now and events are the simulation clock and executed event count.
func (c *Collector) Flush(now float64, events int, pop Population) Observation {
	best := pop.Best()
	stats := pop.Stats()
	mean, p10, p50, p90 := ComputeComfortStats(pop.Comforts())

	obs := Observation{
		Index:    c.index,
		Time:     now,
		Events:   events,
		Size:     pop.Size(),
		Complete: best.Complete,

		BestPath:    Route(best.Path),
		BestCost:    best.Cost,
		BestComfort: best.Comfort,

		Births:    stats.Births - c.last.Births,
		Deaths:    stats.Deaths - c.last.Deaths,
		Evictions: stats.Evictions - c.last.Evictions,
		Trapped:   stats.Trapped - c.last.Trapped,

		ComfortMean: mean,
		ComfortP10:  p10,
		ComfortP50:  p50,
		ComfortP90:  p90,
	}
	if !best.Complete {
		obs.BestCost = 0
	}

	c.index++
	c.last = stats
	return obs
}

// Observations returns the number of observations flushed so far.
func (c *Collector) Observations() int {
	return c.index
}
