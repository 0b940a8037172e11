package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Observation is the population state at one snapshot boundary.
// Counters (births, deaths, evictions, trapped) cover the window since the
// previous observation.
type Observation struct {
	Index    int     `csv:"observation"`
	Time     float64 `csv:"time"`
	Events   int     `csv:"events"`
	Size     int     `csv:"size"`
	Complete bool    `csv:"complete"`

	BestPath    Route   `csv:"best_path"`
	BestCost    int     `csv:"best_cost"`
	BestComfort float64 `csv:"best_comfort"`

	// Events during window
	Births    int `csv:"births"`
	Deaths    int `csv:"deaths"`
	Evictions int `csv:"evictions"`
	Trapped   int `csv:"trapped"`

	// Comfort distribution (sampled at the boundary)
	ComfortMean float64 `csv:"comfort_mean"`
	ComfortP10  float64 `csv:"comfort_p10"`
	ComfortP50  float64 `csv:"comfort_p50"`
	ComfortP90  float64 `csv:"comfort_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation between closest ranks
	idx := p * float64(n-1)
	lo := int(idx)
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// ComputeComfortStats calculates mean and percentiles from comfort values.
func ComputeComfortStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, p10, p50, p90
}

// BestValue returns the best cost once the goal has been reached, and the
// best comfort before that.
func (o Observation) BestValue() float64 {
	if o.Complete {
		return float64(o.BestCost)
	}
	return o.BestComfort
}

// LogValue implements slog.LogValuer for structured logging.
func (o Observation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("observation", o.Index),
		slog.Float64("time", o.Time),
		slog.Int("events", o.Events),
		slog.Int("size", o.Size),
		slog.Bool("complete", o.Complete),
		slog.Int("best_len", len(o.BestPath)),
		slog.Float64("best", o.BestValue()),
		slog.Int("births", o.Births),
		slog.Int("deaths", o.Deaths),
		slog.Int("evictions", o.Evictions),
		slog.Int("trapped", o.Trapped),
		slog.Float64("comfort_mean", o.ComfortMean),
		slog.Float64("comfort_p50", o.ComfortP50),
	)
}

// LogStats logs the observation using slog.
func (o Observation) LogStats() {
	slog.Info("stats", "obs", o)
}
