package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"
)

// Result is the outcome of one run.
type Result struct {
	RunID    string `json:"run_id"`
	Seed     int64  `json:"seed"`
	Complete bool   `json:"complete"`

	BestPath    Route   `json:"best_path"`
	BestCost    int     `json:"best_cost"`
	BestComfort float64 `json:"best_comfort"`

	// OptimalCost is the cheapest possible route cost; Reachable is false
	// when no route exists.
	OptimalCost int  `json:"optimal_cost"`
	Reachable   bool `json:"reachable"`

	Time         float64 `json:"time"`
	Events       int     `json:"events"`
	Observations int     `json:"observations"`
	FinalSize    int     `json:"final_size"`

	Births    int `json:"births"`
	Deaths    int `json:"deaths"`
	Evictions int `json:"evictions"`
	Trapped   int `json:"trapped"`
}

// Gap returns the relative excess of the best cost over the optimum, or
// NaN when the run did not complete or the optimum is unknown.
func (r Result) Gap() float64 {
	if !r.Complete || !r.Reachable || r.OptimalCost <= 0 {
		return math.NaN()
	}
	return float64(r.BestCost-r.OptimalCost) / float64(r.OptimalCost)
}

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.Int64("seed", r.Seed),
		slog.Bool("complete", r.Complete),
		slog.Int("best_cost", r.BestCost),
		slog.Float64("best_comfort", r.BestComfort),
		slog.Int("optimal_cost", r.OptimalCost),
		slog.Int("events", r.Events),
	)
}

// Summary aggregates replica results.
type Summary struct {
	Runs        int
	Completed   int
	SuccessRate float64

	// Over completed runs; NaN when none completed.
	CostMean   float64
	CostStd    float64
	CostMedian float64
	CostMin    int
	GapMean    float64

	EventsMean  float64
	ComfortMean float64
}

// Summarize computes summary statistics over results.
func Summarize(results []Result) Summary {
	s := Summary{
		Runs:       len(results),
		CostMean:   math.NaN(),
		CostStd:    math.NaN(),
		CostMedian: math.NaN(),
		GapMean:    math.NaN(),
		EventsMean: math.NaN(),
	}
	if len(results) == 0 {
		s.ComfortMean = math.NaN()
		return s
	}

	var costs, gaps []float64
	events := make([]float64, 0, len(results))
	comforts := make([]float64, 0, len(results))
	for _, r := range results {
		events = append(events, float64(r.Events))
		comforts = append(comforts, r.BestComfort)
		if !r.Complete {
			continue
		}
		costs = append(costs, float64(r.BestCost))
		if g := r.Gap(); !math.IsNaN(g) {
			gaps = append(gaps, g)
		}
	}

	s.Completed = len(costs)
	s.SuccessRate = float64(s.Completed) / float64(s.Runs)
	s.EventsMean = stat.Mean(events, nil)
	s.ComfortMean = stat.Mean(comforts, nil)

	if len(costs) > 0 {
		slices.Sort(costs)
		s.CostMean = stat.Mean(costs, nil)
		s.CostMedian = stat.Quantile(0.5, stat.Empirical, costs, nil)
		s.CostMin = int(costs[0])
		s.CostStd = 0
		if len(costs) > 1 {
			s.CostStd = stat.StdDev(costs, nil)
		}
	}
	if len(gaps) > 0 {
		s.GapMean = stat.Mean(gaps, nil)
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("runs", s.Runs),
		slog.Int("completed", s.Completed),
		slog.Float64("success_rate", s.SuccessRate),
		slog.Float64("cost_mean", s.CostMean),
		slog.Float64("cost_std", s.CostStd),
		slog.Float64("gap_mean", s.GapMean),
		slog.Float64("events_mean", s.EventsMean),
	)
}

// WriteSummary prints a human-readable summary.
func WriteSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w, "Replicas:\t\t%s\nGoal reached:\t\t%s (%.0f%%)\n",
		humanize.Comma(int64(s.Runs)), humanize.Comma(int64(s.Completed)), s.SuccessRate*100)
	if err != nil {
		return err
	}
	if s.Completed > 0 {
		_, err = fmt.Fprintf(w, "Best cost:\t\tmin %d, mean %.2f, std %.2f, median %.0f\n",
			s.CostMin, s.CostMean, s.CostStd, s.CostMedian)
		if err != nil {
			return err
		}
		if !math.IsNaN(s.GapMean) {
			if _, err = fmt.Fprintf(w, "Mean optimality gap:\t%.1f%%\n", s.GapMean*100); err != nil {
				return err
			}
		}
	}
	_, err = fmt.Fprintf(w, "Mean events per run:\t%s\n", humanize.CommafWithDigits(s.EventsMean, 1))
	return err
}
