// Package main provides CMA-ES optimization of the event time scales and
// population cap for a scenario.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/pathfinder/config"
	"github.com/pthm-cable/pathfinder/simulator"
)

// evalRecord is one row of optimize_log.csv.
type evalRecord struct {
	Eval        int     `csv:"eval"`
	Fitness     float64 `csv:"fitness"`
	SuccessRate float64 `csv:"success_rate"`
	Mu          float64 `csv:"mu"`
	Delta       float64 `csv:"delta"`
	Ro          float64 `csv:"ro"`
	MaxSize     int     `csv:"max_size"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	scenarioPath := flag.String("scenario", "", "Scenario file (empty = grid from config)")
	seeds := flag.Int("seeds", 8, "Number of seeds per evaluation")
	workers := flag.Int("workers", runtime.NumCPU(), "Replicas run concurrently")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := loadBaseConfig(*configPath, *scenarioPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg.Telemetry.OutputDir = ""

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, simulator.Seeds(42, *seeds), *workers, baseCfg)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // replicas already run in parallel
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			summary := evaluator.LastSummary()
			rec := []evalRecord{{
				Eval:        evalCount,
				Fitness:     fitness,
				SuccessRate: summary.SuccessRate,
				Mu:          clamped[0],
				Delta:       clamped[1],
				Ro:          clamped[2],
				MaxSize:     int(clamped[3]),
			}}
			var werr error
			if headerWritten {
				werr = gocsv.MarshalWithoutHeaders(rec, logFile)
			} else {
				werr = gocsv.Marshal(rec, logFile)
				headerWritten = true
			}
			if werr != nil {
				log.Printf("failed to write log row: %v", werr)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: fitness=%.3f success=%.0f%% (best=%.3f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, summary.SuccessRate*100, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, horizon: %g\n", *seeds, baseCfg.Simulation.Horizon)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.3f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg := baseCfg.Clone()
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	if results := evaluator.BestResults(); results != nil {
		resultsPath := filepath.Join(*outputDir, "best_results.json")
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Printf("failed to marshal results: %v", err)
		} else if err := os.WriteFile(resultsPath, data, 0644); err != nil {
			log.Printf("failed to write results: %v", err)
		} else {
			fmt.Printf("Best replica results saved to: %s\n", resultsPath)
		}
	}
}

// loadBaseConfig loads the config and applies the scenario file if given.
func loadBaseConfig(configPath, scenarioPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if scenarioPath == "" {
		return cfg, nil
	}
	sc, err := config.LoadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyScenario(sc); err != nil {
		return nil, err
	}
	return cfg, nil
}
