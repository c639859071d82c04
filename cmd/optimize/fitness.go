package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/canopy/blueprints"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/scenario"
	"github.com/pthm-cable/canopy/sim"
	"github.com/pthm-cable/canopy/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int
	seeds      []int64
	baseConfig *config.Config
	savegame   *scenario.Savegame
	catalog    *blueprints.Catalog
	logger     *slog.Logger

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []int64, baseCfg *config.Config, sg *scenario.Savegame, cat *blueprints.Catalog) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		ticks:      ticks,
		seeds:      seeds,
		baseConfig: baseCfg,
		savegame:   sg,
		catalog:    cat,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the results from a single simulation run.
type runResult struct {
	balance float64
	windows [][]telemetry.ZoneSummary
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negative mean final balance across seeds, reduced by up
// to 10% for poor plant health.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg, sg, err := fe.params.Apply(fe.baseConfig, fe.savegame, fe.catalog, x)
	if err != nil {
		slog.Error("invalid parameters", "error", err)
		return math.Inf(1)
	}

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, sg, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for _, r := range results {
		if r.err != nil {
			slog.Error("simulation failed", "error", r.err)
			return math.Inf(1)
		}
		quality := computeQuality(r.windows)
		totalFitness += computeFitness(r.balance, quality)
		totalQuality += quality
	}

	n := float64(len(fe.seeds))
	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()
	return totalFitness / n
}

// runSimulation executes a single headless run of the savegame.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, base *scenario.Savegame, seed int64) runResult {
	sg := *base
	sg.Seed = seed

	var result runResult
	s, err := sim.New(sim.Options{
		Config:   cfg,
		Catalog:  fe.catalog,
		Savegame: &sg,
		Logger:   fe.logger,
		StatsCallback: func(w []telemetry.ZoneSummary) {
			result.windows = append(result.windows, w)
		},
	})
	if err != nil {
		result.err = err
		return result
	}
	if err := s.Run(context.Background(), fe.ticks); err != nil {
		result.err = err
		return result
	}
	result.balance = s.Ledger().Balance().InexactFloat64()
	return result
}

// computeFitness calculates the scalar fitness (lower = better).
func computeFitness(balance, quality float64) float64 {
	penalty := 0.1 * (1 - quality) * math.Abs(balance)
	return -(balance - penalty)
}

// qualityWarmupWindows skips the first windows while the climate settles.
const qualityWarmupWindows = 1

// computeQuality is the mean plant health over every zone window past
// warmup, in [0, 1].
func computeQuality(windows [][]telemetry.ZoneSummary) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	var sum float64
	var n int
	for _, w := range windows[qualityWarmupWindows:] {
		for _, z := range w {
			if z.Plants == 0 {
				continue
			}
			sum += z.HealthMean
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
