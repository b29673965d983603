package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/grapple/config"
	"github.com/pthm-cable/grapple/game"
	"github.com/pthm-cable/grapple/telemetry"
)

// FitnessEvaluator runs headless autopilot scenarios and scores the rope
// behaviour they produce.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    uint64
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	mu          sync.Mutex
	lastQuality float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks uint64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 5.0,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			qualities[idx] = computeQuality(fe.runSimulation(x, s))
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for _, q := range qualities {
		total += q
	}
	avg := total / float64(len(qualities))

	fe.mu.Lock()
	fe.lastQuality = avg
	fe.mu.Unlock()

	return -avg
}

// runSimulation executes one headless run and returns its window stats.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) []telemetry.WindowStats {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g := game.NewGameWithOptions(game.Options{
		Seed:           seed,
		Config:         cfg,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Scenario:       true,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return windows
}

// copyConfig returns a private copy of the base config set up for
// unattended runs.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Scenario.Autopilot = true
	cfg.Scenario.Player = false
	cfg.Authority.Server = true
	cfg.Authority.RollbackTicks = 0
	return &cfg
}

// Quality component weights.
const (
	qualityWeightIntact  = 0.45
	qualityWeightReeling = 0.35
	qualityWeightLife    = 0.20

	qualityWarmupWindows = 1
	targetTetherLife     = 3.0 // seconds
)

// computeQuality scores a run in [0, 1]. Ropes that survive to be released,
// reels that finish, and tethers that live a few seconds all score well.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var breaks, releases, reelStops, attaches int
	var lifeSum float64
	var lifeCount int
	for _, w := range valid {
		breaks += w.Breaks
		releases += w.Releases
		reelStops += w.ReelStops
		attaches += w.Attaches
		if w.TetherLifeMean > 0 {
			lifeSum += w.TetherLifeMean
			lifeCount++
		}
	}
	if attaches == 0 {
		return 0
	}

	intact := 1.0
	if ended := breaks + releases; ended > 0 {
		intact = float64(releases) / float64(ended)
	}

	reelsPerAttach := float64(reelStops) / float64(attaches)
	reelScore := 1 - math.Exp(-2*reelsPerAttach)

	lifeScore := 0.0
	if lifeCount > 0 {
		mean := lifeSum / float64(lifeCount)
		lifeScore = math.Exp(-math.Pow((mean-targetTetherLife)/2.0, 2))
	}

	return clamp01(qualityWeightIntact*intact +
		qualityWeightReeling*reelScore +
		qualityWeightLife*lifeScore)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
