package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseInput       = "input"
	PhaseSpatialGrid = "spatial_grid"
	PhaseProjectiles = "projectiles"
	PhaseGrapple     = "grapple"
	PhaseJoints      = "joints"
	PhasePhysics     = "physics"
	PhaseRadiation   = "radiation"
	PhasePuddles     = "puddles"
	PhaseCleanup     = "cleanup"
	PhaseTelemetry   = "telemetry"
)

// Phases lists every phase in step order.
var Phases = []string{
	PhaseInput, PhaseSpatialGrid, PhaseProjectiles, PhaseGrapple, PhaseJoints,
	PhasePuddles, PhasePhysics, PhaseRadiation, PhaseCleanup, PhaseTelemetry,
}

// PerfSample is the cost and rope load of one step. Phase time includes any
// predicted ticks replayed inside the step.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
	Tethers      int // ropes alive at the end of the step
	Reeling      int // of which reeling
	Replays      int // predicted ticks re-simulated during the step
}

// PerfCollector keeps a rolling window of step samples.
type PerfCollector struct {
	now        func() time.Time
	samples    []PerfSample
	next       int
	count      int
	cur        PerfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      string

	lastFrame     time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		now:     time.Now,
		samples: make([]PerfSample, windowSize),
	}
}

// SetClock replaces the time source.
func (p *PerfCollector) SetClock(now func() time.Time) {
	p.now = now
}

// StartTick begins a new step sample.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.cur = PerfSample{Phases: make(map[string]time.Duration)}
	p.phase = ""
}

// StartPhase closes the running phase and opens the next one. A phase
// entered more than once per step (replays) accumulates.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	if p.phase != "" {
		p.cur.Phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.phase = phase
}

// CountReplay notes one re-simulated tick in the current step.
func (p *PerfCollector) CountReplay() {
	p.cur.Replays++
}

// SetLoad records how many ropes the step carried.
func (p *PerfCollector) SetLoad(tethers, reeling int) {
	p.cur.Tethers, p.cur.Reeling = tethers, reeling
}

// EndTick closes the step and stores its sample.
func (p *PerfCollector) EndTick() {
	now := p.now()
	if p.phase != "" {
		p.cur.Phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.cur.TickDuration = now.Sub(p.tickStart)

	p.samples[p.next] = p.cur
	p.next = (p.next + 1) % len(p.samples)
	p.count = min(p.count+1, len(p.samples))
}

// RecordFrame measures the time since the previous rendered frame.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frameDuration = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats aggregates the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of the average step

	TicksPerSecond float64

	AvgTethers     float64
	AvgReeling     float64
	ReplaysPerTick float64
	// GrapplePerTether is the reel controller's average cost per rope.
	// Zero when no ropes were out.
	GrapplePerTether time.Duration

	FrameDuration time.Duration
	FPS           float64
}

// Stats computes the window averages.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
	}
	if p.frameDuration > 0 {
		stats.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.count == 0 {
		return stats
	}

	var total time.Duration
	var tethers, reeling, replays int
	sums := make(map[string]time.Duration)
	for i, s := range p.samples[:p.count] {
		total += s.TickDuration
		if i == 0 || s.TickDuration < stats.MinTickDuration {
			stats.MinTickDuration = s.TickDuration
		}
		stats.MaxTickDuration = max(stats.MaxTickDuration, s.TickDuration)
		for phase, d := range s.Phases {
			sums[phase] += d
		}
		tethers += s.Tethers
		reeling += s.Reeling
		replays += s.Replays
	}

	n := time.Duration(p.count)
	stats.AvgTickDuration = total / n
	for phase, sum := range sums {
		stats.PhaseAvg[phase] = sum / n
		if stats.AvgTickDuration > 0 {
			stats.PhasePct[phase] = float64(sum/n) / float64(stats.AvgTickDuration) * 100
		}
	}
	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
	}

	stats.AvgTethers = float64(tethers) / float64(p.count)
	stats.AvgReeling = float64(reeling) / float64(p.count)
	stats.ReplaysPerTick = float64(replays) / float64(p.count)
	if tethers > 0 {
		stats.GrapplePerTether = sums[PhaseGrapple] / time.Duration(tethers)
	}
	return stats
}

// LogStats logs the window through slog.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"tethers", s.AvgTethers,
		"reeling", s.AvgReeling,
		"grapple_per_tether_ns", s.GrapplePerTether.Nanoseconds(),
	}
	if s.ReplaysPerTick > 0 {
		attrs = append(attrs, "replays_per_tick", s.ReplaysPerTick)
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd          uint64  `csv:"window_end"`
	AvgTickUS          int64   `csv:"avg_tick_us"`
	MinTickUS          int64   `csv:"min_tick_us"`
	MaxTickUS          int64   `csv:"max_tick_us"`
	TicksPerSec        float64 `csv:"ticks_per_sec"`
	FPS                float64 `csv:"fps"`
	AvgTethers         float64 `csv:"avg_tethers"`
	AvgReeling         float64 `csv:"avg_reeling"`
	ReplaysPerTick     float64 `csv:"replays_per_tick"`
	GrapplePerTetherNS int64   `csv:"grapple_per_tether_ns"`
	InputPct           float64 `csv:"input_pct"`
	ProjectilesPct     float64 `csv:"projectiles_pct"`
	GrapplePct         float64 `csv:"grapple_pct"`
	JointsPct          float64 `csv:"joints_pct"`
	PhysicsPct         float64 `csv:"physics_pct"`
	HazardsPct         float64 `csv:"hazards_pct"` // puddles and radiation
	OtherPct           float64 `csv:"other_pct"`
}

// ToCSV flattens the stats for perf.csv.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	pct := s.PhasePct
	return PerfStatsCSV{
		WindowEnd:          windowEnd,
		AvgTickUS:          s.AvgTickDuration.Microseconds(),
		MinTickUS:          s.MinTickDuration.Microseconds(),
		MaxTickUS:          s.MaxTickDuration.Microseconds(),
		TicksPerSec:        s.TicksPerSecond,
		FPS:                s.FPS,
		AvgTethers:         s.AvgTethers,
		AvgReeling:         s.AvgReeling,
		ReplaysPerTick:     s.ReplaysPerTick,
		GrapplePerTetherNS: s.GrapplePerTether.Nanoseconds(),
		InputPct:           pct[PhaseInput],
		ProjectilesPct:     pct[PhaseProjectiles],
		GrapplePct:         pct[PhaseGrapple],
		JointsPct:          pct[PhaseJoints],
		PhysicsPct:         pct[PhasePhysics],
		HazardsPct:         pct[PhasePuddles] + pct[PhaseRadiation],
		OtherPct:           pct[PhaseSpatialGrid] + pct[PhaseCleanup] + pct[PhaseTelemetry],
	}
}
