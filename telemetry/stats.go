package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick uint64  `csv:"-"`
	WindowEndTick   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Live tethers at window end
	Tethers int `csv:"tethers"`
	Reeling int `csv:"reeling"`

	// Tether events during window
	Attaches   int     `csv:"attaches"`
	Breaks     int     `csv:"breaks"`
	Releases   int     `csv:"releases"`
	ReelStarts int     `csv:"reel_starts"`
	ReelStops  int     `csv:"reel_stops"`
	BreakRate  float64 `csv:"break_rate"` // breaks / (breaks + releases)

	// Rope length distribution (sampled at window end)
	RopeMean float64 `csv:"rope_mean"`
	RopeStd  float64 `csv:"rope_std"`
	RopeP10  float64 `csv:"rope_p10"`
	RopeP50  float64 `csv:"rope_p50"`
	RopeP90  float64 `csv:"rope_p90"`

	// Mean seconds a tether lived, over those that ended this window
	TetherLifeMean float64 `csv:"tether_life_mean"`

	// Sibling features
	Gathers    int     `csv:"gathers"`
	Explosions int     `csv:"explosions"`
	Spills     int     `csv:"spills"`
	Spilled    float64 `csv:"spilled"`
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

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeRopeStats calculates mean, sample standard deviation and
// percentiles. Fewer than two values give a zero deviation.
func ComputeRopeStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	if n == 1 {
		mean = values[0]
	} else {
		mean, std = stat.MeanStdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("tethers", s.Tethers),
		slog.Int("reeling", s.Reeling),
		slog.Int("attaches", s.Attaches),
		slog.Int("breaks", s.Breaks),
		slog.Int("releases", s.Releases),
		slog.Float64("break_rate", s.BreakRate),
		slog.Float64("rope_mean", s.RopeMean),
		slog.Float64("rope_p50", s.RopeP50),
		slog.Float64("tether_life_mean", s.TetherLifeMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"tethers", s.Tethers,
		"reeling", s.Reeling,
		"attaches", s.Attaches,
		"breaks", s.Breaks,
		"releases", s.Releases,
		"reel_starts", s.ReelStarts,
		"reel_stops", s.ReelStops,
		"break_rate", s.BreakRate,
		"rope_mean", s.RopeMean,
		"rope_std", s.RopeStd,
		"rope_p10", s.RopeP10,
		"rope_p50", s.RopeP50,
		"rope_p90", s.RopeP90,
		"tether_life_mean", s.TetherLifeMean,
		"gathers", s.Gathers,
		"explosions", s.Explosions,
		"spills", s.Spills,
	)
}
