package game

import (
	"fmt"
	"io"
	"time"

	"github.com/pthm-cable/grapple/telemetry"
)

// logWriter is the destination for log output.
var logWriter io.Writer

// SetLogWriter sets the log output destination.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// Logf writes a formatted log message.
func Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if logWriter != nil {
		fmt.Fprintln(logWriter, msg)
	} else {
		fmt.Println(msg)
	}
}

// logPerfStats prints a per-phase breakdown using the registry's display names.
func (g *Game) logPerfStats(stats telemetry.PerfStats) {
	Logf("=== Perf @ Tick %d (speed %dx) | %.0f ticks/s ===", g.timing.Tick, g.stepsPerUpdate, stats.TicksPerSecond)
	Logf("Avg step time: %s (min %s, max %s)",
		stats.AvgTickDuration.Round(time.Microsecond),
		stats.MinTickDuration.Round(time.Microsecond),
		stats.MaxTickDuration.Round(time.Microsecond))

	for _, phase := range telemetry.Phases {
		avg, ok := stats.PhaseAvg[phase]
		if !ok {
			continue
		}
		Logf("  %-18s %10s  %5.1f%%", g.registry.GetName(phase), avg.Round(time.Microsecond), stats.PhasePct[phase])
	}

	Logf("  ropes: %.1f out, %.1f reeling, %s per rope in the reel controller",
		stats.AvgTethers, stats.AvgReeling, stats.GrapplePerTether.Round(time.Nanosecond))
	if g.predictor != nil {
		Logf("  prediction: %d replayed ticks, %d resyncs", g.predictor.Replays, g.predictor.Resyncs)
	}
	if g.server != nil {
		Logf("  network: %d players", len(g.sessions))
	}
	Logf("")
}
