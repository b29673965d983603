package game

import (
	"log/slog"

	"github.com/pthm-cable/grapple/telemetry"
)

// recordTelemetry writes this tick's effects, tracks rope lengths and
// flushes the stats window when it is due.
func (g *Game) recordTelemetry() {
	entries := g.fx.Drain()
	if g.output != nil && len(entries) > 0 {
		if err := g.output.WriteEffects(entries); err != nil {
			slog.Error("failed to write effects", "error", err)
		}
	}

	tethers := g.tethers()
	lifetimes := g.collector.Lifetimes()
	reeling := 0
	for _, t := range tethers {
		lifetimes.UpdateLength(t.Gun.ID(), t.RopeLength, g.timing.Tick)
		if t.Reeling {
			reeling++
		}
	}
	g.perf.SetLoad(len(tethers), reeling)

	g.flushTelemetry(tethers)
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry(tethers []TetherInfo) {
	if !g.collector.ShouldFlush(g.timing.Tick) {
		return
	}

	ropeLengths := make([]float64, 0, len(tethers))
	reeling := 0
	for _, t := range tethers {
		ropeLengths = append(ropeLengths, t.RopeLength)
		if t.Reeling {
			reeling++
		}
	}

	stats := g.collector.Flush(g.timing.Tick, ropeLengths, reeling)
	perfStats := g.perf.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
		g.logPerfStats(perfStats)
	}

	if g.output != nil {
		if err := g.output.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range g.bookmarks.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if g.output != nil {
			if err := g.output.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
		g.saveSnapshot(&bm, tethers)
	}
}

// saveSnapshot writes a snapshot to the snapshot directory and to the output
// directory, whichever are enabled.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark, tethers []TetherInfo) {
	if g.snapshotDir == "" && g.output == nil {
		return
	}
	snapshot := g.createSnapshot(bookmark, tethers)

	if g.snapshotDir != "" {
		path, err := telemetry.SaveSnapshot(snapshot, g.snapshotDir)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
		} else {
			slog.Info("snapshot saved", "path", path, "tick", g.timing.Tick)
		}
	}
	if g.output != nil {
		if _, err := g.output.WriteSnapshot(snapshot); err != nil {
			slog.Error("failed to write snapshot", "error", err)
		}
	}
}

// CreateSnapshot builds a snapshot of every live tether.
func (g *Game) CreateSnapshot() *telemetry.Snapshot {
	return g.createSnapshot(nil, g.tethers())
}

func (g *Game) createSnapshot(bookmark *telemetry.Bookmark, tethers []TetherInfo) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Tick:        g.timing.Tick,
		Server:      g.timing.Server,
		WorldWidth:  g.cfg.Derived.WorldW,
		WorldHeight: g.cfg.Derived.WorldH,
		Bookmark:    bookmark,
	}

	lifetimes := g.collector.Lifetimes()
	for _, t := range tethers {
		state := telemetry.TetherState{
			Gun:        t.Gun.ID(),
			Hook:       t.Hook.ID(),
			Reeling:    t.Reeling,
			Enabled:    t.Tether.Enabled,
			RopeLength: t.RopeLength,
			MinLength:  t.Tether.MinLength,
			MaxLength:  t.Tether.MaxLength,
			Length:     t.Tether.Length,
			Lifetime:   lifetimes.Get(t.Gun.ID()).ToJSON(),
		}
		if !t.Target.IsZero() {
			state.Target = t.Target.ID()
		}
		snapshot.Tethers = append(snapshot.Tethers, state)
	}

	return snapshot
}
