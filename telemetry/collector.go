package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks uint64
	dt                  float64

	// Current window tracking
	windowStartTick uint64
	tick            uint64
	muted           bool

	// Event counters for current window
	attaches   int
	breaks     int
	releases   int
	reelStarts int
	reelStops  int
	gathers    int
	explosions int
	spills     int
	spilled    float64

	lifetimes *LifetimeTracker
	// Durations in seconds of tethers that ended this window
	ended []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := uint64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		lifetimes:           NewLifetimeTracker(),
	}
}

// SetTick sets the tick stamped on events arriving through the bus.
func (c *Collector) SetTick(tick uint64) {
	c.tick = tick
}

// SetMuted drops events while set. Replayed ticks run muted so each
// gameplay event is counted once.
func (c *Collector) SetMuted(muted bool) {
	c.muted = muted
}

// Record counts one event.
func (c *Collector) Record(ev Event) {
	if c.muted {
		return
	}
	switch ev.Type {
	case EventAttach:
		c.attaches++
		c.lifetimes.Register(ev.EntityID, ev.Tick, ev.Amount)
	case EventBreak, EventRelease:
		if ev.Type == EventBreak {
			c.breaks++
		} else {
			c.releases++
		}
		if ls := c.lifetimes.Remove(ev.EntityID); ls != nil {
			c.ended = append(c.ended, float64(ev.Tick-ls.AttachTick)*c.dt)
		}
	case EventReelStart:
		c.reelStarts++
		c.lifetimes.RecordReel(ev.EntityID)
	case EventReelStop:
		c.reelStops++
	case EventGather:
		c.gathers++
	case EventExplosion:
		c.explosions++
	case EventSpill:
		c.spills++
		c.spilled += ev.Amount
	}
}

// Lifetimes exposes the per-tether tracker.
func (c *Collector) Lifetimes() *LifetimeTracker {
	return c.lifetimes
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// The caller must provide:
// - currentTick: the current simulation tick
// - ropeLengths: current rope length of every live tether
// - reeling: how many of those are reeling
func (c *Collector) Flush(currentTick uint64, ropeLengths []float64, reeling int) WindowStats {
	var breakRate float64
	if ended := c.breaks + c.releases; ended > 0 {
		breakRate = float64(c.breaks) / float64(ended)
	}

	ropeMean, ropeStd, ropeP10, ropeP50, ropeP90 := ComputeRopeStats(ropeLengths)
	lifeMean, _, _, _, _ := ComputeRopeStats(c.ended)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Tethers: len(ropeLengths),
		Reeling: reeling,

		Attaches:   c.attaches,
		Breaks:     c.breaks,
		Releases:   c.releases,
		ReelStarts: c.reelStarts,
		ReelStops:  c.reelStops,
		BreakRate:  breakRate,

		RopeMean: ropeMean,
		RopeStd:  ropeStd,
		RopeP10:  ropeP10,
		RopeP50:  ropeP50,
		RopeP90:  ropeP90,

		TetherLifeMean: lifeMean,

		Gathers:    c.gathers,
		Explosions: c.explosions,
		Spills:     c.spills,
		Spilled:    c.spilled,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.attaches = 0
	c.breaks = 0
	c.releases = 0
	c.reelStarts = 0
	c.reelStops = 0
	c.gathers = 0
	c.explosions = 0
	c.spills = 0
	c.spilled = 0
	c.ended = c.ended[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() uint64 {
	return c.windowDurationTicks
}
