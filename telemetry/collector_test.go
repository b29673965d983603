package telemetry

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/systems"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(1, 0.1)
	if c.WindowDurationTicks() != 10 {
		t.Fatalf("WindowDurationTicks = %d, want 10", c.WindowDurationTicks())
	}

	c.Record(Event{Type: EventAttach, Tick: 0, EntityID: 1, Amount: 300})
	c.Record(Event{Type: EventAttach, Tick: 2, EntityID: 2, Amount: 200})
	c.Record(Event{Type: EventReelStart, Tick: 3, EntityID: 1})
	c.Record(Event{Type: EventBreak, Tick: 5, EntityID: 1})
	c.Record(Event{Type: EventRelease, Tick: 6, EntityID: 2})
	c.Record(Event{Type: EventRelease, Tick: 6, EntityID: 99})
	c.Record(Event{Type: EventSpill, Tick: 7, Amount: 2.5})

	if c.ShouldFlush(9) {
		t.Error("window flushed early")
	}
	if !c.ShouldFlush(10) {
		t.Error("window should flush at 10 ticks")
	}

	stats := c.Flush(10, []float64{100, 300}, 1)

	if stats.Attaches != 2 || stats.Breaks != 1 || stats.Releases != 2 || stats.ReelStarts != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if math.Abs(stats.BreakRate-1.0/3) > 1e-9 {
		t.Errorf("BreakRate = %v, want 1/3", stats.BreakRate)
	}
	if stats.RopeMean != 200 || stats.Tethers != 2 || stats.Reeling != 1 {
		t.Errorf("rope mean %v tethers %d reeling %d", stats.RopeMean, stats.Tethers, stats.Reeling)
	}
	// Tether 1 lived 5 ticks, tether 2 lived 4 ticks.
	if math.Abs(stats.TetherLifeMean-0.45) > 1e-9 {
		t.Errorf("TetherLifeMean = %v, want 0.45", stats.TetherLifeMean)
	}
	if stats.Spills != 1 || stats.Spilled != 2.5 {
		t.Errorf("spills %d spilled %v", stats.Spills, stats.Spilled)
	}
	if math.Abs(stats.SimTimeSec-1) > 1e-9 {
		t.Errorf("SimTimeSec = %v, want 1", stats.SimTimeSec)
	}

	next := c.Flush(20, nil, 0)
	if next.Attaches != 0 || next.Breaks != 0 || next.TetherLifeMean != 0 || next.WindowStartTick != 10 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestCollectorAttachCountsBusEvents(t *testing.T) {
	w := ecs.NewWorld()
	gun := ecs.NewMap[components.GrapplingGun](w).NewEntity(&components.GrapplingGun{})

	bus := event.NewBus()
	c := NewCollector(10, 1.0/60)
	c.Attach(bus)

	c.SetTick(4)
	event.Publish(bus, &systems.TetherAttached{Gun: gun, Length: 250})
	event.Publish(bus, &systems.ReelChanged{Gun: gun, Reeling: true})
	c.SetTick(64)
	event.Publish(bus, &systems.ReelChanged{Gun: gun, Reeling: false})
	event.Publish(bus, &systems.TetherReleased{Gun: gun, Broke: true})
	event.Publish(bus, &systems.Exploded{Entity: gun, Intensity: 10})

	if ls := c.Lifetimes().Get(gun.ID()); ls != nil {
		t.Error("released tether is still tracked")
	}

	stats := c.Flush(600, nil, 0)
	if stats.Attaches != 1 || stats.Breaks != 1 || stats.ReelStarts != 1 || stats.ReelStops != 1 || stats.Explosions != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if math.Abs(stats.TetherLifeMean-1) > 1e-9 {
		t.Errorf("TetherLifeMean = %v, want 1s", stats.TetherLifeMean)
	}
}

func TestLifetimeTracker(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(7, 100, 300)
	lt.UpdateLength(7, 420, 130)
	lt.UpdateLength(7, 80, 160)
	lt.RecordReel(7)
	lt.RecordReel(8)

	ls := lt.Get(7)
	if ls.PeakLength != 420 || ls.ShortestRope != 80 || ls.SurvivalTicks != 60 || ls.ReelSessions != 1 {
		t.Errorf("lifetime = %+v", *ls)
	}
	if lt.Count() != 1 {
		t.Errorf("Count = %d, want 1", lt.Count())
	}
	if lt.Remove(7) == nil || lt.Count() != 0 {
		t.Error("Remove should hand back and forget the stats")
	}
}

func TestCollectorMuted(t *testing.T) {
	c := NewCollector(1, 0.1)
	c.SetMuted(true)
	c.Record(Event{Type: EventAttach, EntityID: 1, Amount: 100})
	c.SetMuted(false)
	c.Record(Event{Type: EventReelStart, EntityID: 1})

	stats := c.Flush(10, nil, 0)
	if stats.Attaches != 0 || stats.ReelStarts != 1 {
		t.Errorf("attaches %d reel starts %d, want 0 and 1", stats.Attaches, stats.ReelStarts)
	}
	if c.Lifetimes().Count() != 0 {
		t.Error("muted attach should not start a lifetime")
	}
}
