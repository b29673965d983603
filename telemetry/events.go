// Package telemetry provides tether activity tracking, bookmarking, and snapshots.
package telemetry

import (
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/systems"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventAttach EventType = iota
	EventBreak
	EventRelease
	EventReelStart
	EventReelStop
	EventGather
	EventExplosion
	EventSpill
)

func (t EventType) String() string {
	switch t {
	case EventAttach:
		return "attach"
	case EventBreak:
		return "break"
	case EventRelease:
		return "release"
	case EventReelStart:
		return "reel_start"
	case EventReelStop:
		return "reel_stop"
	case EventGather:
		return "gather"
	case EventExplosion:
		return "explosion"
	case EventSpill:
		return "spill"
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type     EventType
	Tick     uint64
	EntityID uint32

	// Rope length on attach, intensity on explosion, volume on spill
	Amount float64
}

// Attach subscribes the collector to the gameplay events it counts.
// Events are stamped with the tick last passed to SetTick.
func (c *Collector) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev *systems.TetherAttached) {
		c.Record(Event{Type: EventAttach, Tick: c.tick, EntityID: ev.Gun.ID(), Amount: ev.Length})
	})
	event.Subscribe(bus, func(ev *systems.TetherReleased) {
		typ := EventRelease
		if ev.Broke {
			typ = EventBreak
		}
		c.Record(Event{Type: typ, Tick: c.tick, EntityID: ev.Gun.ID()})
	})
	event.Subscribe(bus, func(ev *systems.ReelChanged) {
		typ := EventReelStop
		if ev.Reeling {
			typ = EventReelStart
		}
		c.Record(Event{Type: typ, Tick: c.tick, EntityID: ev.Gun.ID()})
	})
	event.Subscribe(bus, func(ev *systems.Gathered) {
		c.Record(Event{Type: EventGather, Tick: c.tick, EntityID: ev.Target.ID()})
	})
	event.Subscribe(bus, func(ev *systems.Exploded) {
		c.Record(Event{Type: EventExplosion, Tick: c.tick, EntityID: ev.Entity.ID(), Amount: ev.Intensity})
	})
	event.Subscribe(bus, func(ev *systems.PuddleSpilled) {
		c.Record(Event{Type: EventSpill, Tick: c.tick, EntityID: ev.Puddle.ID(), Amount: ev.Amount})
	})
}
