package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/event"
)

// PuddleSystem handles puddle volume transfers, overflow spills and slipping.
type PuddleSystem struct {
	world  *ecs.World
	bus    *event.Bus
	timing *Timing
	sink   effects.Sink

	// UnitsPerVolume scales a puddle's radius: r = sqrt(volume) * UnitsPerVolume.
	UnitsPerVolume float64

	puddleMapper *ecs.Map2[components.Position, components.Puddle]
	puddles      *ecs.Filter2[components.Position, components.Puddle]
	bodies       *ecs.Filter3[components.Position, components.Velocity, components.Body]
	puddleMap    *ecs.Map[components.Puddle]
	posMap       *ecs.Map[components.Position]

	pools []pool
	awake []ecs.Entity
}

type pool struct {
	x, y, r  float64
	slippery float64
}

// NewPuddleSystem creates a puddle system.
func NewPuddleSystem(w *ecs.World, bus *event.Bus, timing *Timing, sink effects.Sink, unitsPerVolume float64) *PuddleSystem {
	return &PuddleSystem{
		world:          w,
		bus:            bus,
		timing:         timing,
		sink:           sink,
		UnitsPerVolume: unitsPerVolume,
		puddleMapper:   ecs.NewMap2[components.Position, components.Puddle](w),
		puddles:        ecs.NewFilter2[components.Position, components.Puddle](w),
		bodies:         ecs.NewFilter3[components.Position, components.Velocity, components.Body](w),
		puddleMap:      ecs.NewMap[components.Puddle](w),
		posMap:         ecs.NewMap[components.Position](w),
	}
}

// Radius returns the footprint radius of a puddle holding volume.
func (s *PuddleSystem) Radius(volume float64) float64 {
	return math.Sqrt(math.Max(volume, 0)) * s.UnitsPerVolume
}

// Transfer adds amount (negative to drain) to the puddle. Transfers smaller
// than TransferTolerance of the current volume leave a resting puddle asleep.
// Reports whether the puddle is awake afterwards.
func (s *PuddleSystem) Transfer(e ecs.Entity, amount float64) bool {
	if !s.world.Alive(e) || !s.puddleMap.Has(e) {
		return false
	}
	p := s.puddleMap.Get(e)
	significant := math.Abs(amount) >= p.TransferTolerance*p.Volume
	p.Volume = math.Max(0, p.Volume+amount)
	if significant {
		p.Awake = true
	}
	return p.Awake
}

// Update spills awake puddles that overflow and marks bodies skidding across
// any puddle as slipping for this tick. Must run before steering.
func (s *PuddleSystem) Update() {
	s.pools = s.pools[:0]
	s.awake = s.awake[:0]

	query := s.puddles.Query()
	for query.Next() {
		pos, p := query.Get()
		if p.Awake {
			s.awake = append(s.awake, query.Entity())
		}
		if p.Volume > 0 {
			s.pools = append(s.pools, pool{x: pos.X, y: pos.Y, r: s.Radius(p.Volume), slippery: p.DefaultSlippery})
		}
	}

	s.slip()

	for _, e := range s.awake {
		s.spill(e)
		s.puddleMap.Get(e).Awake = false
	}
}

func (s *PuddleSystem) slip() {
	if len(s.pools) == 0 {
		return
	}
	query := s.bodies.Query()
	for query.Next() {
		pos, vel, body := query.Get()
		if body.Static {
			continue
		}
		speedSq := vel.X*vel.X + vel.Y*vel.Y
		for _, pl := range s.pools {
			if speedSq <= pl.slippery*pl.slippery {
				continue
			}
			dx, dy := pos.X-pl.x, pos.Y-pl.y
			reach := pl.r + body.Radius
			if dx*dx+dy*dy <= reach*reach {
				body.Slipping = true
				break
			}
		}
	}
}

// spill sheds volume above OverflowVolume into a new puddle next to e.
// Puddles at or below OverflowThreshold never spill.
func (s *PuddleSystem) spill(e ecs.Entity) {
	p := s.puddleMap.Get(e)
	if p.Volume <= p.OverflowThreshold {
		return
	}
	amount := p.Volume - p.OverflowVolume
	p.Volume = p.OverflowVolume

	src := *s.posMap.Get(e)
	spilled := *p
	spilled.Volume = amount
	spilled.Awake = false
	at := components.Position{X: src.X + s.Radius(p.Volume) + s.Radius(amount), Y: src.Y}
	s.puddleMapper.NewEntity(&at, &spilled)

	if s.timing.FirstTimePredicted {
		s.sink.PlaySound(effects.SoundSplat, e)
	}
	event.Publish(s.bus, &PuddleSpilled{Puddle: e, Amount: amount})
}
