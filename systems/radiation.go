package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/event"
)

// RadiationConfig holds the radiation pass parameters.
type RadiationConfig struct {
	SourceRange    float64 // receivers beyond this ignore a source
	UpdateInterval float64 // seconds between passes
	Unit           float64 // distance unit for the inverse-square falloff
}

// RadiationSystem recomputes what every receiver gets from the sources around
// it on a fixed interval, then publishes RadiationUpdated.
type RadiationSystem struct {
	world *ecs.World
	bus   *event.Bus
	cfg   RadiationConfig

	elapsed float64

	sources   *ecs.Filter2[components.Position, components.RadiationSource]
	receivers *ecs.Filter2[components.Position, components.RadiationReceiver]

	emitters []emitter
}

type emitter struct {
	e         ecs.Entity
	pos       r2.Vec
	intensity float64
}

// NewRadiationSystem creates a radiation system.
func NewRadiationSystem(w *ecs.World, bus *event.Bus, cfg RadiationConfig) *RadiationSystem {
	if cfg.Unit <= 0 {
		cfg.Unit = 1
	}
	return &RadiationSystem{
		world:     w,
		bus:       bus,
		cfg:       cfg,
		sources:   ecs.NewFilter2[components.Position, components.RadiationSource](w),
		receivers: ecs.NewFilter2[components.Position, components.RadiationReceiver](w),
	}
}

// Update runs a pass once UpdateInterval has elapsed. Returns true when it did.
func (s *RadiationSystem) Update(dt float64) bool {
	s.elapsed += dt
	if s.elapsed < s.cfg.UpdateInterval {
		return false
	}
	s.elapsed = 0
	s.Pass()
	return true
}

// Pass recomputes every receiver immediately.
func (s *RadiationSystem) Pass() {
	s.emitters = s.emitters[:0]
	sq := s.sources.Query()
	for sq.Next() {
		pos, src := sq.Get()
		if src.Intensity <= 0 {
			continue
		}
		s.emitters = append(s.emitters, emitter{e: sq.Entity(), pos: pos.Vec(), intensity: src.Intensity})
	}

	rangeSq := s.cfg.SourceRange * s.cfg.SourceRange
	rq := s.receivers.Query()
	for rq.Next() {
		pos, recv := rq.Get()
		self := rq.Entity()
		p := pos.Vec()

		total := 0.0
		for _, em := range s.emitters {
			if em.e == self {
				continue
			}
			d := r2.Sub(p, em.pos)
			distSq := r2.Dot(d, d)
			if s.cfg.SourceRange > 0 && distSq > rangeSq {
				continue
			}
			total += Falloff(em.intensity, math.Sqrt(distSq), s.cfg.Unit)
		}
		recv.CurrentRadiation = total
	}

	event.Publish(s.bus, &RadiationUpdated{})
}

// Falloff returns the radiation received at distance from a source of the
// given intensity. Within one unit the full intensity arrives.
func Falloff(intensity, distance, unit float64) float64 {
	r := distance / unit
	return intensity / math.Max(1, r*r)
}

// ChainRadiationSystem turns received radiation into emitted radiation after
// every radiation pass and sets off the ones pushed past their threshold,
// together with every chain-radiation entity near them.
type ChainRadiationSystem struct {
	world *ecs.World

	chains    *ecs.Filter3[components.ChainRadiation, components.RadiationReceiver, components.RadiationSource]
	neighbors *ecs.Filter2[components.Position, components.ChainRadiation]

	posMap       *ecs.Map[components.Position]
	chainMap     *ecs.Map[components.ChainRadiation]
	explosiveMap *ecs.Map[components.Explosive]

	over []ecs.Entity
}

// NewChainRadiationSystem creates the system and subscribes it to radiation passes.
func NewChainRadiationSystem(w *ecs.World, bus *event.Bus) *ChainRadiationSystem {
	s := &ChainRadiationSystem{
		world:        w,
		chains:       ecs.NewFilter3[components.ChainRadiation, components.RadiationReceiver, components.RadiationSource](w),
		neighbors:    ecs.NewFilter2[components.Position, components.ChainRadiation](w),
		posMap:       ecs.NewMap[components.Position](w),
		chainMap:     ecs.NewMap[components.ChainRadiation](w),
		explosiveMap: ecs.NewMap[components.Explosive](w),
	}
	event.Subscribe(bus, s.OnRadiationUpdated)
	return s
}

// OnRadiationUpdated updates emitted intensities and triggers chain explosions.
func (s *ChainRadiationSystem) OnRadiationUpdated(*RadiationUpdated) {
	s.over = s.over[:0]
	query := s.chains.Query()
	for query.Next() {
		chain, recv, src := query.Get()
		src.Intensity = chain.BaseIntensity * (1 + recv.CurrentRadiation*chain.Coefficient)
		if src.Intensity > chain.ExplosionThreshold {
			s.over = append(s.over, query.Entity())
		}
	}

	for _, e := range s.over {
		if !s.world.Alive(e) || s.triggered(e) || !s.posMap.Has(e) {
			continue
		}
		s.chainExplode(e)
	}
}

func (s *ChainRadiationSystem) chainExplode(e ecs.Entity) {
	center := *s.posMap.Get(e)
	radius := s.chainMap.Get(e).ChainExplosionRadius

	var caught []ecs.Entity
	query := s.neighbors.Query()
	for query.Next() {
		pos, _ := query.Get()
		other := query.Entity()
		if other == e {
			continue
		}
		if r2.Norm(r2.Sub(pos.Vec(), center.Vec())) <= radius {
			caught = append(caught, other)
		}
	}

	for _, other := range caught {
		if s.triggered(other) {
			continue
		}
		// Pulled onto us for one combined blast.
		*s.posMap.Get(other) = center
		s.explode(other)
	}
	s.explode(e)
}

func (s *ChainRadiationSystem) triggered(e ecs.Entity) bool {
	return s.explosiveMap.Has(e) && s.explosiveMap.Get(e).Triggered
}

func (s *ChainRadiationSystem) explode(e ecs.Entity) {
	chain := s.chainMap.Get(e)
	ex := components.Explosive{
		TotalIntensity: chain.TotalIntensity,
		IntensitySlope: chain.IntensitySlope,
		MaxIntensity:   chain.MaxIntensity,
		Triggered:      true,
	}
	if s.explosiveMap.Has(e) {
		*s.explosiveMap.Get(e) = ex
		return
	}
	s.explosiveMap.Add(e, &ex)
}

// ExplosionSystem detonates triggered explosives: a radial impulse falling off
// with distance, a sound, and removal of the charge.
type ExplosionSystem struct {
	world   *ecs.World
	bus     *event.Bus
	timing  *Timing
	sink    effects.Sink
	physics *PhysicsSystem
	cmd     *CommandBuffer

	filter *ecs.Filter2[components.Position, components.Explosive]
	posMap *ecs.Map[components.Position]

	pending   []blast
	neighbors []Neighbor
}

type blast struct {
	e   ecs.Entity
	pos components.Position
	ex  components.Explosive
}

// NewExplosionSystem creates an explosion system.
func NewExplosionSystem(w *ecs.World, bus *event.Bus, timing *Timing, sink effects.Sink, physics *PhysicsSystem, cmd *CommandBuffer) *ExplosionSystem {
	return &ExplosionSystem{
		world:     w,
		bus:       bus,
		timing:    timing,
		sink:      sink,
		physics:   physics,
		cmd:       cmd,
		filter:    ecs.NewFilter2[components.Position, components.Explosive](w),
		posMap:    ecs.NewMap[components.Position](w),
		neighbors: make([]Neighbor, 0, MaxQueryResults),
	}
}

// Update detonates every triggered explosive. grid must hold the bodies that
// can be pushed. Returns the number of blasts.
func (s *ExplosionSystem) Update(grid *SpatialGrid) int {
	s.pending = s.pending[:0]
	query := s.filter.Query()
	for query.Next() {
		pos, ex := query.Get()
		if !ex.Triggered {
			continue
		}
		s.pending = append(s.pending, blast{e: query.Entity(), pos: *pos, ex: *ex})
		ex.Triggered = false
	}

	for _, b := range s.pending {
		s.detonate(b, grid)
	}
	return len(s.pending)
}

func (s *ExplosionSystem) detonate(b blast, grid *SpatialGrid) {
	radius := b.ex.Radius()
	if grid != nil && radius > 0 {
		s.neighbors = grid.QueryRadiusInto(s.neighbors[:0], s.world, b.pos.X, b.pos.Y, radius, b.e, s.posMap)
		for _, n := range s.neighbors {
			dist := math.Sqrt(n.DistSq)
			if dist == 0 {
				continue
			}
			mag := BlastIntensity(b.ex, dist)
			if mag <= 0 {
				continue
			}
			dir := r2.Vec{X: n.DX / dist, Y: n.DY / dist}
			s.physics.ApplyImpulse(n.E, r2.Scale(mag, dir))
		}
	}

	if s.timing.FirstTimePredicted {
		s.sink.PlaySound(effects.SoundBoom, b.e)
	}
	event.Publish(s.bus, &Exploded{Entity: b.e, Intensity: b.ex.TotalIntensity})
	if s.timing.Server {
		s.cmd.QueueDelete(b.e)
	}
}

// BlastIntensity is the blast felt at distance: MaxIntensity at the centre,
// falling by IntensitySlope per unit.
func BlastIntensity(ex components.Explosive, distance float64) float64 {
	return math.Max(0, ex.MaxIntensity-ex.IntensitySlope*distance)
}
