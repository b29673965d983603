package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
)

// GatheringSystem lets gathering projectiles harvest rocks they hit.
type GatheringSystem struct {
	world  *ecs.World
	bus    *event.Bus
	timing *Timing
	cmd    *CommandBuffer

	oreMapper *ecs.Map2[components.Position, components.Ore]

	gathMap   *ecs.Map[components.GatheringProjectile]
	projMap   *ecs.Map[components.Projectile]
	targetMap *ecs.Map[components.Gatherable]
	veinMap   *ecs.Map[components.OreVein]
	tagMap    *ecs.Map[components.Tags]
	posMap    *ecs.Map[components.Position]
}

// NewGatheringSystem creates the system and subscribes it to projectile hits.
func NewGatheringSystem(w *ecs.World, bus *event.Bus, timing *Timing, cmd *CommandBuffer) *GatheringSystem {
	s := &GatheringSystem{
		world:     w,
		bus:       bus,
		timing:    timing,
		cmd:       cmd,
		oreMapper: ecs.NewMap2[components.Position, components.Ore](w),
		gathMap:   ecs.NewMap[components.GatheringProjectile](w),
		projMap:   ecs.NewMap[components.Projectile](w),
		targetMap: ecs.NewMap[components.Gatherable](w),
		veinMap:   ecs.NewMap[components.OreVein](w),
		tagMap:    ecs.NewMap[components.Tags](w),
		posMap:    ecs.NewMap[components.Position](w),
	}
	event.Subscribe(bus, s.OnProjectileHit)
	return s
}

// OnProjectileHit gathers the target. The projectile keeps flying (the hit is
// handled) while it has gathers left.
func (s *GatheringSystem) OnProjectileHit(ev *ProjectileHit) {
	if !s.world.Alive(ev.Projectile) || !s.gathMap.Has(ev.Projectile) || !s.projMap.Has(ev.Projectile) {
		return
	}
	gp := s.gathMap.Get(ev.Projectile)
	if gp.Amount <= 0 || !s.world.Alive(ev.Target) || !s.targetMap.Has(ev.Target) {
		return
	}
	target := s.targetMap.Get(ev.Target)

	var tags *components.Tags
	if s.tagMap.Has(ev.Projectile) {
		tags = s.tagMap.Get(ev.Projectile)
	}

	// Not strong enough.
	if target.ToolWhitelist.Fail(tags) {
		return
	}

	// Too strong: the rock is gathered but its ore is destroyed.
	if s.veinMap.Has(ev.Target) {
		vein := s.veinMap.Get(ev.Target)
		if vein.GatherDestructionWhitelist.Pass(tags) {
			vein.PreventSpawning = true
		}
	}

	if target.Gathered {
		ev.Handled = true
		return
	}

	spawned := s.gather(ev.Target, target)
	gp.Amount--

	event.Publish(s.bus, &Gathered{Target: ev.Target, Projectile: ev.Projectile, Ore: target.Ore, Spawned: spawned})

	if gp.Amount <= 0 {
		return
	}
	ev.Handled = true
}

// gather marks target as gathered, drops its ore unless the vein forbids it
// and removes the rock on the authority. Reports whether ore was dropped.
func (s *GatheringSystem) gather(e ecs.Entity, target *components.Gatherable) bool {
	target.Gathered = true

	prevent := s.veinMap.Has(e) && s.veinMap.Get(e).PreventSpawning
	spawned := false
	if !prevent && target.Ore != "" && target.Yield > 0 && s.posMap.Has(e) {
		pos := *s.posMap.Get(e)
		ore := components.Ore{Kind: target.Ore, Count: target.Yield}
		s.oreMapper.NewEntity(&pos, &ore)
		spawned = true
	}

	if s.timing.Server {
		s.cmd.QueueDelete(e)
	}
	return spawned
}
