package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
)

// GunConfig holds the per-shot projectile parameters.
type GunConfig struct {
	ProjectileRadius   float64
	ProjectileLifetime float64
	GatherAmount       int
}

// GunSystem fires guns.
type GunSystem struct {
	world *ecs.World
	bus   *event.Bus
	cfg   GunConfig

	projMapper *ecs.Map3[components.Position, components.Velocity, components.Projectile]

	gunMap  *ecs.Map[components.Gun]
	ammoMap *ecs.Map[components.BasicAmmo]
	posMap  *ecs.Map[components.Position]
	hookMap *ecs.Map[components.GrapplingProjectile]
	gathMap *ecs.Map[components.GatheringProjectile]
	tagMap  *ecs.Map[components.Tags]
}

// NewGunSystem creates a gun system.
func NewGunSystem(w *ecs.World, bus *event.Bus, cfg GunConfig) *GunSystem {
	return &GunSystem{
		world:      w,
		bus:        bus,
		cfg:        cfg,
		projMapper: ecs.NewMap3[components.Position, components.Velocity, components.Projectile](w),
		gunMap:     ecs.NewMap[components.Gun](w),
		ammoMap:    ecs.NewMap[components.BasicAmmo](w),
		posMap:     ecs.NewMap[components.Position](w),
		hookMap:    ecs.NewMap[components.GrapplingProjectile](w),
		gathMap:    ecs.NewMap[components.GatheringProjectile](w),
		tagMap:     ecs.NewMap[components.Tags](w),
	}
}

// Shoot fires gun in direction dir on behalf of user. It fails when the gun
// is out of ammo or dir is zero. Must not be called while a query is open.
func (s *GunSystem) Shoot(gun, user ecs.Entity, dir r2.Vec) (ecs.Entity, bool) {
	if !s.world.Alive(gun) || !s.gunMap.Has(gun) || !s.posMap.Has(gun) {
		return ecs.Entity{}, false
	}
	n := r2.Norm(dir)
	if n == 0 {
		return ecs.Entity{}, false
	}
	if s.ammoMap.Has(gun) {
		ammo := s.ammoMap.Get(gun)
		if ammo.Count <= 0 {
			return ecs.Entity{}, false
		}
		ammo.Change(-1)
	}

	g := *s.gunMap.Get(gun)
	pos := *s.posMap.Get(gun)
	var vel components.Velocity
	vel.Set(r2.Scale(g.Speed/n, dir))
	proj := components.Projectile{
		Shooter:  user,
		Weapon:   gun,
		Radius:   s.cfg.ProjectileRadius,
		Lifetime: s.cfg.ProjectileLifetime,
	}

	shot := s.projMapper.NewEntity(&pos, &vel, &proj)
	switch g.Kind {
	case components.ProjectileHook:
		s.hookMap.Add(shot, &components.GrapplingProjectile{Weapon: gun})
	case components.ProjectileGathering:
		s.gathMap.Add(shot, &components.GatheringProjectile{Amount: s.cfg.GatherAmount})
	}
	// Rounds carry the gun's tags so whitelists can judge them.
	if s.tagMap.Has(gun) {
		tags := components.Tags{Values: append([]string(nil), s.tagMap.Get(gun).Values...)}
		s.tagMap.Add(shot, &tags)
	}

	event.Publish(s.bus, &GunShot{Gun: gun, User: user, Ammo: []ecs.Entity{shot}})
	return shot, true
}

type projectileContact struct {
	projectile ecs.Entity
	target     ecs.Entity
	shooter    ecs.Entity
	weapon     ecs.Entity
}

// ProjectileSystem moves projectiles in flight, expires them and resolves
// their first contact with a body each tick.
type ProjectileSystem struct {
	world  *ecs.World
	bus    *event.Bus
	timing *Timing
	cmd    *CommandBuffer

	// MaxBodyRadius bounds the neighbour search around a projectile.
	MaxBodyRadius float64

	filter  *ecs.Filter3[components.Position, components.Velocity, components.Projectile]
	posMap  *ecs.Map[components.Position]
	velMap  *ecs.Map[components.Velocity]
	projMap *ecs.Map[components.Projectile]
	bodyMap *ecs.Map[components.Body]
	hookMap *ecs.Map[components.GrapplingProjectile]

	neighbors []Neighbor
	contacts  []projectileContact
	expired   []projectileContact
}

// NewProjectileSystem creates a projectile system.
func NewProjectileSystem(w *ecs.World, bus *event.Bus, timing *Timing, cmd *CommandBuffer) *ProjectileSystem {
	return &ProjectileSystem{
		world:         w,
		bus:           bus,
		timing:        timing,
		cmd:           cmd,
		MaxBodyRadius: 64,
		filter:        ecs.NewFilter3[components.Position, components.Velocity, components.Projectile](w),
		posMap:        ecs.NewMap[components.Position](w),
		velMap:        ecs.NewMap[components.Velocity](w),
		projMap:       ecs.NewMap[components.Projectile](w),
		bodyMap:       ecs.NewMap[components.Body](w),
		hookMap:       ecs.NewMap[components.GrapplingProjectile](w),
		neighbors:     make([]Neighbor, 0, MaxQueryResults),
	}
}

// Update advances projectiles by dt. grid must hold the bodies that can be hit.
func (s *ProjectileSystem) Update(dt float64, grid *SpatialGrid) {
	s.contacts = s.contacts[:0]
	s.expired = s.expired[:0]

	query := s.filter.Query()
	for query.Next() {
		pos, vel, p := query.Get()
		if p.EmbeddedIn.IsSome() || p.Lifetime <= 0 {
			continue
		}
		e := query.Entity()

		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		p.Lifetime -= dt
		if p.Lifetime <= 0 {
			p.Lifetime = 0
			s.expired = append(s.expired, projectileContact{projectile: e, weapon: p.Weapon})
			continue
		}

		if target, ok := s.firstContact(grid, pos, p); ok {
			s.contacts = append(s.contacts, projectileContact{projectile: e, target: target, shooter: p.Shooter, weapon: p.Weapon})
		}
	}

	for _, c := range s.expired {
		event.Publish(s.bus, &ProjectileExpired{Projectile: c.projectile, Weapon: c.weapon})
		s.remove(c.projectile)
	}

	for _, c := range s.contacts {
		if !s.world.Alive(c.projectile) {
			continue
		}
		if s.hookMap.Has(c.projectile) {
			s.embed(c)
			continue
		}

		hit := &ProjectileHit{Projectile: c.projectile, Target: c.target, Shooter: c.shooter}
		event.Publish(s.bus, hit)
		if !hit.Handled {
			s.remove(c.projectile)
		}
	}
}

// firstContact returns the nearest body overlapping the projectile.
func (s *ProjectileSystem) firstContact(grid *SpatialGrid, pos *components.Position, p *components.Projectile) (ecs.Entity, bool) {
	if grid == nil {
		return ecs.Entity{}, false
	}
	s.neighbors = grid.QueryRadiusInto(s.neighbors[:0], s.world, pos.X, pos.Y, p.Radius+s.MaxBodyRadius, p.Weapon, s.posMap)

	var best ecs.Entity
	bestDist := -1.0
	for _, n := range s.neighbors {
		if n.E == p.Shooter || !s.bodyMap.Has(n.E) {
			continue
		}
		reach := p.Radius + s.bodyMap.Get(n.E).Radius
		if n.DistSq > reach*reach {
			continue
		}
		if bestDist < 0 || n.DistSq < bestDist {
			best, bestDist = n.E, n.DistSq
		}
	}
	return best, bestDist >= 0
}

func (s *ProjectileSystem) embed(c projectileContact) {
	p := s.projMap.Get(c.projectile)
	p.EmbeddedIn = components.Some(c.target)
	s.velMap.Get(c.projectile).Set(r2.Vec{})
	// Embedded hooks ride on the target's origin.
	*s.posMap.Get(c.projectile) = *s.posMap.Get(c.target)

	event.Publish(s.bus, &ProjectileEmbed{
		Projectile: c.projectile,
		Weapon:     c.weapon,
		Embedded:   c.target,
		Shooter:    c.shooter,
	})
}

// remove deletes a spent projectile on the authority. Elsewhere it is parked
// until the authority's deletion arrives.
func (s *ProjectileSystem) remove(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	if s.timing.Server {
		s.cmd.QueueDelete(e)
		return
	}
	s.projMap.Get(e).Lifetime = 0
	s.velMap.Get(e).Set(r2.Vec{})
}
