package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
)

// Bounds represents the simulation bounds.
type Bounds struct {
	Width, Height float64
}

// PhysicsConfig holds integration parameters.
type PhysicsConfig struct {
	LinearDamping float64 // fraction of velocity kept per second
	SleepSpeed    float64
	SleepTicks    int32
}

// PhysicsSystem steers actors, integrates velocities and keeps attached
// entities (held items, embedded hooks) on top of their carriers.
type PhysicsSystem struct {
	world  *ecs.World
	bounds Bounds
	cfg    PhysicsConfig

	bodies    *ecs.Filter3[components.Position, components.Velocity, components.Body]
	steering  *ecs.Filter3[components.Controller, components.Velocity, components.Body]
	contained *ecs.Filter2[components.Position, components.Contained]
	embedded  *ecs.Filter2[components.Position, components.Projectile]

	posMap  *ecs.Map[components.Position]
	velMap  *ecs.Map[components.Velocity]
	bodyMap *ecs.Map[components.Body]
	ctrlMap *ecs.Map[components.Controller]

	// CanWeightlessMove lets weightless bodies steer when it returns true.
	CanWeightlessMove func(e ecs.Entity) bool
}

// NewPhysicsSystem creates a new physics system.
func NewPhysicsSystem(w *ecs.World, bounds Bounds, cfg PhysicsConfig) *PhysicsSystem {
	return &PhysicsSystem{
		world:     w,
		bounds:    bounds,
		cfg:       cfg,
		bodies:    ecs.NewFilter3[components.Position, components.Velocity, components.Body](w),
		steering:  ecs.NewFilter3[components.Controller, components.Velocity, components.Body](w),
		contained: ecs.NewFilter2[components.Position, components.Contained](w),
		embedded:  ecs.NewFilter2[components.Position, components.Projectile](w),
		posMap:    ecs.NewMap[components.Position](w),
		velMap:    ecs.NewMap[components.Velocity](w),
		bodyMap:   ecs.NewMap[components.Body](w),
		ctrlMap:   ecs.NewMap[components.Controller](w),
	}
}

// ApplyImpulse changes e's velocity by impulse/mass and wakes it.
// Returns false when e has no movable body.
func (s *PhysicsSystem) ApplyImpulse(e ecs.Entity, impulse r2.Vec) bool {
	if !s.world.Alive(e) || !s.bodyMap.Has(e) || !s.velMap.Has(e) {
		return false
	}
	body := s.bodyMap.Get(e)
	inv := body.InvMass()
	if inv == 0 {
		return false
	}
	vel := s.velMap.Get(e)
	vel.Set(r2.Add(vel.Vec(), r2.Scale(inv, impulse)))
	body.Awake = true
	body.SleepTicks = 0
	return true
}

// Wake keeps e's body simulated this tick.
func (s *PhysicsSystem) Wake(e ecs.Entity) {
	if !s.world.Alive(e) || !s.bodyMap.Has(e) {
		return
	}
	body := s.bodyMap.Get(e)
	body.Awake = true
	body.SleepTicks = 0
}

// Steer applies controller input to actor velocities.
func (s *PhysicsSystem) Steer(dt float64) {
	var blocked []ecs.Entity
	query := s.steering.Query()
	for query.Next() {
		ctrl, vel, body := query.Get()
		if ctrl.MoveX == 0 && ctrl.MoveY == 0 {
			continue
		}
		if body.Slipping {
			continue
		}
		if body.Weightless {
			// Resolved below; the callback may read other components.
			blocked = append(blocked, query.Entity())
			continue
		}
		accelerate(vel, body, ctrl, dt)
	}

	for _, e := range blocked {
		if s.CanWeightlessMove == nil || !s.CanWeightlessMove(e) {
			continue
		}
		accelerate(s.velMap.Get(e), s.bodyMap.Get(e), s.ctrlMap.Get(e), dt)
	}
}

func accelerate(vel *components.Velocity, body *components.Body, ctrl *components.Controller, dt float64) {
	move := r2.Vec{X: ctrl.MoveX, Y: ctrl.MoveY}
	if n := r2.Norm(move); n > 1 {
		move = r2.Scale(1/n, move)
	}
	vel.Set(r2.Add(vel.Vec(), r2.Scale(ctrl.Thrust*dt, move)))
	body.Awake = true
	body.SleepTicks = 0
}

// Integrate moves awake bodies, applies damping, bounces off the world edges
// and puts slow bodies to sleep.
func (s *PhysicsSystem) Integrate(dt float64) {
	damping := math.Pow(s.cfg.LinearDamping, dt)

	query := s.bodies.Query()
	for query.Next() {
		pos, vel, body := query.Get()
		body.Slipping = false

		if body.Static || !body.Awake {
			continue
		}

		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		vel.X *= damping
		vel.Y *= damping

		// Walls on every side
		if pos.X < body.Radius {
			pos.X = body.Radius
			vel.X *= -0.3
		} else if pos.X > s.bounds.Width-body.Radius {
			pos.X = s.bounds.Width - body.Radius
			vel.X *= -0.3
		}
		if pos.Y < body.Radius {
			pos.Y = body.Radius
			vel.Y *= -0.3
		} else if pos.Y > s.bounds.Height-body.Radius {
			pos.Y = s.bounds.Height - body.Radius
			vel.Y *= -0.3
		}

		if vel.X*vel.X+vel.Y*vel.Y < s.cfg.SleepSpeed*s.cfg.SleepSpeed {
			body.SleepTicks++
			if body.SleepTicks >= s.cfg.SleepTicks {
				body.Awake = false
				vel.X, vel.Y = 0, 0
			}
		} else {
			body.SleepTicks = 0
		}
	}
}

// SyncAttached moves held items onto their holders and embedded projectiles
// onto their targets.
func (s *PhysicsSystem) SyncAttached() {
	cq := s.contained.Query()
	for cq.Next() {
		pos, c := cq.Get()
		if s.world.Alive(c.Owner) && s.posMap.Has(c.Owner) {
			*pos = *s.posMap.Get(c.Owner)
		}
	}

	eq := s.embedded.Query()
	for eq.Next() {
		pos, p := eq.Get()
		target, ok := p.EmbeddedIn.Get()
		if ok && s.world.Alive(target) && s.posMap.Has(target) {
			*pos = *s.posMap.Get(target)
		}
	}
}
