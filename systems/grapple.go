package systems

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/tether"
)

// GrapplingSystem drives grappling guns: it tracks the hook a gun fired,
// creates the rope when the hook embeds, reels it in each tick before the
// joint solver runs and releases it on request, on break or on over-extension.
type GrapplingSystem struct {
	world   *ecs.World
	bus     *event.Bus
	timing  *Timing
	sink    effects.Sink
	joints  *JointSystem
	physics *PhysicsSystem
	cmd     *CommandBuffer
	log     *slog.Logger

	active *ecs.Filter2[components.GrapplingGun, components.JointSet]

	guns    *ecs.Map[components.GrapplingGun]
	hooks   *ecs.Map[components.GrapplingProjectile]
	ammo    *ecs.Map[components.BasicAmmo]
	hands   *ecs.Map[components.Hands]
	combat  *ecs.Map[components.CombatMode]
	posMap  *ecs.Map[components.Position]
	bodyMap *ecs.Map[components.Body]

	scratch []ecs.Entity
}

// NewGrapplingSystem creates the system and subscribes its handlers to bus.
func NewGrapplingSystem(w *ecs.World, bus *event.Bus, timing *Timing, sink effects.Sink, joints *JointSystem, physics *PhysicsSystem, cmd *CommandBuffer) *GrapplingSystem {
	s := &GrapplingSystem{
		world:   w,
		bus:     bus,
		timing:  timing,
		sink:    sink,
		joints:  joints,
		physics: physics,
		cmd:     cmd,
		log:     slog.Default().With("system", "grappling"),
		active:  ecs.NewFilter2[components.GrapplingGun, components.JointSet](w),
		guns:    ecs.NewMap[components.GrapplingGun](w),
		hooks:   ecs.NewMap[components.GrapplingProjectile](w),
		ammo:    ecs.NewMap[components.BasicAmmo](w),
		hands:   ecs.NewMap[components.Hands](w),
		combat:  ecs.NewMap[components.CombatMode](w),
		posMap:  ecs.NewMap[components.Position](w),
		bodyMap: ecs.NewMap[components.Body](w),
	}

	event.Subscribe(bus, s.OnGunShot)
	event.Subscribe(bus, s.OnEmbed)
	event.Subscribe(bus, s.OnActivate)
	event.Subscribe(bus, s.OnHandDeselected)
	event.Subscribe(bus, s.OnReelRequest)
	event.Subscribe(bus, s.OnJointRemoved)
	event.Subscribe(bus, s.OnProjectileExpired)

	if physics != nil {
		physics.CanWeightlessMove = s.CanWeightlessMove
	}
	return s
}

func (s *GrapplingSystem) gun(e ecs.Entity) (*components.GrapplingGun, bool) {
	if !s.world.Alive(e) || !s.guns.Has(e) {
		return nil, false
	}
	return s.guns.Get(e), true
}

// OnGunShot records the hook a grappling gun just fired and hides the loaded
// hook visual.
func (s *GrapplingSystem) OnGunShot(ev *GunShot) {
	g, ok := s.gun(ev.Gun)
	if !ok {
		return
	}
	for _, shot := range ev.Ammo {
		if !s.world.Alive(shot) || !s.hooks.Has(shot) {
			continue
		}
		// One rope per gun: a second hook replaces the first.
		g.Projectile = components.Some(shot)
	}
	s.sink.SetVisual(ev.Gun, effects.VisualTether, false)
}

// OnEmbed ties the rope when a hook sticks into something, or breaks it at
// once when the hook landed beyond the rope's reach.
func (s *GrapplingSystem) OnEmbed(ev *ProjectileEmbed) {
	if !s.timing.FirstTimePredicted {
		return
	}
	g, ok := s.gun(ev.Weapon)
	if !ok || !s.posMap.Has(ev.Weapon) || !s.posMap.Has(ev.Projectile) {
		return
	}

	distance := r2.Norm(r2.Sub(s.posMap.Get(ev.Weapon).Vec(), s.posMap.Get(ev.Projectile).Vec()))
	if distance >= g.RopeMaxLength {
		s.Ungrapple(ev.Weapon, true)
		return
	}

	t := tether.New(distance, g.RopeMinLength, g.RopeStiffness, g.RopeBreakpoint, g.Tuning)
	s.joints.CreateDistanceJoint(ev.Projectile, ev.Weapon, components.GrapplingJoint, t)
	s.joints.SetRelay(ev.Projectile, ev.Embedded)
	s.joints.RefreshRelay(ev.Weapon)

	s.log.Debug("tether attached", "gun", ev.Weapon.ID(), "hook", ev.Projectile.ID(), "target", ev.Embedded.ID(), "length", distance)
	event.Publish(s.bus, &TetherAttached{Gun: ev.Weapon, Hook: ev.Projectile, Target: ev.Embedded, Length: distance})
}

// OnActivate cycles the gun: the rope is let go without a break cue.
func (s *GrapplingSystem) OnActivate(ev *ActivateInWorld) {
	if !s.timing.FirstTimePredicted || ev.Handled || !ev.Complex {
		return
	}
	if _, ok := s.gun(ev.Target); !ok {
		return
	}
	s.sink.PlaySound(effects.SoundCycle, ev.Target)
	s.Ungrapple(ev.Target, false)
	ev.Handled = true
}

// OnHandDeselected stops reeling when the gun is put away.
func (s *GrapplingSystem) OnHandDeselected(ev *HandDeselected) {
	if _, ok := s.gun(ev.Item); ok {
		s.SetReeling(ev.Item, false)
	}
}

// OnReelRequest toggles reeling on the grappling gun in the actor's active
// hand. Starting requires combat mode; requests that fail a precondition are
// dropped.
func (s *GrapplingSystem) OnReelRequest(ev *ReelRequest) {
	if !s.world.Alive(ev.Actor) || !s.hands.Has(ev.Actor) {
		return
	}
	item, ok := s.hands.Get(ev.Actor).Active.Get()
	if !ok {
		return
	}
	g, ok := s.gun(item)
	if !ok {
		return
	}

	inCombat := s.combat.Has(ev.Actor) && s.combat.Get(ev.Actor).Active
	j, hasJoint := s.joints.Joint(item, components.GrapplingJoint)
	fully := hasJoint && tether.FullyReeled(j.Tether, g.Tuning)

	want := tether.ReelRequest(g.Reeling, ev.Reeling, inCombat, hasJoint, fully)
	s.SetReeling(item, want)
}

// OnJointRemoved deletes a hook once its rope is gone. Only the authority
// deletes entities.
func (s *GrapplingSystem) OnJointRemoved(ev *JointRemoved) {
	if !s.timing.Server || ev.ID != components.GrapplingJoint {
		return
	}
	if s.world.Alive(ev.Entity) && s.hooks.Has(ev.Entity) {
		s.cmd.QueueDelete(ev.Entity)
	}
}

// OnProjectileExpired hands the hook back when it flew off without hitting anything.
func (s *GrapplingSystem) OnProjectileExpired(ev *ProjectileExpired) {
	g, ok := s.gun(ev.Weapon)
	if !ok {
		return
	}
	if hook, ok := g.Projectile.Get(); ok && hook == ev.Projectile {
		s.Ungrapple(ev.Weapon, false)
	}
}

// CanWeightlessMove reports whether a grappling rope is relayed onto actor,
// letting it pull itself along while floating.
func (s *GrapplingSystem) CanWeightlessMove(actor ecs.Entity) bool {
	for _, relayed := range s.joints.Relayed(actor) {
		if _, ok := s.joints.Joint(relayed, components.GrapplingJoint); ok {
			return true
		}
	}
	return false
}

// SetReeling starts or stops reeling. The flag is forced off while the gun has
// no rope or the rope is fully reeled. The reel sound is started at most once
// and only stopped on the first prediction of a tick.
func (s *GrapplingSystem) SetReeling(e ecs.Entity, value bool) {
	g, ok := s.gun(e)
	if !ok {
		return
	}

	j, hasJoint := s.joints.Joint(e, components.GrapplingJoint)
	fully := hasJoint && tether.FullyReeled(j.Tether, g.Tuning)
	value = tether.ResolveReeling(value, hasJoint, fully)
	// A released hook can leave the joint behind until the authority removes it.
	value = value && g.Projectile.IsSome()

	if g.Reeling == value {
		return
	}

	if value {
		if !g.Stream.IsSome() && s.timing.FirstTimePredicted {
			g.Stream = components.Some(s.sink.PlaySound(effects.SoundReel, e))
		}
	} else {
		s.stopStream(g)
	}

	g.Reeling = value
	event.Publish(s.bus, &ReelChanged{Gun: e, Reeling: value})
}

func (s *GrapplingSystem) stopStream(g *components.GrapplingGun) {
	stream, ok := g.Stream.Get()
	if !ok || !s.timing.FirstTimePredicted {
		return
	}
	s.sink.StopSound(stream)
	g.Stream = components.None[effects.Stream]()
}

// Ungrapple lets go of the gun's hook: the rope is severed, the hook deleted
// (on the authority) and the ammo refunded. isBreak plays the snap sound.
// Calling it on a gun with no hook out does nothing.
func (s *GrapplingSystem) Ungrapple(e ecs.Entity, isBreak bool) {
	if !s.timing.FirstTimePredicted {
		return
	}
	g, ok := s.gun(e)
	if !ok {
		return
	}
	hook, ok := g.Projectile.Get()
	if !ok {
		return
	}

	if isBreak {
		s.sink.PlaySound(effects.SoundBreak, e)
	}
	s.sink.SetVisual(e, effects.VisualTether, true)

	// Cleared before any joint removal so re-entrant handlers see the gun empty.
	g.Projectile = components.None[ecs.Entity]()
	s.SetReeling(e, false)

	if s.ammo.Has(e) {
		s.ammo.Get(e).Change(1)
	}

	s.log.Debug("tether released", "gun", e.ID(), "hook", hook.ID(), "break", isBreak)
	event.Publish(s.bus, &TetherReleased{Gun: e, Broke: isBreak})

	if s.timing.Server {
		s.joints.RemoveJoint(e, components.GrapplingJoint)
		if s.world.Alive(hook) {
			s.cmd.QueueDelete(hook)
		}
	}
}

// UpdateBeforeSolve runs the reel controller for every gun with a rope out.
// A gun whose rope cannot be evaluated is released and the loop moves on.
func (s *GrapplingSystem) UpdateBeforeSolve(dt float64) {
	s.scratch = s.scratch[:0]
	query := s.active.Query()
	for query.Next() {
		s.scratch = append(s.scratch, query.Entity())
	}

	for _, e := range s.scratch {
		s.update(e, dt)
	}
}

func (s *GrapplingSystem) update(e ecs.Entity, dt float64) {
	g, ok := s.gun(e)
	if !ok {
		return
	}

	j, ok := s.joints.Joint(e, components.GrapplingJoint)
	var hookSet *components.JointSet
	if ok {
		hookSet, ok = s.joints.Set(j.BodyA)
	}
	if !ok {
		// A predicting peer may simply not have received the joint yet.
		if s.timing.Server {
			s.log.Debug("grappling joint missing", "gun", e.ID())
			s.Ungrapple(e, true)
		} else if g.Reeling {
			s.SetReeling(e, false)
		}
		return
	}

	if !j.Enabled {
		s.log.Debug("grappling joint disabled", "gun", e.ID())
		s.Ungrapple(e, true)
		return
	}

	if r, ok := hookSet.Relay.Get(); ok && !s.world.Alive(r) {
		s.log.Debug("hook target gone", "gun", e.ID())
		s.Ungrapple(e, true)
		return
	}

	hook := s.joints.Physical(j.BodyA)
	holder := s.joints.Physical(j.BodyB)
	if !s.posMap.Has(hook) || !s.posMap.Has(holder) {
		s.log.Debug("anchor missing", "gun", e.ID())
		s.Ungrapple(e, true)
		return
	}

	outerA := s.joints.OuterContainer(hook)
	outerB := s.joints.OuterContainer(holder)
	if s.frame(outerA) != s.frame(outerB) {
		s.physics.Wake(outerA)
		s.physics.Wake(outerB)
	}

	res := tether.Step(tether.Input{
		AnchorA:   s.posMap.Get(hook).Vec(),
		AnchorB:   s.posMap.Get(holder).Vec(),
		Tether:    j.Tether,
		Reeling:   g.Reeling,
		Tuning:    g.Tuning,
		FrameTime: dt,
	})

	switch res.Phase {
	case tether.PhaseBroken:
		s.log.Debug("rope over-extended", "gun", e.ID(), "length", res.RopeLength)
		s.Ungrapple(e, true)
		return
	case tether.PhaseAttached:
		j.Tether = res.Tether
		s.stopStream(g)
		return
	}

	j.Tether = res.Tether
	if !res.Reeling {
		s.SetReeling(e, false)
		return
	}
	if res.Pulled {
		s.physics.ApplyImpulse(outerA, res.ImpulseA)
		s.physics.ApplyImpulse(outerB, res.ImpulseB)
	}
}

func (s *GrapplingSystem) frame(e ecs.Entity) uint16 {
	if !s.bodyMap.Has(e) {
		return 0
	}
	return s.bodyMap.Get(e).Frame
}
