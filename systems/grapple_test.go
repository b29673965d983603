package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/tether"
)

const testDT = 1.0 / 60

var testTuning = tether.Tuning{
	ReelRate:              120,
	ReelForce:             4000,
	RopeMargin:            8,
	RopeFullyReeledMargin: 16,
}

// rig wires the grappling stack the way the game does, without rendering.
type rig struct {
	w      *ecs.World
	bus    *event.Bus
	timing *Timing
	fx     *effects.Recorder
	cmd    *CommandBuffer
	grid   *SpatialGrid

	physics     *PhysicsSystem
	joints      *JointSystem
	grapple     *GrapplingSystem
	guns        *GunSystem
	projectiles *ProjectileSystem

	bodies *ecs.Filter2[components.Position, components.Body]
}

func newRig() *rig {
	w := ecs.NewWorld()
	bus := event.NewBus()
	timing := &Timing{FrameTime: testDT, FirstTimePredicted: true, Server: true}
	fx := effects.NewRecorder(nil)
	cmd := NewCommandBuffer(w)
	physics := NewPhysicsSystem(w, Bounds{Width: 2000, Height: 2000}, PhysicsConfig{LinearDamping: 0.6, SleepSpeed: 0.5, SleepTicks: 90})
	joints := NewJointSystem(w, bus, 0.8)

	return &rig{
		w:           w,
		bus:         bus,
		timing:      timing,
		fx:          fx,
		cmd:         cmd,
		grid:        NewSpatialGrid(2000, 2000, 64),
		physics:     physics,
		joints:      joints,
		grapple:     NewGrapplingSystem(w, bus, timing, fx, joints, physics, cmd),
		guns:        NewGunSystem(w, bus, GunConfig{ProjectileRadius: 4, ProjectileLifetime: 1.5, GatherAmount: 2}),
		projectiles: NewProjectileSystem(w, bus, timing, cmd),
		bodies:      ecs.NewFilter2[components.Position, components.Body](w),
	}
}

func add[T any](w *ecs.World, e ecs.Entity, c T) {
	ecs.NewMap[T](w).Add(e, &c)
}

func get[T any](w *ecs.World, e ecs.Entity) *T {
	return ecs.NewMap[T](w).Get(e)
}

func has[T any](w *ecs.World, e ecs.Entity) bool {
	return w.Alive(e) && ecs.NewMap[T](w).Has(e)
}

func spawnAt(w *ecs.World, x, y float64) ecs.Entity {
	return ecs.NewMap[components.Position](w).NewEntity(&components.Position{X: x, Y: y})
}

// spawnActor creates an actor in combat mode holding a grappling gun with no ammo left.
func (r *rig) spawnActor(x, y float64) (actor, gun ecs.Entity) {
	actor = spawnAt(r.w, x, y)
	add(r.w, actor, components.Velocity{})
	add(r.w, actor, components.Body{Mass: 1, Radius: 12, Awake: true})
	add(r.w, actor, components.CombatMode{Active: true})
	add(r.w, actor, components.Controller{})

	gun = spawnAt(r.w, x, y)
	add(r.w, gun, components.GrapplingGun{
		Tuning:         testTuning,
		RopeMinLength:  32,
		RopeMaxLength:  640,
		RopeStiffness:  20,
		RopeBreakpoint: 400,
	})
	add(r.w, gun, components.Gun{Kind: components.ProjectileHook, Speed: 900})
	add(r.w, gun, components.BasicAmmo{Count: 1, Capacity: 1})
	add(r.w, gun, components.Contained{Owner: actor})

	add(r.w, actor, components.Hands{Active: components.Some(gun)})
	return actor, gun
}

func (r *rig) spawnAnchor(x, y float64) ecs.Entity {
	e := spawnAt(r.w, x, y)
	add(r.w, e, components.Velocity{})
	add(r.w, e, components.Body{Static: true, Radius: 16})
	return e
}

// attach fires a hook straight into target, as if it had flown there.
func (r *rig) attach(actor, gun, target ecs.Entity) ecs.Entity {
	get[components.BasicAmmo](r.w, gun).Change(-1)

	tp := *get[components.Position](r.w, target)
	hook := spawnAt(r.w, tp.X, tp.Y)
	add(r.w, hook, components.Velocity{})
	add(r.w, hook, components.Projectile{Shooter: actor, Weapon: gun, Radius: 4, EmbeddedIn: components.Some(target)})
	add(r.w, hook, components.GrapplingProjectile{Weapon: gun})

	event.Publish(r.bus, &GunShot{Gun: gun, User: actor, Ammo: []ecs.Entity{hook}})
	event.Publish(r.bus, &ProjectileEmbed{Projectile: hook, Weapon: gun, Embedded: target, Shooter: actor})
	return hook
}

func (r *rig) rebuildGrid() {
	r.grid.Clear()
	query := r.bodies.Query()
	for query.Next() {
		pos, _ := query.Get()
		r.grid.Insert(query.Entity(), pos.X, pos.Y)
	}
}

func (r *rig) tick() {
	r.timing.Tick++
	r.rebuildGrid()
	r.projectiles.Update(testDT, r.grid)
	r.grapple.UpdateBeforeSolve(testDT)
	r.joints.Solve(testDT)
	r.physics.Integrate(testDT)
	r.physics.SyncAttached()
	r.cmd.PlayBack()
}

func (r *rig) gun(e ecs.Entity) *components.GrapplingGun {
	return get[components.GrapplingGun](r.w, e)
}

func TestEmbedCreatesRope(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)

	hook := r.attach(actor, gun, anchor)

	j, ok := r.joints.Joint(gun, components.GrapplingJoint)
	if !ok {
		t.Fatal("no grappling joint after embed")
	}
	if j.BodyA != hook || j.BodyB != gun {
		t.Errorf("joint ends = (%v, %v), want hook then gun", j.BodyA, j.BodyB)
	}
	if j.MaxLength != 308 || j.Length != 300 || j.MinLength != 32 {
		t.Errorf("joint = %+v, want max 308, length 300, min 32", j.Tether)
	}
	if got := r.joints.Physical(hook); got != anchor {
		t.Errorf("hook relays to %v, want anchor", got)
	}
	if got := r.joints.Physical(gun); got != actor {
		t.Errorf("gun relays to %v, want actor", got)
	}
	if !r.grapple.CanWeightlessMove(actor) {
		t.Error("actor with a rope out should be able to move weightless")
	}
	if v, ok := r.fx.Visual(gun, effects.VisualTether); !ok || v {
		t.Errorf("tether visual = %v (set %v), want hidden", v, ok)
	}
}

func TestEmbedBeyondRopeReachBreaks(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(800, 100)

	r.attach(actor, gun, anchor)

	if _, ok := r.joints.Joint(gun, components.GrapplingJoint); ok {
		t.Error("rope created beyond max length")
	}
	if r.gun(gun).Projectile.IsSome() {
		t.Error("gun still tracks the hook")
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundBreak); n != 1 {
		t.Errorf("break sounds = %d, want 1", n)
	}
	if ammo := get[components.BasicAmmo](r.w, gun).Count; ammo != 1 {
		t.Errorf("ammo = %d, want refunded to 1", ammo)
	}
}

func TestOverExtensionReleasesWithoutImpulse(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)
	hook := r.attach(actor, gun, anchor)

	released := 0
	event.Subscribe(r.bus, func(ev *TetherReleased) {
		released++
		if !ev.Broke {
			t.Error("over-extension should count as a break")
		}
	})

	// Teleported past max length + margin (308 + 8).
	get[components.Position](r.w, actor).X = 80
	r.grapple.UpdateBeforeSolve(testDT)
	r.cmd.PlayBack()

	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}
	if v := get[components.Velocity](r.w, actor); v.X != 0 || v.Y != 0 {
		t.Errorf("actor velocity = %+v, want no impulse", *v)
	}
	if r.gun(gun).Projectile.IsSome() || r.gun(gun).Reeling {
		t.Error("gun state not cleared")
	}
	if r.w.Alive(hook) {
		t.Error("hook should be deleted by the authority")
	}
	if _, ok := r.joints.Joint(gun, components.GrapplingJoint); ok {
		t.Error("joint survived the release")
	}
	if v, _ := r.fx.Visual(gun, effects.VisualTether); !v {
		t.Error("tether visual should be shown again")
	}
}

func TestUngrappleIsIdempotent(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)
	r.attach(actor, gun, anchor)

	released := 0
	event.Subscribe(r.bus, func(*TetherReleased) { released++ })

	r.grapple.Ungrapple(gun, true)
	first := len(r.fx.Entries())
	ammo := get[components.BasicAmmo](r.w, gun).Count

	r.grapple.Ungrapple(gun, true)
	r.cmd.PlayBack()
	r.grapple.Ungrapple(gun, true)

	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}
	if got := len(r.fx.Entries()); got != first {
		t.Errorf("second release emitted %d more effects", got-first)
	}
	if got := get[components.BasicAmmo](r.w, gun).Count; got != ammo {
		t.Errorf("ammo changed from %d to %d", ammo, got)
	}
}

func TestReelRequestGating(t *testing.T) {
	tests := []struct {
		name     string
		attached bool
		combat   bool
		holding  bool
		request  bool
		start    bool
		want     bool
	}{
		{name: "start in combat", attached: true, combat: true, holding: true, request: true, want: true},
		{name: "start outside combat ignored", attached: true, combat: false, holding: true, request: true, want: false},
		{name: "stop outside combat allowed", attached: true, combat: false, holding: true, request: false, start: true, want: false},
		{name: "no rope", attached: false, combat: true, holding: true, request: true, want: false},
		{name: "gun not in hand", attached: true, combat: true, holding: false, request: true, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig()
			actor, gun := r.spawnActor(100, 100)
			anchor := r.spawnAnchor(400, 100)
			if tc.attached {
				r.attach(actor, gun, anchor)
			}
			if tc.start {
				r.grapple.SetReeling(gun, true)
			}
			get[components.CombatMode](r.w, actor).Active = tc.combat
			if !tc.holding {
				get[components.Hands](r.w, actor).Active = components.None[ecs.Entity]()
			}

			event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: tc.request})

			if got := r.gun(gun).Reeling; got != tc.want {
				t.Errorf("Reeling = %v, want %v", got, tc.want)
			}
			if live := r.fx.LiveCount(effects.SoundReel); (live == 1) != tc.want {
				t.Errorf("live reel streams = %d with Reeling %v", live, tc.want)
			}
		})
	}
}

func TestReelSoundStartsOnce(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))

	for range 3 {
		event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundReel); n != 1 {
		t.Errorf("reel sound started %d times, want 1", n)
	}

	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: false})
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: false})
	if n := r.fx.Count(effects.KindStop, effects.SoundReel); n != 1 {
		t.Errorf("reel sound stopped %d times, want 1", n)
	}
}

func TestReelingShortensAndPulls(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)
	r.attach(actor, gun, anchor)
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})

	r.grapple.UpdateBeforeSolve(1.0 / 60)

	j, _ := r.joints.Joint(gun, components.GrapplingJoint)
	if math.Abs(j.MaxLength-306) > 1e-9 {
		t.Errorf("MaxLength = %v, want 306", j.MaxLength)
	}
	if j.Length != 300 {
		t.Errorf("Length = %v, want 300", j.Length)
	}
	if v := get[components.Velocity](r.w, actor); v.X <= 0 || v.Y != 0 {
		t.Errorf("actor velocity = %+v, want pulled toward the anchor", *v)
	}
	if v := get[components.Velocity](r.w, anchor); v.X != 0 || v.Y != 0 {
		t.Errorf("static anchor moved: %+v", *v)
	}
	if !r.gun(gun).Reeling {
		t.Error("reeling stopped early")
	}
}

func TestFullyReeledStopsOnSameTick(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(160, 100)
	r.attach(actor, gun, anchor)
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})
	if !r.gun(gun).Reeling {
		t.Fatal("reeling did not start")
	}

	changes := 0
	event.Subscribe(r.bus, func(ev *ReelChanged) {
		if !ev.Reeling {
			changes++
		}
	})

	// Within min length + fully reeled margin (32 + 16).
	get[components.Position](r.w, actor).X = 115
	r.grapple.UpdateBeforeSolve(testDT)

	if r.gun(gun).Reeling {
		t.Error("reeling should stop when fully reeled")
	}
	if changes != 1 {
		t.Errorf("ReelChanged(false) published %d times, want 1", changes)
	}
	if r.fx.LiveCount(effects.SoundReel) != 0 {
		t.Error("reel sound still playing")
	}
	if _, ok := r.joints.Joint(gun, components.GrapplingJoint); !ok {
		t.Error("rope should stay attached when fully reeled")
	}
}

func TestRopeLengthInvariantWhileReeling(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(500, 100)
	r.attach(actor, gun, anchor)
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})

	for i := range 300 {
		r.tick()
		j, ok := r.joints.Joint(gun, components.GrapplingJoint)
		if !ok {
			break
		}
		if j.Length < j.MinLength || j.Length > j.MaxLength {
			t.Fatalf("tick %d: length %v outside [%v, %v]", i, j.Length, j.MinLength, j.MaxLength)
		}
	}

	if x := get[components.Position](r.w, actor).X; x <= 100 {
		t.Errorf("actor x = %v, want pulled toward the anchor", x)
	}
}

func TestMissingJoint(t *testing.T) {
	tests := []struct {
		name        string
		server      bool
		wantRelease bool
	}{
		{name: "authority releases", server: true, wantRelease: true},
		{name: "predicting peer tolerates", server: false, wantRelease: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig()
			actor, gun := r.spawnActor(100, 100)
			hook := r.attach(actor, gun, r.spawnAnchor(400, 100))
			r.timing.Server = tc.server

			// The hook end lost its joint bookkeeping.
			ecs.NewMap[components.JointSet](r.w).Remove(hook)
			r.grapple.UpdateBeforeSolve(testDT)

			if released := !r.gun(gun).Projectile.IsSome(); released != tc.wantRelease {
				t.Errorf("released = %v, want %v", released, tc.wantRelease)
			}
		})
	}
}

func TestDisabledJointBreaks(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))

	j, _ := r.joints.Joint(gun, components.GrapplingJoint)
	j.Enabled = false
	r.grapple.UpdateBeforeSolve(testDT)

	if r.gun(gun).Projectile.IsSome() {
		t.Error("disabled joint should release the rope")
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundBreak); n != 1 {
		t.Errorf("break sounds = %d, want 1", n)
	}
}

func TestFailedTetherDoesNotStopOthers(t *testing.T) {
	tests := []struct {
		name  string
		fail func(r *rig, gun, hook ecs.Entity)
	}{
		{name: "disabled joint", fail: func(r *rig, gun, _ ecs.Entity) {
			j, _ := r.joints.Joint(gun, components.GrapplingJoint)
			j.Enabled = false
		}},
		{name: "missing joint", fail: func(r *rig, _, hook ecs.Entity) {
			ecs.NewMap[components.JointSet](r.w).Remove(hook)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig()
			brokenActor, broken := r.spawnActor(100, 100)
			hook := r.attach(brokenActor, broken, r.spawnAnchor(400, 100))
			actor, gun := r.spawnActor(100, 300)
			r.attach(actor, gun, r.spawnAnchor(400, 300))
			event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})

			tc.fail(r, broken, hook)
			r.grapple.UpdateBeforeSolve(testDT)

			if r.gun(broken).Projectile.IsSome() {
				t.Error("failed tether was not released")
			}
			j, ok := r.joints.Joint(gun, components.GrapplingJoint)
			if !ok {
				t.Fatal("healthy rope lost")
			}
			if math.Abs(j.MaxLength-306) > 1e-9 {
				t.Errorf("healthy MaxLength = %v, want 306", j.MaxLength)
			}
			if !r.gun(gun).Reeling {
				t.Error("healthy gun stopped reeling")
			}
		})
	}
}

func TestReelIgnoredAfterPeerRelease(t *testing.T) {
	r := newRig()
	r.timing.Server = false
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))

	r.grapple.Ungrapple(gun, false)
	if _, ok := r.joints.Joint(gun, components.GrapplingJoint); !ok {
		t.Fatal("a peer should leave joint removal to the authority")
	}

	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})
	if r.gun(gun).Reeling {
		t.Error("reeling started with no hook out")
	}
	if n := r.fx.LiveCount(effects.SoundReel); n != 0 {
		t.Errorf("live reel sounds = %d, want 0", n)
	}
}

func TestTargetGoneBreaks(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)
	r.attach(actor, gun, anchor)

	r.w.RemoveEntity(anchor)
	r.grapple.UpdateBeforeSolve(testDT)

	if r.gun(gun).Projectile.IsSome() {
		t.Error("rope should release when the hooked target disappears")
	}
}

func TestActivateCyclesWithoutBreakCue(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))

	ev := &ActivateInWorld{Target: gun, User: actor, Complex: true}
	event.Publish(r.bus, ev)

	if !ev.Handled {
		t.Error("activation not handled")
	}
	if r.gun(gun).Projectile.IsSome() {
		t.Error("activation should let go of the hook")
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundCycle); n != 1 {
		t.Errorf("cycle sounds = %d, want 1", n)
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundBreak); n != 0 {
		t.Errorf("break sounds = %d, want 0", n)
	}
}

func TestHandDeselectStopsReeling(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})

	event.Publish(r.bus, &HandDeselected{Item: gun, User: actor})

	if r.gun(gun).Reeling {
		t.Error("deselecting the gun should stop reeling")
	}
}

func TestSideEffectsOnlyOnFirstPrediction(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	r.attach(actor, gun, r.spawnAnchor(400, 100))
	event.Publish(r.bus, &ReelRequest{Actor: actor, Reeling: true})

	r.timing.FirstTimePredicted = false
	r.grapple.Ungrapple(gun, true)
	if !r.gun(gun).Projectile.IsSome() {
		t.Error("replayed tick must not release")
	}
	if n := r.fx.Count(effects.KindPlay, effects.SoundBreak); n != 0 {
		t.Errorf("break sounds on replay = %d, want 0", n)
	}
}

func TestDifferentFramesStayAwake(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)
	r.attach(actor, gun, anchor)

	get[components.Body](r.w, anchor).Frame = 1
	get[components.Body](r.w, actor).Awake = false
	r.grapple.UpdateBeforeSolve(testDT)

	if !get[components.Body](r.w, actor).Awake || !get[components.Body](r.w, anchor).Awake {
		t.Error("bodies on different frames should be woken")
	}
}

func TestShotHookEmbedsAndTethers(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 100)
	anchor := r.spawnAnchor(400, 100)

	hook, ok := r.guns.Shoot(gun, actor, r2.Vec{X: 1})
	if !ok {
		t.Fatal("shot failed")
	}
	if get[components.BasicAmmo](r.w, gun).Count != 0 {
		t.Error("shot did not use ammo")
	}
	if _, ok := r.guns.Shoot(gun, actor, r2.Vec{X: 1}); ok {
		t.Error("second shot without ammo succeeded")
	}

	for range 40 {
		r.tick()
		if _, ok := r.joints.Joint(gun, components.GrapplingJoint); ok {
			break
		}
	}

	j, ok := r.joints.Joint(gun, components.GrapplingJoint)
	if !ok {
		t.Fatal("hook never embedded")
	}
	if j.BodyA != hook {
		t.Errorf("joint hook = %v, want %v", j.BodyA, hook)
	}
	if p := get[components.Projectile](r.w, hook); p.EmbeddedIn.Or(ecs.Entity{}) != anchor {
		t.Error("hook not embedded in the anchor")
	}
	if math.Abs(j.MaxLength-308) > 1e-9 {
		t.Errorf("MaxLength = %v, want 308", j.MaxLength)
	}
}

func TestExpiredHookRefundsAmmo(t *testing.T) {
	r := newRig()
	actor, gun := r.spawnActor(100, 1000)

	hook, ok := r.guns.Shoot(gun, actor, r2.Vec{Y: -1})
	if !ok {
		t.Fatal("shot failed")
	}
	for range 120 {
		r.tick()
	}

	if r.w.Alive(hook) {
		t.Error("expired hook should be deleted")
	}
	if r.gun(gun).Projectile.IsSome() {
		t.Error("gun still tracks an expired hook")
	}
	if get[components.BasicAmmo](r.w, gun).Count != 1 {
		t.Error("expired hook should refund ammo")
	}
}
