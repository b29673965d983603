package game

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/config"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/netplay"
	"github.com/pthm-cable/grapple/telemetry"
)

func newTestGame(t *testing.T, mutate func(*config.Config), opts Options) *Game {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scenario.Player = false
	if mutate != nil {
		mutate(cfg)
	}
	opts.Config = cfg
	g := NewGameWithOptions(opts)
	t.Cleanup(g.Unload)
	return g
}

// hookAnchor fires actor's gun at an anchor 300 units to the right and steps
// until the rope is tied.
func hookAnchor(t *testing.T, g *Game) (actor, gun, anchor ecs.Entity) {
	t.Helper()
	actor, gun = g.SpawnActor("tester", "", 400, 400, LoadoutGrapple)
	anchor = g.SpawnAnchor(700, 400)

	if !g.Fire(actor, 700, 400) {
		t.Fatal("Fire failed")
	}
	for range 60 {
		g.Step()
		if _, ok := g.joints.Joint(gun, components.GrapplingJoint); ok {
			return actor, gun, anchor
		}
	}
	t.Fatal("hook never embedded")
	return
}

func TestGrappleReelAndCycle(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	actor, gun, _ := hookAnchor(t, g)

	j, _ := g.joints.Joint(gun, components.GrapplingJoint)
	startMax := j.MaxLength
	if g.ammoMap.Get(gun).Count != 0 {
		t.Errorf("ammo = %d while the hook is out, want 0", g.ammoMap.Get(gun).Count)
	}

	g.RequestReel(actor, true)
	for range 30 {
		g.Step()
	}

	j, ok := g.joints.Joint(gun, components.GrapplingJoint)
	if !ok {
		t.Fatal("rope lost while reeling")
	}
	if j.MaxLength >= startMax {
		t.Errorf("MaxLength = %v, want below %v after reeling", j.MaxLength, startMax)
	}
	if !g.gunMap.Get(gun).Reeling {
		t.Error("gun should still be reeling")
	}
	if n := g.fx.LiveCount(effects.SoundReel); n != 1 {
		t.Errorf("live reel sounds = %d, want 1", n)
	}

	if !g.Cycle(actor) {
		t.Fatal("cycle was not handled")
	}
	g.Step()

	if _, ok := g.joints.Joint(gun, components.GrapplingJoint); ok {
		t.Error("rope still present after cycling")
	}
	if g.gunMap.Get(gun).Reeling {
		t.Error("gun still reeling after release")
	}
	if n := g.fx.LiveCount(effects.SoundReel); n != 0 {
		t.Errorf("live reel sounds = %d after release, want 0", n)
	}
	if g.ammoMap.Get(gun).Count != 1 {
		t.Errorf("ammo = %d after release, want refunded to 1", g.ammoMap.Get(gun).Count)
	}
	if len(g.Tethers()) != 0 {
		t.Errorf("Tethers() = %d, want 0", len(g.Tethers()))
	}
}

func TestReelRequestOutsideCombatIsDropped(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	actor, gun, _ := hookAnchor(t, g)

	g.ToggleCombat(actor)
	g.RequestReel(actor, true)
	g.Step()

	if g.gunMap.Get(gun).Reeling {
		t.Error("reeling started outside combat mode")
	}
}

func TestSwapHandsStopsReeling(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	actor, gun, _ := hookAnchor(t, g)

	g.RequestReel(actor, true)
	g.Step()
	if !g.gunMap.Get(gun).Reeling {
		t.Fatal("reeling did not start")
	}

	g.SwapHands(actor)
	if _, ok := g.activeGun(actor); !ok {
		t.Fatal("swap applied before the next tick")
	}
	g.Step()
	if g.gunMap.Get(gun).Reeling {
		t.Error("putting the gun away should stop reeling")
	}
	if _, ok := g.activeGun(actor); ok {
		t.Error("hand should be empty after stowing")
	}

	g.SwapHands(actor)
	g.Step()
	if item, ok := g.activeGun(actor); !ok || item != gun {
		t.Error("second swap should draw the gun again")
	}
}

func TestTelemetryCountsTetherLifecycle(t *testing.T) {
	var windows []telemetry.WindowStats
	g := newTestGame(t, nil, Options{
		StatsWindowSec: 1,
		StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	actor, _, _ := hookAnchor(t, g)

	g.RequestReel(actor, true)
	g.Step()
	g.Cycle(actor)
	for range g.cfg.Derived.TicksPerSec {
		g.Step()
	}

	var attaches, releases, reelStarts int
	for _, w := range windows {
		attaches += w.Attaches
		releases += w.Releases
		reelStarts += w.ReelStarts
	}
	if attaches != 1 || releases != 1 || reelStarts != 1 {
		t.Errorf("attaches %d releases %d reel starts %d, want 1 each", attaches, releases, reelStarts)
	}
}

func TestApplyCommands(t *testing.T) {
	g := newTestGame(t, nil, Options{})

	g.applyCommand(netplay.Command{Kind: netplay.CommandJoin, Session: "s1", Name: "ada"})
	actor, ok := g.SessionActor("s1")
	if !ok {
		t.Fatal("join did not bind an actor")
	}
	if got := g.actorMap.Get(actor).Session; got != "s1" {
		t.Errorf("actor session = %q, want s1", got)
	}

	g.applyCommand(netplay.Command{Kind: netplay.CommandReel, Session: "s1", Reeling: true})
	g.applyCommand(netplay.Command{Kind: netplay.CommandReel, Session: "nobody", Reeling: true})
	if len(g.reels) != 1 || g.reels[0].Actor != actor || !g.reels[0].Reeling {
		t.Errorf("queued reels = %+v, want one for the joined actor", g.reels)
	}

	gun, _ := g.activeGun(actor)
	g.applyCommand(netplay.Command{Kind: netplay.CommandLeave, Session: "s1"})
	g.Step()

	if g.world.Alive(actor) || g.world.Alive(gun) {
		t.Error("leaving should remove the actor and its gun")
	}
	if g.Sessions() != 0 {
		t.Errorf("Sessions() = %d, want 0", g.Sessions())
	}
}

func TestLeaveWhileRopedReleasesRope(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	actor, gun, _ := hookAnchor(t, g)
	hook, _ := g.gunMap.Get(gun).Projectile.Get()
	g.sessions["s1"] = actor

	g.applyCommand(netplay.Command{Kind: netplay.CommandLeave, Session: "s1"})
	g.Step()

	for _, e := range []ecs.Entity{actor, gun, hook} {
		if g.world.Alive(e) {
			t.Errorf("entity %v should be gone", e)
		}
	}
}

func TestReactorsChainExplode(t *testing.T) {
	g := newTestGame(t, func(c *config.Config) {
		c.Radiation.ExplosionThreshold = 0.1
		c.Radiation.UpdateInterval = 0.5
	}, Options{})

	a := g.SpawnReactor(500, 500)
	b := g.SpawnReactor(560, 500)
	actor, _ := g.SpawnActor("bystander", "", 530, 500, LoadoutGrapple)

	for range g.cfg.Derived.TicksPerSec {
		g.Step()
	}

	if g.world.Alive(a) || g.world.Alive(b) {
		t.Error("reactors should have blown up")
	}
	if v := g.velMap.Get(actor); v.X <= 0 {
		t.Errorf("bystander velocity = %+v, want pushed along +x", *v)
	}
}

func TestPredictionReplayMatchesPlainRun(t *testing.T) {
	client := func(c *config.Config) { c.Authority.Server = false }
	plain := newTestGame(t, client, Options{})
	predicted := newTestGame(t, func(c *config.Config) {
		client(c)
		c.Authority.RollbackTicks = 8
	}, Options{})

	run := func(g *Game) ecs.Entity {
		actor, _, _ := hookAnchor(t, g)
		g.RequestReel(actor, true)
		for i := range 40 {
			g.Steer(actor, 0, math.Sin(float64(i)/5))
			g.Step()
		}
		return actor
	}
	aPlain := run(plain)
	aPred := run(predicted)

	if predicted.predictor.Replays == 0 {
		t.Fatal("predictor never replayed a tick")
	}

	pp, pq := plain.posMap.Get(aPlain), predicted.posMap.Get(aPred)
	if math.Abs(pp.X-pq.X) > 1e-9 || math.Abs(pp.Y-pq.Y) > 1e-9 {
		t.Errorf("positions diverged: plain %+v, predicted %+v", *pp, *pq)
	}

	gunPlain, _ := plain.activeGun(aPlain)
	gunPred, _ := predicted.activeGun(aPred)
	jp, ok1 := plain.joints.Joint(gunPlain, components.GrapplingJoint)
	jq, ok2 := predicted.joints.Joint(gunPred, components.GrapplingJoint)
	if !ok1 || !ok2 {
		t.Fatalf("rope missing: plain %v predicted %v", ok1, ok2)
	}
	if math.Abs(jp.MaxLength-jq.MaxLength) > 1e-9 {
		t.Errorf("MaxLength diverged: %v vs %v", jp.MaxLength, jq.MaxLength)
	}

	if n := predicted.fx.LiveCount(effects.SoundReel); n != 1 {
		t.Errorf("live reel sounds = %d under prediction, want 1", n)
	}
	sp := plain.collector.Flush(plain.Tick(), nil, 0)
	sq := predicted.collector.Flush(predicted.Tick(), nil, 0)
	if sp.ReelStarts != sq.ReelStarts || sp.Attaches != sq.Attaches {
		t.Errorf("telemetry diverged: plain %+v predicted %+v", sp, sq)
	}
}

func TestPredictionReplayKeepsStanceHistory(t *testing.T) {
	client := func(c *config.Config) { c.Authority.Server = false }
	plain := newTestGame(t, client, Options{})
	predicted := newTestGame(t, func(c *config.Config) {
		client(c)
		c.Authority.RollbackTicks = 8
	}, Options{})

	// Reeling starts in combat mode, then the actor leaves combat. Replays
	// of the reel tick must still see the stance it had back then.
	run := func(g *Game) ecs.Entity {
		actor, gun, _ := hookAnchor(t, g)
		g.RequestReel(actor, true)
		g.Step()
		g.ToggleCombat(actor)
		for range 5 {
			g.Step()
		}
		if g.combatMap.Get(actor).Active {
			t.Error("combat stance not toggled off")
		}
		return gun
	}
	gunPlain := run(plain)
	gunPred := run(predicted)

	if predicted.predictor.Replays == 0 {
		t.Fatal("predictor never replayed a tick")
	}
	if rp, rq := plain.gunMap.Get(gunPlain).Reeling, predicted.gunMap.Get(gunPred).Reeling; rp != rq || !rp {
		t.Errorf("reeling: plain %v predicted %v, want both true", rp, rq)
	}
	jp, ok1 := plain.joints.Joint(gunPlain, components.GrapplingJoint)
	jq, ok2 := predicted.joints.Joint(gunPred, components.GrapplingJoint)
	if !ok1 || !ok2 {
		t.Fatalf("rope missing: plain %v predicted %v", ok1, ok2)
	}
	if math.Abs(jp.MaxLength-jq.MaxLength) > 1e-9 {
		t.Errorf("MaxLength diverged: plain %v predicted %v", jp.MaxLength, jq.MaxLength)
	}
}

func TestRestoreRewindsStanceHandsAndAmmo(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	actor, gun := g.SpawnActor("tester", "", 400, 400, LoadoutGrapple)
	state := g.Capture()

	g.ToggleCombat(actor)
	g.SwapHands(actor)
	g.Step()
	g.ammoMap.Get(gun).Change(-1)
	if g.combatMap.Get(actor).Active {
		t.Fatal("stance did not change")
	}
	if _, ok := g.activeGun(actor); ok {
		t.Fatal("gun was not stowed")
	}

	if err := g.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !g.combatMap.Get(actor).Active {
		t.Error("combat stance not rewound")
	}
	if item, ok := g.activeGun(actor); !ok || item != gun {
		t.Error("hands not rewound")
	}
	if n := g.ammoMap.Get(gun).Count; n != 1 {
		t.Errorf("ammo = %d after restore, want 1", n)
	}
}

func TestRestoreRefusesStructuralChange(t *testing.T) {
	g := newTestGame(t, nil, Options{})
	g.SpawnAnchor(100, 100)
	state := g.Capture()

	g.SpawnAnchor(200, 200)
	if err := g.Restore(state); err != ErrStructureChanged {
		t.Errorf("Restore = %v, want ErrStructureChanged", err)
	}
}

func TestHeadlessScenarioWritesOutput(t *testing.T) {
	dir := t.TempDir()
	windows := 0
	g := newTestGame(t, func(c *config.Config) {
		c.Scenario.Autopilot = true
	}, Options{
		Seed:           7,
		Scenario:       true,
		StatsWindowSec: 1,
		OutputDir:      dir,
		StatsCallback:  func(telemetry.WindowStats) { windows++ },
	})

	for range 5 * g.cfg.Derived.TicksPerSec {
		g.UpdateHeadless()
	}

	if windows != 5 {
		t.Errorf("stats windows = %d, want 5", windows)
	}
	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("telemetry.csv: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(string(data)), "\n"); lines != 5 {
		t.Errorf("telemetry.csv has %d data lines, want 5", lines)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml missing: %v", err)
	}
}

func TestPauseAndSpeed(t *testing.T) {
	g := newTestGame(t, nil, Options{StepsPerUpdate: 3})
	g.Update()
	if g.Tick() != 3 {
		t.Errorf("Tick = %d after one update, want 3", g.Tick())
	}
	g.SetPaused(true)
	g.Update()
	if g.Tick() != 3 {
		t.Error("paused game advanced")
	}
	g.SetStepsPerUpdate(1000)
	if g.StepsPerUpdate() != 64 {
		t.Errorf("StepsPerUpdate = %d, want clamped to 64", g.StepsPerUpdate())
	}
}
