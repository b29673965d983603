package game

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/tether"
)

// Body sizes
const (
	actorRadius   = 12.0
	anchorRadius  = 16.0
	rockRadius    = 20.0
	reactorRadius = 24.0
	actorMass     = 1.0
	actorThrust   = 600.0
)

// ActorLoadout selects the item an actor spawns holding.
type ActorLoadout uint8

const (
	LoadoutGrapple ActorLoadout = iota
	LoadoutDrill
)

// SpawnActor creates an actor at (x, y) holding a gun of the given loadout and
// returns the actor and its gun. Must not be called while a query is open.
func (g *Game) SpawnActor(name, session string, x, y float64, loadout ActorLoadout) (actor, gun ecs.Entity) {
	pos := components.Position{X: x, Y: y}
	actor = ecs.NewMap5[components.Position, components.Velocity, components.Body, components.Controller, components.CombatMode](g.world).NewEntity(
		&pos,
		&components.Velocity{},
		&components.Body{Mass: actorMass, Radius: actorRadius, Awake: true, Weightless: g.cfg.Scenario.Weightless},
		&components.Controller{Thrust: actorThrust},
		&components.CombatMode{Active: true},
	)
	g.actorMap.Add(actor, &components.Actor{Name: name, Session: session})

	switch loadout {
	case LoadoutDrill:
		gun = g.spawnDrill(pos, actor)
	default:
		gun = g.spawnGrapplingGun(pos, actor)
	}
	g.handsMap.Add(actor, &components.Hands{Active: components.Some(gun)})
	return actor, gun
}

func (g *Game) spawnGrapplingGun(pos components.Position, owner ecs.Entity) ecs.Entity {
	gc := g.cfg.Grapple
	gun := ecs.NewMap4[components.Position, components.Gun, components.BasicAmmo, components.Contained](g.world).NewEntity(
		&pos,
		&components.Gun{Kind: components.ProjectileHook, Speed: gc.ProjectileSpeed},
		&components.BasicAmmo{Count: gc.Ammo, Capacity: gc.Ammo},
		&components.Contained{Owner: owner},
	)
	g.gunMap.Add(gun, &components.GrapplingGun{
		Tuning: tether.Tuning{
			ReelRate:              gc.ReelRate,
			ReelForce:             gc.ReelForce,
			RopeMargin:            gc.RopeMargin,
			RopeFullyReeledMargin: gc.RopeFullyReeledMargin,
		},
		RopeMinLength:  gc.RopeMinLength,
		RopeMaxLength:  gc.RopeMaxLength,
		RopeStiffness:  gc.RopeStiffness,
		RopeBreakpoint: gc.RopeBreakpoint,
	})
	return gun
}

func (g *Game) spawnDrill(pos components.Position, owner ecs.Entity) ecs.Entity {
	drill := ecs.NewMap3[components.Position, components.Gun, components.Contained](g.world).NewEntity(
		&pos,
		&components.Gun{Kind: components.ProjectileGathering, Speed: g.cfg.Gathering.ProjectileSpeed},
		&components.Contained{Owner: owner},
	)
	ecs.NewMap[components.Tags](g.world).Add(drill, &components.Tags{Values: []string{"drill"}})
	return drill
}

// SpawnAnchor creates a static body hooks can embed in.
func (g *Game) SpawnAnchor(x, y float64) ecs.Entity {
	return g.spawnStatic(x, y, anchorRadius)
}

// SpawnRock creates a gatherable rock. Drills gather it; overpenetrating
// rounds gather it without dropping ore.
func (g *Game) SpawnRock(x, y float64, ore string, yield int) ecs.Entity {
	e := g.spawnStatic(x, y, rockRadius)
	g.rockMap.Add(e, &components.Gatherable{
		ToolWhitelist: &components.Whitelist{Tags: []string{"drill"}},
		Ore:           ore,
		Yield:         yield,
	})
	ecs.NewMap[components.OreVein](g.world).Add(e, &components.OreVein{
		GatherDestructionWhitelist: &components.Whitelist{Tags: []string{"overpen"}},
	})
	return e
}

// SpawnReactor creates a chain-radiation source with the configured tuning.
func (g *Game) SpawnReactor(x, y float64) ecs.Entity {
	rc := g.cfg.Radiation
	e := g.spawnStatic(x, y, reactorRadius)
	g.sourceMap.Add(e, &components.RadiationSource{Intensity: rc.BaseIntensity})
	ecs.NewMap[components.RadiationReceiver](g.world).Add(e, &components.RadiationReceiver{})
	g.chainMap.Add(e, &components.ChainRadiation{
		BaseIntensity:        rc.BaseIntensity,
		Coefficient:          rc.Coefficient,
		ExplosionThreshold:   rc.ExplosionThreshold,
		TotalIntensity:       rc.TotalIntensity,
		IntensitySlope:       rc.IntensitySlope,
		MaxIntensity:         rc.MaxIntensity,
		ChainExplosionRadius: rc.ChainExplosionRadius,
	})
	return e
}

// SpawnPuddle creates a puddle holding volume. Puddles start awake so an
// overfull one spills on its first update.
func (g *Game) SpawnPuddle(x, y, volume float64) ecs.Entity {
	pc := g.cfg.Puddle
	return ecs.NewMap2[components.Position, components.Puddle](g.world).NewEntity(
		&components.Position{X: x, Y: y},
		&components.Puddle{
			Volume:            volume,
			OverflowVolume:    pc.OverflowVolume,
			OverflowThreshold: pc.OverflowThreshold,
			TransferTolerance: pc.TransferTolerance,
			DefaultSlippery:   pc.DefaultSlippery,
			Awake:             true,
		},
	)
}

func (g *Game) spawnStatic(x, y, radius float64) ecs.Entity {
	return ecs.NewMap3[components.Position, components.Velocity, components.Body](g.world).NewEntity(
		&components.Position{X: x, Y: y},
		&components.Velocity{},
		&components.Body{Static: true, Radius: radius},
	)
}

// spawnScenario fills the world with the configured demo layout.
func (g *Game) spawnScenario() {
	sc := g.cfg.Scenario
	w, h := g.cfg.Derived.WorldW, g.cfg.Derived.WorldH

	for range sc.Anchors {
		x, y := g.randomPoint(anchorRadius * 4)
		g.SpawnAnchor(x, y)
	}
	for range sc.Rocks {
		x, y := g.randomPoint(rockRadius * 4)
		g.SpawnRock(x, y, "iron", 1+g.rng.Intn(4))
	}

	// Reactors sit in a ring tight enough to chain.
	if sc.Reactors > 0 {
		cx, cy := g.randomPoint(g.cfg.Radiation.ChainExplosionRadius)
		ring := g.cfg.Radiation.ChainExplosionRadius * 0.6
		for i := range sc.Reactors {
			a := 2 * math.Pi * float64(i) / float64(sc.Reactors)
			g.SpawnReactor(clampTo(cx+ring*math.Cos(a), reactorRadius, w-reactorRadius), clampTo(cy+ring*math.Sin(a), reactorRadius, h-reactorRadius))
		}
	}

	for range sc.Puddles {
		x, y := g.randomPoint(64)
		volume := g.cfg.Puddle.OverflowVolume * (0.5 + g.rng.Float64())
		g.SpawnPuddle(x, y, volume)
	}

	if sc.Player {
		g.player, _ = g.SpawnActor("player", "", w/2, h/2, LoadoutGrapple)
	}

	if sc.Autopilot {
		x, y := g.randomPoint(64)
		actor, gun := g.SpawnActor("pilot", "", x, y, LoadoutGrapple)
		g.autopilots = append(g.autopilots, newAutopilot(actor, gun, false, g.rng.Int63()))

		x, y = g.randomPoint(64)
		actor, gun = g.SpawnActor("miner", "", x, y, LoadoutDrill)
		g.autopilots = append(g.autopilots, newAutopilot(actor, gun, true, g.rng.Int63()))
	}

	g.log.Info("scenario spawned",
		"anchors", sc.Anchors,
		"rocks", sc.Rocks,
		"reactors", sc.Reactors,
		"puddles", sc.Puddles,
		"autopilot", sc.Autopilot,
	)
}

// randomPoint returns a point at least margin away from every world edge.
func (g *Game) randomPoint(margin float64) (x, y float64) {
	w, h := g.cfg.Derived.WorldW, g.cfg.Derived.WorldH
	margin = math.Min(margin, math.Min(w, h)/4)
	return margin + g.rng.Float64()*(w-2*margin), margin + g.rng.Float64()*(h-2*margin)
}

func clampTo(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
