package game

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/tether"
	"github.com/pthm-cable/grapple/telemetry"
)

// Step runs one authoritative (or first-time predicted) tick.
//
// Order: input, spatial grid, projectiles, grapple reel, joint solve,
// puddles, steering and integration, radiation, cleanup, telemetry. The
// reel controller must run before the joint solver so the solver sees the
// shortened rope in the same tick.
func (g *Game) Step() {
	g.perf.StartTick()

	g.perf.StartPhase(telemetry.PhaseInput)
	g.drainNetwork()
	g.runAutopilots()
	frame := g.takeInputs(g.timing.Tick + 1)
	if g.predictor != nil {
		g.predictor.Rollback()
		g.predictor.Record(frame)
		g.perf.StartPhase(telemetry.PhaseInput)
	}

	g.timing.Tick = frame.Tick
	g.timing.FirstTimePredicted = true
	g.fx.SetTick(g.timing.Tick)
	g.collector.SetTick(g.timing.Tick)
	g.applyInputs(frame)

	g.simulate(true)

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	g.recordTelemetry()
	g.broadcastState()

	g.perf.EndTick()
}

// simulate runs the systems for the current tick. Hazards (radiation,
// explosions) are authoritative-only state and are skipped on replays.
func (g *Game) simulate(hazards bool) {
	dt := g.dt

	g.perf.StartPhase(telemetry.PhaseSpatialGrid)
	g.rebuildGrid()

	g.perf.StartPhase(telemetry.PhaseProjectiles)
	g.projectiles.Update(dt, g.grid)

	g.perf.StartPhase(telemetry.PhaseGrapple)
	g.grapple.UpdateBeforeSolve(dt)

	g.perf.StartPhase(telemetry.PhaseJoints)
	g.joints.Solve(dt)

	// Puddles mark slipping bodies, so they run before steering.
	g.perf.StartPhase(telemetry.PhasePuddles)
	g.puddles.Update()

	g.perf.StartPhase(telemetry.PhasePhysics)
	g.physics.Steer(dt)
	g.physics.Integrate(dt)
	g.physics.SyncAttached()

	if hazards {
		g.perf.StartPhase(telemetry.PhaseRadiation)
		g.radiation.Update(dt)
		if n := g.explosions.Update(g.grid); n > 0 {
			g.log.Debug("explosions", "tick", g.timing.Tick, "count", n)
		}
	}

	g.perf.StartPhase(telemetry.PhaseCleanup)
	g.cmd.PlayBack()
	g.bus.Flush()
}

// rebuildGrid indexes every body for neighbour queries.
func (g *Game) rebuildGrid() {
	g.grid.Clear()
	query := g.bodyFilter.Query()
	for query.Next() {
		pos, _ := query.Get()
		g.grid.Insert(query.Entity(), pos.X, pos.Y)
	}
}

// TetherInfo describes one live grappling rope.
type TetherInfo struct {
	Gun        ecs.Entity
	Hook       ecs.Entity
	Target     ecs.Entity // what the hook is embedded in, zero if unknown
	Holder     ecs.Entity // body standing in for the gun end
	Session    string
	Reeling    bool
	RopeLength float64 // current distance between the two ends
	HookPos    r2.Vec
	HolderPos  r2.Vec
	Tether     tether.Tether
}

// Tethers returns every live grappling rope.
func (g *Game) Tethers() []TetherInfo { return g.tethers() }

func (g *Game) tethers() []TetherInfo {
	var guns []ecs.Entity
	query := g.gunFilter.Query()
	for query.Next() {
		guns = append(guns, query.Entity())
	}

	var out []TetherInfo
	for _, gun := range guns {
		j, ok := g.joints.Joint(gun, components.GrapplingJoint)
		if !ok {
			continue
		}
		hook := g.joints.Physical(j.BodyA)
		holder := g.joints.Physical(j.BodyB)
		if !g.posMap.Has(hook) || !g.posMap.Has(holder) {
			continue
		}
		info := TetherInfo{
			Gun:       gun,
			Hook:      j.BodyA,
			Holder:    holder,
			Reeling:   g.gunMap.Get(gun).Reeling,
			HookPos:   g.posMap.Get(hook).Vec(),
			HolderPos: g.posMap.Get(holder).Vec(),
			Tether:    j.Tether,
		}
		if hook != j.BodyA {
			info.Target = hook
		}
		info.RopeLength = r2.Norm(r2.Sub(info.HookPos, info.HolderPos))
		if g.holderMap.Has(gun) {
			owner := g.holderMap.Get(gun).Owner
			if g.world.Alive(owner) && g.actorMap.Has(owner) {
				info.Session = g.actorMap.Get(owner).Session
			}
		}
		out = append(out, info)
	}
	return out
}
