package game

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/tether"
)

// autopilot is a scripted player used to exercise the grappling loop in
// headless runs. Grapplers hook the nearest anchor in reach, reel in, hang on
// for a while and let go. Miners drill the nearest rock.
type autopilot struct {
	actor ecs.Entity
	gun   ecs.Entity
	miner bool
	rng   *rand.Rand

	cooldown int // ticks before the next decision
	hold     int // ticks left to hang on a fully reeled rope
}

func newAutopilot(actor, gun ecs.Entity, miner bool, seed int64) *autopilot {
	return &autopilot{actor: actor, gun: gun, miner: miner, rng: rand.New(rand.NewSource(seed))}
}

// runAutopilots lets every scripted player act for the coming tick.
func (g *Game) runAutopilots() {
	live := g.autopilots[:0]
	for _, a := range g.autopilots {
		if !g.world.Alive(a.actor) || !g.world.Alive(a.gun) {
			continue
		}
		live = append(live, a)
		if a.cooldown > 0 {
			a.cooldown--
			continue
		}
		if a.miner {
			g.mine(a)
		} else {
			g.swing(a)
		}
	}
	g.autopilots = live
}

func (g *Game) mine(a *autopilot) {
	target, ok := g.nearestRock(g.posMap.Get(a.actor).Vec())
	if !ok {
		a.cooldown = g.cfg.Derived.TicksPerSec * 5
		return
	}
	g.Fire(a.actor, target.X, target.Y)
	a.cooldown = g.cfg.Derived.TicksPerSec * 2
}

func (g *Game) swing(a *autopilot) {
	gun := g.gunMap.Get(a.gun)
	j, roped := g.joints.Joint(a.gun, components.GrapplingJoint)

	switch {
	case !roped && !gun.Projectile.IsSome():
		// Hook the nearest anchor within reach.
		from := g.posMap.Get(a.actor).Vec()
		target, ok := g.nearestAnchor(from, gun.RopeMaxLength*0.9)
		if !ok {
			// Nothing in reach: fire at a random point to drift towards it.
			angle := a.rng.Float64() * 2 * math.Pi
			target = r2.Add(from, r2.Scale(gun.RopeMaxLength, r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}))
		}
		g.Fire(a.actor, target.X, target.Y)
		a.cooldown = g.cfg.Derived.TicksPerSec / 2

	case roped && !gun.Reeling && !tether.FullyReeled(j.Tether, gun.Tuning):
		g.RequestReel(a.actor, true)
		a.hold = g.cfg.Derived.TicksPerSec * (1 + a.rng.Intn(3))
		a.cooldown = g.cfg.Derived.TicksPerSec / 4

	case roped && !gun.Reeling:
		if a.hold > 0 {
			a.hold--
			g.Steer(a.actor, a.rng.Float64()*2-1, a.rng.Float64()*2-1)
			return
		}
		g.Cycle(a.actor)
		a.cooldown = g.cfg.Derived.TicksPerSec
	}
}

// nearestAnchor returns the closest static body within reach that is not a rock.
func (g *Game) nearestAnchor(from r2.Vec, reach float64) (r2.Vec, bool) {
	best, bestDist := r2.Vec{}, math.Inf(1)
	query := g.bodyFilter.Query()
	for query.Next() {
		pos, body := query.Get()
		if !body.Static || g.rockMap.Has(query.Entity()) {
			continue
		}
		d := r2.Norm(r2.Sub(pos.Vec(), from))
		if d <= reach && d < bestDist {
			best, bestDist = pos.Vec(), d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// nearestRock returns the closest rock that has not been gathered yet.
func (g *Game) nearestRock(from r2.Vec) (r2.Vec, bool) {
	best, bestDist := r2.Vec{}, math.Inf(1)
	query := ecs.NewFilter2[components.Position, components.Gatherable](g.world).Query()
	for query.Next() {
		pos, rock := query.Get()
		if rock.Gathered {
			continue
		}
		if d := r2.Norm(r2.Sub(pos.Vec(), from)); d < bestDist {
			best, bestDist = pos.Vec(), d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
