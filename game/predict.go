package game

import (
	"errors"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/tether"
)

// ErrStructureChanged is returned when a snapshot cannot be restored because
// entities or ropes were created or removed since it was taken.
var ErrStructureChanged = errors.New("world structure changed since snapshot")

// WorldState is the rewindable part of the world: positions, velocities,
// bodies, projectiles, hands and combat stance, gun reel and ammo state, and
// rope lengths. Sound streams are
// effect handles rather than simulation state and are never rewound.
type WorldState struct {
	Tick     uint64
	Entities []entityState
	Guns     []gunState
	Ropes    []ropeState
}

type entityState struct {
	e       ecs.Entity
	pos     components.Position
	vel     components.Velocity
	body    components.Body
	proj    components.Projectile
	hands   components.Hands
	combat  components.CombatMode
	hasVel  bool
	hasBody bool
	hasProj bool

	hasHands  bool
	hasCombat bool
}

type gunState struct {
	e       ecs.Entity
	gun     components.GrapplingGun
	ammo    components.BasicAmmo
	hasAmmo bool
}

type ropeState struct {
	gun    ecs.Entity
	tether tether.Tether
}

// Capture records the current world state.
func (g *Game) Capture() WorldState {
	s := WorldState{Tick: g.timing.Tick}

	query := ecs.NewFilter1[components.Position](g.world).Query()
	for query.Next() {
		e := query.Entity()
		st := entityState{e: e, pos: *query.Get()}
		if g.velMap.Has(e) {
			st.vel, st.hasVel = *g.velMap.Get(e), true
		}
		if g.bodyMap.Has(e) {
			st.body, st.hasBody = *g.bodyMap.Get(e), true
		}
		if g.projMap.Has(e) {
			st.proj, st.hasProj = *g.projMap.Get(e), true
		}
		if g.handsMap.Has(e) {
			st.hands, st.hasHands = *g.handsMap.Get(e), true
		}
		if g.combatMap.Has(e) {
			st.combat, st.hasCombat = *g.combatMap.Get(e), true
		}
		s.Entities = append(s.Entities, st)
	}

	gq := g.gunFilter.Query()
	for gq.Next() {
		s.Guns = append(s.Guns, gunState{e: gq.Entity(), gun: *gq.Get()})
	}
	for i := range s.Guns {
		gs := &s.Guns[i]
		if g.ammoMap.Has(gs.e) {
			gs.ammo, gs.hasAmmo = *g.ammoMap.Get(gs.e), true
		}
		if j, ok := g.joints.Joint(gs.e, components.GrapplingJoint); ok {
			s.Ropes = append(s.Ropes, ropeState{gun: gs.e, tether: j.Tether})
		}
	}
	return s
}

// Restore writes a captured state back. It refuses when the set of
// positioned entities or ropes differs from the snapshot, leaving the world
// untouched.
func (g *Game) Restore(s WorldState) error {
	if err := g.sameStructure(s); err != nil {
		return err
	}

	for _, st := range s.Entities {
		*g.posMap.Get(st.e) = st.pos
		if st.hasVel {
			*g.velMap.Get(st.e) = st.vel
		}
		if st.hasBody {
			*g.bodyMap.Get(st.e) = st.body
		}
		if st.hasProj {
			*g.projMap.Get(st.e) = st.proj
		}
		if st.hasHands {
			*g.handsMap.Get(st.e) = st.hands
		}
		if st.hasCombat {
			*g.combatMap.Get(st.e) = st.combat
		}
	}
	for _, gs := range s.Guns {
		gun := g.gunMap.Get(gs.e)
		stream := gun.Stream
		*gun = gs.gun
		gun.Stream = stream
		if gs.hasAmmo {
			*g.ammoMap.Get(gs.e) = gs.ammo
		}
	}
	for _, r := range s.Ropes {
		j, _ := g.joints.Joint(r.gun, components.GrapplingJoint)
		j.Tether = r.tether
	}
	g.timing.Tick = s.Tick
	return nil
}

func (g *Game) sameStructure(s WorldState) error {
	count := 0
	query := ecs.NewFilter1[components.Position](g.world).Query()
	for query.Next() {
		count++
	}
	if count != len(s.Entities) {
		return ErrStructureChanged
	}
	for _, st := range s.Entities {
		if !g.world.Alive(st.e) ||
			st.hasVel != g.velMap.Has(st.e) ||
			st.hasBody != g.bodyMap.Has(st.e) ||
			st.hasProj != g.projMap.Has(st.e) ||
			st.hasHands != g.handsMap.Has(st.e) ||
			st.hasCombat != g.combatMap.Has(st.e) {
			return ErrStructureChanged
		}
	}

	ropes := 0
	for _, gs := range s.Guns {
		if !g.world.Alive(gs.e) || !g.gunMap.Has(gs.e) || gs.hasAmmo != g.ammoMap.Has(gs.e) {
			return ErrStructureChanged
		}
		if _, ok := g.joints.Joint(gs.e, components.GrapplingJoint); ok {
			ropes++
		}
	}
	if ropes != len(s.Ropes) {
		return ErrStructureChanged
	}
	for _, r := range s.Ropes {
		if _, ok := g.joints.Joint(r.gun, components.GrapplingJoint); !ok {
			return ErrStructureChanged
		}
	}
	return nil
}

// Predictor keeps the last few ticks of input and re-simulates them every
// tick from the oldest kept state, the way a predicting client catches up
// after a correction. Replayed ticks run with FirstTimePredicted unset so no
// sound, visual or rope creation happens twice, and telemetry is muted.
type Predictor struct {
	g       *Game
	depth   int
	history []predictedTick

	Replays int // ticks re-simulated so far
	Resyncs int // times the history was dropped after a structural change
	LastErr error
}

type predictedTick struct {
	state WorldState
	input InputFrame
}

// NewPredictor creates a predictor that replays up to depth ticks.
func NewPredictor(g *Game, depth int) *Predictor {
	return &Predictor{g: g, depth: max(depth, 1)}
}

// Record stores the state before frame runs together with the frame.
func (p *Predictor) Record(frame InputFrame) {
	p.history = append(p.history, predictedTick{state: p.g.Capture(), input: frame})
	if len(p.history) > p.depth {
		p.history = p.history[len(p.history)-p.depth:]
	}
}

// Rollback rewinds to the oldest recorded state and re-runs every recorded
// tick. When the world changed structurally the history is dropped and
// prediction starts over from the current state.
func (p *Predictor) Rollback() {
	if len(p.history) == 0 {
		return
	}
	g := p.g
	now := g.timing.Tick

	if err := g.Restore(p.history[0].state); err != nil {
		p.LastErr = err
		p.Resyncs++
		p.history = p.history[:0]
		return
	}

	g.timing.FirstTimePredicted = false
	g.collector.SetMuted(true)
	for _, h := range p.history {
		g.timing.Tick = h.input.Tick
		g.applyInputs(h.input)
		g.simulate(false)
		g.perf.CountReplay()
		p.Replays++
	}
	g.collector.SetMuted(false)
	g.timing.FirstTimePredicted = true
	g.timing.Tick = now
}

// Len returns the number of recorded ticks.
func (p *Predictor) Len() int { return len(p.history) }
