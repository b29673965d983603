package systems

import (
	"cmp"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/tether"
)

// JointSystem owns distance joints: creation, removal, relays and a small
// positional solver run after the grapple controller each tick.
type JointSystem struct {
	world *ecs.World
	bus   *event.Bus

	// Fraction caps the positional correction applied per tick.
	Fraction float64

	filter       *ecs.Filter1[components.JointSet]
	sets         *ecs.Map[components.JointSet]
	relayTargets *ecs.Map[components.JointRelayTarget]
	contained    *ecs.Map[components.Contained]
	posMap       *ecs.Map[components.Position]
	velMap       *ecs.Map[components.Velocity]
	bodyMap      *ecs.Map[components.Body]

	scratch []*components.DistanceJoint
}

// NewJointSystem creates a joint system.
func NewJointSystem(w *ecs.World, bus *event.Bus, fraction float64) *JointSystem {
	return &JointSystem{
		world:        w,
		bus:          bus,
		Fraction:     fraction,
		filter:       ecs.NewFilter1[components.JointSet](w),
		sets:         ecs.NewMap[components.JointSet](w),
		relayTargets: ecs.NewMap[components.JointRelayTarget](w),
		contained:    ecs.NewMap[components.Contained](w),
		posMap:       ecs.NewMap[components.Position](w),
		velMap:       ecs.NewMap[components.Velocity](w),
		bodyMap:      ecs.NewMap[components.Body](w),
	}
}

// Set returns e's joint set, if it has one.
func (s *JointSystem) Set(e ecs.Entity) (*components.JointSet, bool) {
	if !s.world.Alive(e) || !s.sets.Has(e) {
		return nil, false
	}
	return s.sets.Get(e), true
}

// Joint returns the joint id on e.
func (s *JointSystem) Joint(e ecs.Entity, id string) (*components.DistanceJoint, bool) {
	set, ok := s.Set(e)
	if !ok {
		return nil, false
	}
	return set.Get(id)
}

func (s *JointSystem) ensureSet(e ecs.Entity) *components.JointSet {
	if !s.sets.Has(e) {
		s.sets.Add(e, &components.JointSet{Joints: make(map[string]*components.DistanceJoint)})
	}
	set := s.sets.Get(e)
	if set.Joints == nil {
		set.Joints = make(map[string]*components.DistanceJoint)
	}
	return set
}

// CreateDistanceJoint links a and b. An existing joint with the same id is replaced.
// Must not be called while a query is open.
func (s *JointSystem) CreateDistanceJoint(a, b ecs.Entity, id string, t tether.Tether) *components.DistanceJoint {
	s.RemoveJoint(b, id)
	s.RemoveJoint(a, id)

	j := &components.DistanceJoint{ID: id, BodyA: a, BodyB: b, Tether: t}
	s.ensureSet(a).Joints[id] = j
	s.ensureSet(b).Joints[id] = j
	return j
}

// RemoveJoint removes joint id from e and its other end and publishes
// JointRemoved for both ends. Removing a missing joint is a no-op.
// Joint sets left empty are removed together with their relay.
func (s *JointSystem) RemoveJoint(e ecs.Entity, id string) bool {
	j, ok := s.Joint(e, id)
	if !ok {
		return false
	}

	ends := [2]ecs.Entity{j.BodyA, j.BodyB}
	for _, end := range ends {
		set, ok := s.Set(end)
		if !ok || set.Joints[id] != j {
			continue
		}
		delete(set.Joints, id)
		if len(set.Joints) == 0 {
			s.clearRelay(end, set)
			s.sets.Remove(end)
		}
	}

	event.Publish(s.bus, &JointRemoved{Entity: j.BodyA, Other: j.BodyB, ID: id})
	event.Publish(s.bus, &JointRemoved{Entity: j.BodyB, Other: j.BodyA, ID: id})
	return true
}

// SetRelay makes relay stand in for e's body in the solver.
func (s *JointSystem) SetRelay(e, relay ecs.Entity) {
	set := s.ensureSet(e)
	s.clearRelay(e, set)
	set.Relay = components.Some(relay)
	if !s.world.Alive(relay) {
		return
	}
	if !s.relayTargets.Has(relay) {
		s.relayTargets.Add(relay, &components.JointRelayTarget{})
	}
	s.relayTargets.Get(relay).Add(e)
}

// RefreshRelay relays e to the entity holding it, or clears the relay.
func (s *JointSystem) RefreshRelay(e ecs.Entity) {
	if s.world.Alive(e) && s.contained.Has(e) {
		s.SetRelay(e, s.contained.Get(e).Owner)
		return
	}
	if set, ok := s.Set(e); ok {
		s.clearRelay(e, set)
	}
}

func (s *JointSystem) clearRelay(e ecs.Entity, set *components.JointSet) {
	old, ok := set.Relay.Get()
	set.Relay = components.None[ecs.Entity]()
	if ok && s.world.Alive(old) && s.relayTargets.Has(old) {
		s.relayTargets.Get(old).Remove(e)
	}
}

// Relayed returns the entities relaying onto target.
func (s *JointSystem) Relayed(target ecs.Entity) []ecs.Entity {
	if !s.world.Alive(target) || !s.relayTargets.Has(target) {
		return nil
	}
	return s.relayTargets.Get(target).Relayed
}

// Physical returns the entity whose body stands in for e.
func (s *JointSystem) Physical(e ecs.Entity) ecs.Entity {
	if set, ok := s.Set(e); ok {
		if r, ok := set.Relay.Get(); ok && s.world.Alive(r) {
			return r
		}
	}
	return e
}

// OuterContainer walks Contained links up to the outermost holder.
func (s *JointSystem) OuterContainer(e ecs.Entity) ecs.Entity {
	for range 8 {
		if !s.world.Alive(e) || !s.contained.Has(e) {
			return e
		}
		owner := s.contained.Get(e).Owner
		if !s.world.Alive(owner) {
			return e
		}
		e = owner
	}
	return e
}

// Solve enforces joint limits on the bodies standing in for each end.
// A correction larger than the joint's breakpoint disables the joint instead.
func (s *JointSystem) Solve(dt float64) {
	s.scratch = s.scratch[:0]
	query := s.filter.Query()
	for query.Next() {
		e := query.Entity()
		set := query.Get()
		start := len(s.scratch)
		for _, j := range set.Joints {
			// Each joint is stored on both ends; solve it from BodyB only.
			if j.BodyB == e {
				s.scratch = append(s.scratch, j)
			}
		}
		// Map order is random; replays need a fixed order.
		slices.SortFunc(s.scratch[start:], func(a, b *components.DistanceJoint) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}

	frac := s.Fraction
	for _, j := range s.scratch {
		if !j.Enabled {
			continue
		}
		s.solve(j, dt, frac)
	}
}

func (s *JointSystem) solve(j *components.DistanceJoint, dt, maxFrac float64) {
	a := s.OuterContainer(s.Physical(j.BodyA))
	b := s.OuterContainer(s.Physical(j.BodyB))
	if a == b || !s.hasPosition(a) || !s.hasPosition(b) {
		return
	}

	pa, pb := s.posMap.Get(a), s.posMap.Get(b)
	d := r2.Sub(pa.Vec(), pb.Vec())
	dist := r2.Norm(d)
	if dist == 0 {
		return
	}

	var violation float64
	switch {
	case dist > j.MaxLength:
		violation = dist - j.MaxLength
	case dist < j.MinLength:
		violation = dist - j.MinLength
	default:
		return
	}

	if j.Breakpoint > 0 && math.Abs(violation) > j.Breakpoint {
		j.Enabled = false
		return
	}

	invA, invB := s.invMass(a), s.invMass(b)
	sum := invA + invB
	if sum == 0 {
		return
	}

	n := r2.Scale(1/dist, d)
	frac := math.Min(j.Stiffness*dt, maxFrac)
	if frac <= 0 {
		frac = maxFrac
	}
	corr := violation * frac

	pa.Set(r2.Sub(pa.Vec(), r2.Scale(corr*invA/sum, n)))
	pb.Set(r2.Add(pb.Vec(), r2.Scale(corr*invB/sum, n)))

	// Drop the relative velocity that keeps pushing past the limit.
	if s.velMap.Has(a) && s.velMap.Has(b) {
		va, vb := s.velMap.Get(a), s.velMap.Get(b)
		rel := r2.Dot(r2.Sub(va.Vec(), vb.Vec()), n)
		if (violation > 0 && rel > 0) || (violation < 0 && rel < 0) {
			va.Set(r2.Sub(va.Vec(), r2.Scale(rel*invA/sum, n)))
			vb.Set(r2.Add(vb.Vec(), r2.Scale(rel*invB/sum, n)))
		}
	}

	for _, e := range [2]ecs.Entity{a, b} {
		if s.bodyMap.Has(e) {
			s.bodyMap.Get(e).Awake = true
		}
	}
}

func (s *JointSystem) hasPosition(e ecs.Entity) bool {
	return s.world.Alive(e) && s.posMap.Has(e)
}

func (s *JointSystem) invMass(e ecs.Entity) float64 {
	if !s.bodyMap.Has(e) {
		return 0
	}
	return s.bodyMap.Get(e).InvMass()
}
