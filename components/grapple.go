package components

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/tether"
)

// GrapplingJoint is the joint ID used for grappling ropes.
const GrapplingJoint = "grappling"

// GrapplingGun is the per-gun reel state.
// Reeling is false whenever the gun has no grappling joint.
type GrapplingGun struct {
	Reeling    bool
	Projectile Ref                 // hook currently out, if any
	Stream     Opt[effects.Stream] // reel sound while reeling

	Tuning tether.Tuning

	// Applied when the hook embeds
	RopeMinLength  float64
	RopeMaxLength  float64
	RopeStiffness  float64
	RopeBreakpoint float64
}

// GrapplingProjectile marks a hook fired by a grappling gun.
type GrapplingProjectile struct {
	Weapon ecs.Entity
}

// DistanceJoint links BodyA (hook) to BodyB (gun).
type DistanceJoint struct {
	ID    string
	BodyA ecs.Entity
	BodyB ecs.Entity
	tether.Tether
}

// JointSet holds the joints an entity takes part in. The same joint pointer is
// stored on both ends. Relay, when set, is the entity whose body physically
// stands in for this one (the target a hook is embedded in, the actor holding
// a gun).
type JointSet struct {
	Joints map[string]*DistanceJoint
	Relay  Ref
}

// Get returns the joint with the given ID.
func (s *JointSet) Get(id string) (*DistanceJoint, bool) {
	j, ok := s.Joints[id]
	return j, ok
}

// JointRelayTarget lists the entities relaying their joints onto this one.
type JointRelayTarget struct {
	Relayed []ecs.Entity
}

// Add records e, ignoring duplicates.
func (t *JointRelayTarget) Add(e ecs.Entity) {
	for _, r := range t.Relayed {
		if r == e {
			return
		}
	}
	t.Relayed = append(t.Relayed, e)
}

// Remove forgets e.
func (t *JointRelayTarget) Remove(e ecs.Entity) {
	for i, r := range t.Relayed {
		if r == e {
			t.Relayed = append(t.Relayed[:i], t.Relayed[i+1:]...)
			return
		}
	}
}
