package systems

import "github.com/mlange-42/ark/ecs"

// GunShot is published after a gun fires.
type GunShot struct {
	Gun  ecs.Entity
	User ecs.Entity
	Ammo []ecs.Entity
}

// ProjectileHit is published when a non-embedding projectile touches a body.
// Handlers set Handled to keep the projectile alive.
type ProjectileHit struct {
	Projectile ecs.Entity
	Target     ecs.Entity
	Shooter    ecs.Entity
	Handled    bool
}

// ProjectileEmbed is published when a hook sticks into a target.
type ProjectileEmbed struct {
	Projectile ecs.Entity
	Weapon     ecs.Entity
	Embedded   ecs.Entity
	Shooter    ecs.Entity
}

// ProjectileExpired is published when a projectile runs out of lifetime in flight.
type ProjectileExpired struct {
	Projectile ecs.Entity
	Weapon     ecs.Entity
}

// ActivateInWorld is an actor using an item (cycling the grappling gun).
type ActivateInWorld struct {
	Target  ecs.Entity
	User    ecs.Entity
	Complex bool // the user can do complex interactions
	Handled bool
}

// HandDeselected is published when an actor stops holding an item.
type HandDeselected struct {
	Item ecs.Entity
	User ecs.Entity
}

// ReelRequest asks to start or stop reeling the gun in the actor's active hand.
type ReelRequest struct {
	Actor   ecs.Entity
	Reeling bool
}

// JointRemoved is published for each end of a joint after it is removed.
type JointRemoved struct {
	Entity ecs.Entity
	Other  ecs.Entity
	ID     string
}

// TetherAttached is published when a grappling rope is created.
type TetherAttached struct {
	Gun    ecs.Entity
	Hook   ecs.Entity
	Target ecs.Entity
	Length float64
}

// TetherReleased is published when a grappling rope goes away.
type TetherReleased struct {
	Gun   ecs.Entity
	Broke bool
}

// ReelChanged is published when a gun starts or stops reeling.
type ReelChanged struct {
	Gun     ecs.Entity
	Reeling bool
}

// RadiationUpdated is published after receivers have been recomputed.
type RadiationUpdated struct{}

// Gathered is published when a gathering projectile harvests a target.
type Gathered struct {
	Target     ecs.Entity
	Projectile ecs.Entity
	Ore        string
	Spawned    bool
}

// Exploded is published for each explosive that goes off.
type Exploded struct {
	Entity    ecs.Entity
	Intensity float64
}

// PuddleSpilled is published when an overfull puddle sheds volume.
type PuddleSpilled struct {
	Puddle ecs.Entity
	Amount float64
}
