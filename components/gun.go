package components

import "github.com/mlange-42/ark/ecs"

// ProjectileKind selects what a gun fires.
type ProjectileKind uint8

const (
	ProjectileHook ProjectileKind = iota
	ProjectileGathering
)

// Gun fires projectiles of one kind.
type Gun struct {
	Kind  ProjectileKind
	Speed float64
}

// BasicAmmo is a simple refillable ammo counter.
type BasicAmmo struct {
	Count    int
	Capacity int
}

// Change adjusts the count by delta, clamped to [0, Capacity].
func (a *BasicAmmo) Change(delta int) {
	a.Count = min(max(a.Count+delta, 0), a.Capacity)
}

// Projectile is a fired round in flight or embedded in a target.
type Projectile struct {
	Shooter    ecs.Entity
	Weapon     ecs.Entity
	Radius     float64
	Lifetime   float64 // seconds left before expiring in flight
	EmbeddedIn Ref
}
