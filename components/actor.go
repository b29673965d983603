package components

import "github.com/mlange-42/ark/ecs"

// Actor is a player-controlled entity.
type Actor struct {
	Name    string
	Session string // network session bound to this actor, empty for local
}

// Hands tracks the item an actor is holding. Stowed is the item put away by
// the last swap, drawn again by the next one.
type Hands struct {
	Active Ref
	Stowed Ref
}

// CombatMode is the aim stance required to start reeling.
type CombatMode struct {
	Active bool
}

// Contained places an item inside another entity (a gun in an actor's hand).
// Contained entities ride on their owner's position.
type Contained struct {
	Owner ecs.Entity
}

// Controller is an actor's steering input for the current tick.
type Controller struct {
	MoveX, MoveY float64 // -1..1
	Thrust       float64 // acceleration in world units per second squared
}
