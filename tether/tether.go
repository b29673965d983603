// Package tether implements the grapple reel controller: the per-tick update
// of a rope joint between a grappling hook and the gun that fired it.
//
// Everything here is a pure function of its inputs. The same Step call may run
// on the authoritative server and again on a predicting client, and may be
// replayed after a rollback, so it keeps no state between calls and draws no
// random numbers.
package tether

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Phase is the controller state after a tick.
type Phase uint8

const (
	// PhaseAttached means the rope holds and nobody is reeling.
	PhaseAttached Phase = iota
	// PhaseReeling means the rope was shortened this tick.
	PhaseReeling
	// PhaseIdle means reeling stopped because the rope is fully reeled.
	PhaseIdle
	// PhaseBroken means the rope must be released.
	PhaseBroken
)

func (p Phase) String() string {
	switch p {
	case PhaseAttached:
		return "attached"
	case PhaseReeling:
		return "reeling"
	case PhaseIdle:
		return "idle"
	case PhaseBroken:
		return "broken"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Tether is a distance constraint between two anchors.
// The solver owns it; the controller only touches MaxLength and Length.
type Tether struct {
	MinLength  float64
	MaxLength  float64
	Length     float64 // current rest length
	Stiffness  float64
	Breakpoint float64
	Enabled    bool
}

// Tuning holds the per-gun reel parameters.
type Tuning struct {
	ReelRate              float64
	ReelForce             float64
	RopeMargin            float64
	RopeFullyReeledMargin float64
}

// Input is everything a single tick needs.
type Input struct {
	AnchorA   r2.Vec // hook end
	AnchorB   r2.Vec // gun end
	Tether    Tether
	Reeling   bool
	Tuning    Tuning
	FrameTime float64 // seconds, >= 0
}

// Result is the outcome of a tick. Tether and Reeling are the values to write back.
type Result struct {
	Phase      Phase
	Tether     Tether
	Reeling    bool
	RopeLength float64

	// Pulled is set when attraction impulses were produced.
	// ImpulseA + ImpulseB is always the zero vector.
	Pulled   bool
	ImpulseA r2.Vec
	ImpulseB r2.Vec
}

// Step runs one controller tick.
func Step(in Input) Result {
	t := in.Tether
	tn := in.Tuning
	dt := math.Max(in.FrameTime, 0)

	ropeLength := r2.Norm(r2.Sub(in.AnchorA, in.AnchorB))
	res := Result{
		Phase:      PhaseAttached,
		Tether:     t,
		Reeling:    in.Reeling,
		RopeLength: ropeLength,
	}

	if !t.Enabled || ropeLength >= t.MaxLength+tn.RopeMargin {
		res.Phase = PhaseBroken
		res.Reeling = false
		res.Tether = Clamp(t)
		return res
	}

	if !in.Reeling {
		res.Tether = Clamp(t)
		return res
	}

	res.Phase = PhaseReeling
	res.Tether = Reel(t, tn, ropeLength, dt)

	if ropeLength <= t.MinLength+tn.RopeFullyReeledMargin {
		res.Phase = PhaseIdle
		res.Reeling = false
		return res
	}

	if ropeLength >= res.Tether.MaxLength-tn.RopeMargin && ropeLength > 0 {
		res.Pulled = true
		res.ImpulseA, res.ImpulseB = Attraction(in.AnchorA, in.AnchorB, tn.ReelForce*dt)
	}

	return res
}

// Reel shortens MaxLength by ReelRate*dt. The new maximum never drops below
// the fully reeled length or below ropeLength-RopeMargin (which would snap the
// rope), and never exceeds the previous maximum.
func Reel(t Tether, tn Tuning, ropeLength, dt float64) Tether {
	floor := math.Max(t.MinLength+tn.RopeFullyReeledMargin, ropeLength-tn.RopeMargin)
	next := math.Max(t.MaxLength-tn.ReelRate*dt, floor)
	t.MaxLength = math.Min(t.MaxLength, next)
	t.Length = ropeLength
	return Clamp(t)
}

// Clamp restores MinLength <= Length <= MaxLength.
func Clamp(t Tether) Tether {
	if t.MaxLength < t.MinLength {
		t.MaxLength = t.MinLength
	}
	t.Length = math.Min(math.Max(t.Length, t.MinLength), t.MaxLength)
	return t
}

// Attraction returns the equal and opposite impulses pulling a toward b and
// b toward a with the given magnitude. Coincident anchors produce zero.
func Attraction(a, b r2.Vec, magnitude float64) (onA, onB r2.Vec) {
	d := r2.Sub(a, b)
	n := r2.Norm(d)
	if n == 0 || magnitude == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	dir := r2.Scale(1/n, d)
	onB = r2.Scale(magnitude, dir)
	onA = r2.Scale(-1, onB)
	return onA, onB
}

// FullyReeled reports whether the joint is already as short as reeling allows.
func FullyReeled(t Tether, tn Tuning) bool {
	return t.MaxLength <= t.MinLength+tn.RopeFullyReeledMargin
}

// New builds the joint created when a hook embeds at the given distance.
func New(distance float64, minLength, stiffness, breakpoint float64, tn Tuning) Tether {
	return Clamp(Tether{
		MinLength:  minLength,
		MaxLength:  distance + tn.RopeMargin,
		Length:     distance,
		Stiffness:  stiffness,
		Breakpoint: breakpoint,
		Enabled:    true,
	})
}
