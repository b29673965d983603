package game

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/systems"
)

// SteerInput is one actor's steering for a tick.
type SteerInput struct {
	Actor ecs.Entity
	MoveX float64
	MoveY float64
}

// InputFrame is everything queued for a single tick. Prediction replays
// frames verbatim, so anything a reel request depends on (stance, hands)
// travels in the frame too.
type InputFrame struct {
	Tick     uint64
	Steering []SteerInput
	Swaps    []ecs.Entity // actors swapping hands
	Stances  []ecs.Entity // actors toggling combat mode
	Reels    []systems.ReelRequest
}

// Steer queues movement for actor on the next tick. Inputs are clamped to [-1, 1].
func (g *Game) Steer(actor ecs.Entity, x, y float64) {
	g.steering = append(g.steering, SteerInput{
		Actor: actor,
		MoveX: clampTo(x, -1, 1),
		MoveY: clampTo(y, -1, 1),
	})
}

// RequestReel queues a reel toggle for the gun in actor's active hand.
func (g *Game) RequestReel(actor ecs.Entity, reeling bool) {
	g.reels = append(g.reels, systems.ReelRequest{Actor: actor, Reeling: reeling})
}

// activeGun returns the item in actor's active hand.
func (g *Game) activeGun(actor ecs.Entity) (ecs.Entity, bool) {
	if !g.world.Alive(actor) || !g.handsMap.Has(actor) {
		return ecs.Entity{}, false
	}
	return g.handsMap.Get(actor).Active.Get()
}

// Fire shoots actor's active gun toward the world point (tx, ty). Returns
// false when the actor has nothing to fire or the gun is empty.
func (g *Game) Fire(actor ecs.Entity, tx, ty float64) bool {
	gun, ok := g.activeGun(actor)
	if !ok || !g.posMap.Has(gun) {
		return false
	}
	from := g.posMap.Get(gun).Vec()
	_, ok = g.guns.Shoot(gun, actor, r2.Sub(r2.Vec{X: tx, Y: ty}, from))
	return ok
}

// Cycle works the action of actor's active gun, letting a grappling rope go.
func (g *Game) Cycle(actor ecs.Entity) bool {
	gun, ok := g.activeGun(actor)
	if !ok {
		return false
	}
	ev := &systems.ActivateInWorld{Target: gun, User: actor, Complex: g.combatMap.Has(actor)}
	event.Publish(g.bus, ev)
	return ev.Handled
}

// SwapHands queues a hand swap for actor on the next tick: the active item
// is put away, or the stowed one is drawn.
func (g *Game) SwapHands(actor ecs.Entity) {
	g.swaps = append(g.swaps, actor)
}

// ToggleCombat queues a flip of actor's combat stance for the next tick.
// Reeling can only start in combat mode.
func (g *Game) ToggleCombat(actor ecs.Entity) {
	g.stances = append(g.stances, actor)
}

func (g *Game) swapHands(actor ecs.Entity) {
	if !g.world.Alive(actor) || !g.handsMap.Has(actor) {
		return
	}
	hands := g.handsMap.Get(actor)
	if item, ok := hands.Active.Get(); ok {
		hands.Stowed = hands.Active
		hands.Active = components.None[ecs.Entity]()
		event.Publish(g.bus, &systems.HandDeselected{Item: item, User: actor})
		return
	}
	hands.Active, hands.Stowed = hands.Stowed, components.None[ecs.Entity]()
}

func (g *Game) toggleCombat(actor ecs.Entity) {
	if g.world.Alive(actor) && g.combatMap.Has(actor) {
		c := g.combatMap.Get(actor)
		c.Active = !c.Active
	}
}

// takeInputs moves the queued inputs into a frame for the coming tick.
func (g *Game) takeInputs(tick uint64) InputFrame {
	frame := InputFrame{
		Tick:     tick,
		Steering: append([]SteerInput(nil), g.steering...),
		Swaps:    append([]ecs.Entity(nil), g.swaps...),
		Stances:  append([]ecs.Entity(nil), g.stances...),
		Reels:    append([]systems.ReelRequest(nil), g.reels...),
	}
	g.steering = g.steering[:0]
	g.swaps = g.swaps[:0]
	g.stances = g.stances[:0]
	g.reels = g.reels[:0]
	return frame
}

// applyInputs writes steering into controllers, applies hand swaps and
// stance changes, then publishes reel requests. Actors without a steering
// entry this tick stop steering.
func (g *Game) applyInputs(frame InputFrame) {
	query := g.ctrlFilter.Query()
	for query.Next() {
		ctrl := query.Get()
		ctrl.MoveX, ctrl.MoveY = 0, 0
	}
	for _, s := range frame.Steering {
		if !g.world.Alive(s.Actor) || !g.ctrlMap.Has(s.Actor) {
			continue
		}
		ctrl := g.ctrlMap.Get(s.Actor)
		ctrl.MoveX, ctrl.MoveY = s.MoveX, s.MoveY
	}
	for _, actor := range frame.Swaps {
		g.swapHands(actor)
	}
	for _, actor := range frame.Stances {
		g.toggleCombat(actor)
	}
	for _, r := range frame.Reels {
		ev := r
		event.Publish(g.bus, &ev)
	}
}
