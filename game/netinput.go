package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/netplay"
)

// drainNetwork applies every command waiting in the server inbox without
// blocking the tick.
func (g *Game) drainNetwork() {
	if g.server == nil {
		return
	}
	inbox := g.server.Inbox()
	for {
		select {
		case cmd := <-inbox:
			g.applyCommand(cmd)
		default:
			return
		}
	}
}

func (g *Game) applyCommand(cmd netplay.Command) {
	switch cmd.Kind {
	case netplay.CommandJoin:
		x, y := g.randomPoint(64)
		actor, _ := g.SpawnActor(cmd.Name, cmd.Session, x, y, LoadoutGrapple)
		g.sessions[cmd.Session] = actor
		g.log.Info("player joined", "session", cmd.Session, "name", cmd.Name, "actor", actor.ID())

	case netplay.CommandLeave:
		actor, ok := g.sessions[cmd.Session]
		if !ok {
			return
		}
		delete(g.sessions, cmd.Session)
		g.despawnActor(actor)
		g.log.Info("player left", "session", cmd.Session)

	case netplay.CommandReel:
		if actor, ok := g.sessions[cmd.Session]; ok {
			g.RequestReel(actor, cmd.Reeling)
		}

	case netplay.CommandFire:
		if actor, ok := g.sessions[cmd.Session]; ok {
			g.Fire(actor, cmd.X, cmd.Y)
		}

	case netplay.CommandRelease:
		if actor, ok := g.sessions[cmd.Session]; ok {
			g.Cycle(actor)
		}
	}
}

// despawnActor lets go of the actor's rope and removes it with everything it holds.
func (g *Game) despawnActor(actor ecs.Entity) {
	if !g.world.Alive(actor) {
		return
	}
	if g.handsMap.Has(actor) {
		hands := g.handsMap.Get(actor)
		for _, ref := range []components.Ref{hands.Active, hands.Stowed} {
			item, ok := ref.Get()
			if !ok || !g.world.Alive(item) {
				continue
			}
			g.grapple.Ungrapple(item, false)
			g.cmd.QueueDelete(item)
		}
	}
	g.cmd.QueueDelete(actor)
}

// Sessions returns how many remote players have an actor.
func (g *Game) Sessions() int { return len(g.sessions) }

// SessionActor returns the actor bound to a remote session.
func (g *Game) SessionActor(session string) (ecs.Entity, bool) {
	e, ok := g.sessions[session]
	return e, ok
}

// broadcastState sends every live tether to remote players.
func (g *Game) broadcastState() {
	if g.server == nil || g.stateEvery == 0 || g.timing.Tick%g.stateEvery != 0 {
		return
	}
	tethers := g.tethers()
	views := make([]netplay.TetherView, 0, len(tethers))
	for _, t := range tethers {
		views = append(views, netplay.TetherView{
			Gun:        t.Gun.ID(),
			Session:    t.Session,
			Reeling:    t.Reeling,
			RopeLength: t.RopeLength,
			MaxLength:  t.Tether.MaxLength,
		})
	}
	if _, err := g.server.Broadcast(netplay.NewState(g.timing.Tick, views)); err != nil {
		g.log.Error("state broadcast failed", "error", err)
	}
}
