package game

import (
	"math"

	"github.com/mlange-42/ark/ecs"
)

// BodyKind classifies what a drawn entity is.
type BodyKind uint8

const (
	KindAnchor BodyKind = iota
	KindRock
	KindReactor
	KindActor
	KindHook
	KindRound
	KindPuddle
)

// BodyView is what a renderer needs to draw one entity.
type BodyView struct {
	Entity   ecs.Entity
	Kind     BodyKind
	X, Y     float64
	Radius   float64
	Label    string
	Slipping bool
	Heat     float64 // reactor intensity as a fraction of its threshold
	Local    bool    // the local player
}

// Bodies lists every drawable entity. The slice is reused between calls.
func (g *Game) Bodies() []BodyView {
	g.views = g.views[:0]

	query := g.bodyFilter.Query()
	for query.Next() {
		pos, body := query.Get()
		e := query.Entity()
		v := BodyView{Entity: e, X: pos.X, Y: pos.Y, Radius: body.Radius, Slipping: body.Slipping}
		switch {
		case g.actorMap.Has(e):
			v.Kind = KindActor
			v.Label = g.actorMap.Get(e).Name
			v.Local = e == g.player
		case g.rockMap.Has(e):
			v.Kind = KindRock
		case g.chainMap.Has(e):
			v.Kind = KindReactor
			v.Heat = g.reactorHeat(e)
		default:
			v.Kind = KindAnchor
		}
		g.views = append(g.views, v)
	}

	pq := g.projFilter.Query()
	for pq.Next() {
		pos, p := pq.Get()
		e := pq.Entity()
		if p.Lifetime <= 0 && !p.EmbeddedIn.IsSome() {
			continue // parked, waiting for deletion
		}
		kind := KindRound
		if g.hookMap.Has(e) {
			kind = KindHook
		}
		g.views = append(g.views, BodyView{Entity: e, Kind: kind, X: pos.X, Y: pos.Y, Radius: p.Radius})
	}

	dq := g.puddleFilter.Query()
	for dq.Next() {
		pos, puddle := dq.Get()
		g.views = append(g.views, BodyView{
			Entity: dq.Entity(),
			Kind:   KindPuddle,
			X:      pos.X,
			Y:      pos.Y,
			Radius: g.puddles.Radius(puddle.Volume),
		})
	}
	return g.views
}

func (g *Game) reactorHeat(e ecs.Entity) float64 {
	chain := g.chainMap.Get(e)
	if chain.ExplosionThreshold <= 0 || !g.sourceMap.Has(e) {
		return 0
	}
	return math.Min(g.sourceMap.Get(e).Intensity/chain.ExplosionThreshold, 1)
}

// PlayerStatus summarises the local player's gear for the HUD.
type PlayerStatus struct {
	Name       string
	Combat     bool
	Holding    bool // something is in the active hand
	Grappling  bool // the active item is a grappling gun
	Ammo       int
	Capacity   int
	HookOut    bool
	Roped      bool
	Reeling    bool
	RopeLength float64
	MinLength  float64
	MaxLength  float64
	Slipping   bool
}

// PlayerStatus reports the local player's state.
func (g *Game) PlayerStatus() (PlayerStatus, bool) {
	player, ok := g.Player()
	if !ok {
		return PlayerStatus{}, false
	}
	s := PlayerStatus{
		Name:     g.actorMap.Get(player).Name,
		Combat:   g.combatMap.Has(player) && g.combatMap.Get(player).Active,
		Slipping: g.bodyMap.Get(player).Slipping,
	}

	item, ok := g.activeGun(player)
	if !ok {
		return s, true
	}
	s.Holding = true
	if g.ammoMap.Has(item) {
		ammo := g.ammoMap.Get(item)
		s.Ammo, s.Capacity = ammo.Count, ammo.Capacity
	}
	if !g.gunMap.Has(item) {
		return s, true
	}

	gun := g.gunMap.Get(item)
	s.Grappling = true
	s.HookOut = gun.Projectile.IsSome()
	s.Reeling = gun.Reeling
	s.MinLength, s.MaxLength = gun.RopeMinLength, gun.RopeMaxLength
	for _, t := range g.tethers() {
		if t.Gun == item {
			s.Roped = true
			s.RopeLength = t.RopeLength
			s.MinLength, s.MaxLength = t.Tether.MinLength, t.Tether.MaxLength
			break
		}
	}
	return s, true
}

// TogglePlayerReel flips the local player's reel request.
func (g *Game) TogglePlayerReel() {
	player, ok := g.Player()
	if !ok {
		return
	}
	item, ok := g.activeGun(player)
	if !ok || !g.gunMap.Has(item) {
		return
	}
	g.RequestReel(player, !g.gunMap.Get(item).Reeling)
}
