package main

import (
	"github.com/pthm-cable/grapple/netplay"
)

type phase int

const (
	phaseFire phase = iota
	phaseWaitHook
	phaseReel
	phaseRest
)

// action is what the bot wants sent after seeing a state.
type action int

const (
	actNone action = iota
	actFire
	actReelOn
	actRelease
)

// bot decides one action per received state. It fires, waits for its own
// rope to show up, reels until the rope stops shortening or reelTicks pass,
// then releases and rests before the next shot.
type bot struct {
	session   string
	reelTicks uint64
	restTicks uint64
	hookTicks uint64

	phase  phase
	since  uint64
	last   float64
	cycles int
}

func newBot(session string, reelTicks, restTicks, hookTicks uint64) *bot {
	return &bot{session: session, reelTicks: reelTicks, restTicks: restTicks, hookTicks: hookTicks}
}

func (b *bot) own(state netplay.StateMsg) (netplay.TetherView, bool) {
	for _, t := range state.Tethers {
		if t.Session == b.session {
			return t, true
		}
	}
	return netplay.TetherView{}, false
}

func (b *bot) enter(p phase, tick uint64) {
	b.phase = p
	b.since = tick
}

func (b *bot) step(state netplay.StateMsg) action {
	tether, roped := b.own(state)
	elapsed := state.Tick - b.since

	switch b.phase {
	case phaseFire:
		b.enter(phaseWaitHook, state.Tick)
		return actFire

	case phaseWaitHook:
		if roped {
			b.last = tether.MaxLength
			b.enter(phaseReel, state.Tick)
			return actReelOn
		}
		if elapsed >= b.hookTicks {
			// Missed; release refunds the hook.
			b.enter(phaseRest, state.Tick)
			return actRelease
		}

	case phaseReel:
		if !roped {
			// Rope broke under us.
			b.cycles++
			b.enter(phaseRest, state.Tick)
			return actNone
		}
		done := elapsed >= b.reelTicks || (elapsed > 0 && !tether.Reeling && tether.MaxLength >= b.last)
		b.last = tether.MaxLength
		if done {
			b.cycles++
			b.enter(phaseRest, state.Tick)
			return actRelease
		}

	case phaseRest:
		if elapsed >= b.restTicks {
			b.enter(phaseFire, state.Tick)
		}
	}
	return actNone
}
