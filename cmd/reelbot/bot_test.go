package main

import (
	"testing"

	"github.com/pthm-cable/grapple/netplay"
)

func state(tick uint64, tethers ...netplay.TetherView) netplay.StateMsg {
	return netplay.NewState(tick, tethers)
}

func TestBotCycle(t *testing.T) {
	b := newBot("me", 60, 10, 30)
	other := netplay.TetherView{Gun: 9, Session: "them", MaxLength: 100}

	steps := []struct {
		name string
		in   netplay.StateMsg
		want action
	}{
		{"fires first", state(0), actFire},
		{"ignores other ropes", state(6, other), actNone},
		{"reels once hooked", state(12, other, netplay.TetherView{Session: "me", MaxLength: 300}), actReelOn},
		{"keeps reeling", state(18, netplay.TetherView{Session: "me", Reeling: true, MaxLength: 288}), actNone},
		{"releases when stalled", state(24, netplay.TetherView{Session: "me", MaxLength: 288}), actRelease},
		{"rests", state(30), actNone},
		{"rest ends", state(36), actNone},
		{"fires again", state(42), actFire},
	}
	for _, s := range steps {
		if got := b.step(s.in); got != s.want {
			t.Fatalf("%s: action = %v, want %v", s.name, got, s.want)
		}
	}
	if b.cycles != 1 {
		t.Errorf("cycles = %d, want 1", b.cycles)
	}
}

func TestBotReleasesAMiss(t *testing.T) {
	b := newBot("me", 60, 10, 30)
	if got := b.step(state(0)); got != actFire {
		t.Fatalf("first action = %v", got)
	}
	if got := b.step(state(12)); got != actNone {
		t.Fatalf("early action = %v", got)
	}
	if got := b.step(state(30)); got != actRelease {
		t.Fatalf("timeout action = %v, want release", got)
	}
	if b.phase != phaseRest || b.cycles != 0 {
		t.Errorf("phase %v cycles %d", b.phase, b.cycles)
	}
}

func TestBotCountsBrokenRope(t *testing.T) {
	b := newBot("me", 60, 10, 30)
	b.step(state(0))
	b.step(state(6, netplay.TetherView{Session: "me", MaxLength: 200}))
	if got := b.step(state(12)); got != actNone {
		t.Fatalf("action after break = %v", got)
	}
	if b.cycles != 1 || b.phase != phaseRest {
		t.Errorf("phase %v cycles %d", b.phase, b.cycles)
	}
}
