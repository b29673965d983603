package components

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
)

func TestOpt(t *testing.T) {
	var none Ref
	if none.IsSome() {
		t.Error("zero Ref should be None")
	}
	if _, ok := none.Get(); ok {
		t.Error("Get on None reported a value")
	}

	w := ecs.NewWorld()
	e := ecs.NewMap[Position](w).NewEntity(&Position{})
	some := Some(e)
	if got, ok := some.Get(); !ok || got != e {
		t.Errorf("Get = %v, %v; want %v, true", got, ok, e)
	}
	if None[int]().Or(5) != 5 || Some(3).Or(5) != 3 {
		t.Error("Or returned the wrong value")
	}
}

func TestWhitelist(t *testing.T) {
	drill := &Tags{Values: []string{"drill"}}
	pick := &Tags{Values: []string{"pick"}}
	wl := &Whitelist{Tags: []string{"drill", "laser"}}
	var unset *Whitelist

	tests := []struct {
		name     string
		wl       *Whitelist
		tags     *Tags
		wantPass bool
		wantFail bool
	}{
		{"match", wl, drill, true, false},
		{"no match", wl, pick, false, true},
		{"no tags", wl, nil, false, true},
		{"unset whitelist", unset, drill, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.wl.Pass(tc.tags); got != tc.wantPass {
				t.Errorf("Pass = %v, want %v", got, tc.wantPass)
			}
			if got := tc.wl.Fail(tc.tags); got != tc.wantFail {
				t.Errorf("Fail = %v, want %v", got, tc.wantFail)
			}
		})
	}
}

func TestBasicAmmoChangeClamps(t *testing.T) {
	a := BasicAmmo{Count: 1, Capacity: 1}
	a.Change(1)
	if a.Count != 1 {
		t.Errorf("Count = %d, want capped at 1", a.Count)
	}
	a.Change(-3)
	if a.Count != 0 {
		t.Errorf("Count = %d, want floored at 0", a.Count)
	}
}

func TestJointRelayTarget(t *testing.T) {
	w := ecs.NewWorld()
	m := ecs.NewMap[Position](w)
	a, b := m.NewEntity(&Position{}), m.NewEntity(&Position{})

	var rt JointRelayTarget
	rt.Add(a)
	rt.Add(a)
	rt.Add(b)
	if len(rt.Relayed) != 2 {
		t.Fatalf("Relayed = %v, want two entries", rt.Relayed)
	}
	rt.Remove(a)
	if len(rt.Relayed) != 1 || rt.Relayed[0] != b {
		t.Errorf("Relayed = %v, want [b]", rt.Relayed)
	}
}

func TestBodyInvMass(t *testing.T) {
	tests := []struct {
		name string
		body Body
		want float64
	}{
		{"dynamic", Body{Mass: 4}, 0.25},
		{"static", Body{Mass: 4, Static: true}, 0},
		{"massless", Body{}, 0},
	}
	for _, tc := range tests {
		if got := tc.body.InvMass(); got != tc.want {
			t.Errorf("%s: InvMass = %v, want %v", tc.name, got, tc.want)
		}
	}
}
