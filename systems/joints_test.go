package systems

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/tether"
)

func spawnBall(w *ecs.World, x, y float64) ecs.Entity {
	e := spawnAt(w, x, y)
	add(w, e, components.Velocity{})
	add(w, e, components.Body{Mass: 1, Radius: 8, Awake: true})
	return e
}

func TestRemoveJointCleansBothEnds(t *testing.T) {
	w := ecs.NewWorld()
	bus := event.NewBus()
	js := NewJointSystem(w, bus, 0.8)

	var removed []ecs.Entity
	event.Subscribe(bus, func(ev *JointRemoved) { removed = append(removed, ev.Entity) })

	a, b := spawnBall(w, 0, 0), spawnBall(w, 50, 0)
	relay := spawnBall(w, 60, 0)
	js.CreateDistanceJoint(a, b, "rope", tether.Tether{MaxLength: 100, Enabled: true})
	js.SetRelay(b, relay)

	if got := js.Relayed(relay); len(got) != 1 || got[0] != b {
		t.Fatalf("Relayed = %v, want [b]", got)
	}

	if !js.RemoveJoint(a, "rope") {
		t.Fatal("RemoveJoint reported nothing removed")
	}
	if js.RemoveJoint(a, "rope") || js.RemoveJoint(b, "rope") {
		t.Error("removing twice should be a no-op")
	}
	if len(removed) != 2 {
		t.Errorf("JointRemoved published %d times, want 2", len(removed))
	}
	if has[components.JointSet](w, a) || has[components.JointSet](w, b) {
		t.Error("empty joint sets should be dropped")
	}
	if len(js.Relayed(relay)) != 0 {
		t.Error("relay target still lists b")
	}
}

func TestCreateReplacesSameID(t *testing.T) {
	w := ecs.NewWorld()
	js := NewJointSystem(w, event.NewBus(), 0.8)

	a, b, c := spawnBall(w, 0, 0), spawnBall(w, 50, 0), spawnBall(w, 90, 0)
	js.CreateDistanceJoint(a, b, "rope", tether.Tether{MaxLength: 100, Enabled: true})
	js.CreateDistanceJoint(c, b, "rope", tether.Tether{MaxLength: 100, Enabled: true})

	if _, ok := js.Joint(a, "rope"); ok {
		t.Error("old hook end still holds the joint")
	}
	j, ok := js.Joint(b, "rope")
	if !ok || j.BodyA != c {
		t.Error("new joint not installed on the shared end")
	}
}

func TestSolvePullsBackTowardMax(t *testing.T) {
	w := ecs.NewWorld()
	js := NewJointSystem(w, event.NewBus(), 0.8)

	a, b := spawnBall(w, 0, 0), spawnBall(w, 120, 0)
	get[components.Velocity](w, b).X = 50
	j := js.CreateDistanceJoint(a, b, "rope", tether.Tether{MinLength: 10, MaxLength: 100, Length: 100, Stiffness: 20, Breakpoint: 400, Enabled: true})

	js.Solve(1.0 / 60)

	pa, pb := get[components.Position](w, a), get[components.Position](w, b)
	dist := pb.X - pa.X
	if dist >= 120 || dist < 100 {
		t.Errorf("distance after solve = %v, want in [100, 120)", dist)
	}
	if pa.X <= 0 || pb.X >= 120 {
		t.Error("equal masses should share the correction")
	}
	va, vb := get[components.Velocity](w, a), get[components.Velocity](w, b)
	if vb.X-va.X > 1e-9 {
		t.Errorf("separating velocity %v not removed", vb.X-va.X)
	}
	if !j.Enabled {
		t.Error("joint should hold")
	}
}

func TestSolveBreaksPastBreakpoint(t *testing.T) {
	w := ecs.NewWorld()
	js := NewJointSystem(w, event.NewBus(), 0.8)

	a, b := spawnBall(w, 0, 0), spawnBall(w, 200, 0)
	j := js.CreateDistanceJoint(a, b, "rope", tether.Tether{MaxLength: 100, Length: 100, Stiffness: 20, Breakpoint: 50, Enabled: true})

	js.Solve(1.0 / 60)

	if j.Enabled {
		t.Error("joint should be disabled past its breakpoint")
	}
	if x := get[components.Position](w, b).X; x != 200 {
		t.Errorf("broken joint moved b to %v", x)
	}
}

func TestSolveOrderIsStable(t *testing.T) {
	solveOnce := func() components.Position {
		w := ecs.NewWorld()
		js := NewJointSystem(w, event.NewBus(), 0.8)
		b := spawnBall(w, 0, 0)
		for i, p := range []r2.Vec{{X: 150}, {Y: -130}, {X: -90, Y: 110}} {
			a := spawnBall(w, p.X, p.Y)
			js.CreateDistanceJoint(a, b, string(rune('a'+i)), tether.Tether{MaxLength: 60, Length: 60, Stiffness: 20, Breakpoint: 400, Enabled: true})
		}
		js.Solve(1.0 / 60)
		return *get[components.Position](w, b)
	}

	want := solveOnce()
	for range 20 {
		if got := solveOnce(); got != want {
			t.Fatalf("shared end solved to %+v, earlier run %+v", got, want)
		}
	}
}

func TestOuterContainer(t *testing.T) {
	w := ecs.NewWorld()
	js := NewJointSystem(w, event.NewBus(), 0.8)

	actor := spawnBall(w, 0, 0)
	bag := spawnAt(w, 0, 0)
	add(w, bag, components.Contained{Owner: actor})
	item := spawnAt(w, 0, 0)
	add(w, item, components.Contained{Owner: bag})

	if got := js.OuterContainer(item); got != actor {
		t.Errorf("OuterContainer = %v, want actor", got)
	}
	if got := js.OuterContainer(actor); got != actor {
		t.Errorf("OuterContainer(actor) = %v, want itself", got)
	}
}
