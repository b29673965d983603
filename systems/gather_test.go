package systems

import (
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/event"
)

func TestGatheringProjectileHit(t *testing.T) {
	tests := []struct {
		name         string
		tags         []string
		amount       int
		gathered     bool
		destroyTags  []string
		wantHandled  bool
		wantGathered bool
		wantAmount   int
		wantOre      int
	}{
		{name: "gathers and keeps flying", tags: []string{"drill"}, amount: 2, wantHandled: true, wantGathered: true, wantAmount: 1, wantOre: 1},
		{name: "last gather stops the round", tags: []string{"drill"}, amount: 1, wantHandled: false, wantGathered: true, wantAmount: 0, wantOre: 1},
		{name: "weak tool ignored", tags: []string{"pick"}, amount: 2, wantHandled: false, wantGathered: false, wantAmount: 2},
		{name: "spent round ignored", tags: []string{"drill"}, amount: 0, wantHandled: false, wantGathered: false, wantAmount: 0},
		{name: "already gathered passes through", tags: []string{"drill"}, amount: 2, gathered: true, wantHandled: true, wantGathered: true, wantAmount: 2},
		{name: "too strong destroys the ore", tags: []string{"drill", "overpen"}, amount: 2, destroyTags: []string{"overpen"}, wantHandled: true, wantGathered: true, wantAmount: 1, wantOre: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ecs.NewWorld()
			bus := event.NewBus()
			timing := &Timing{FirstTimePredicted: true, Server: true}
			cmd := NewCommandBuffer(w)
			NewGatheringSystem(w, bus, timing, cmd)

			gathered := 0
			event.Subscribe(bus, func(*Gathered) { gathered++ })

			rock := spawnAt(w, 50, 50)
			add(w, rock, components.Gatherable{
				ToolWhitelist: &components.Whitelist{Tags: []string{"drill"}},
				Gathered:      tc.gathered,
				Ore:           "iron",
				Yield:         3,
			})
			vein := components.OreVein{}
			if tc.destroyTags != nil {
				vein.GatherDestructionWhitelist = &components.Whitelist{Tags: tc.destroyTags}
			}
			add(w, rock, vein)

			round := spawnAt(w, 40, 50)
			add(w, round, components.Projectile{Radius: 4})
			add(w, round, components.GatheringProjectile{Amount: tc.amount})
			add(w, round, components.Tags{Values: tc.tags})

			hit := &ProjectileHit{Projectile: round, Target: rock}
			event.Publish(bus, hit)

			if hit.Handled != tc.wantHandled {
				t.Errorf("Handled = %v, want %v", hit.Handled, tc.wantHandled)
			}
			if g := get[components.Gatherable](w, rock).Gathered; g != tc.wantGathered {
				t.Errorf("Gathered = %v, want %v", g, tc.wantGathered)
			}
			if a := get[components.GatheringProjectile](w, round).Amount; a != tc.wantAmount {
				t.Errorf("Amount = %d, want %d", a, tc.wantAmount)
			}

			ores := 0
			query := ecs.NewFilter1[components.Ore](w).Query()
			for query.Next() {
				ore := query.Get()
				if ore.Kind != "iron" || ore.Count != 3 {
					t.Errorf("ore = %+v, want 3 iron", *ore)
				}
				ores++
			}
			if ores != tc.wantOre {
				t.Errorf("ore drops = %d, want %d", ores, tc.wantOre)
			}

			cmd.PlayBack()
			freshGather := tc.wantGathered && !tc.gathered
			if w.Alive(rock) == freshGather {
				t.Errorf("rock alive = %v after a gather = %v", w.Alive(rock), freshGather)
			}
			if (gathered == 1) != freshGather {
				t.Errorf("Gathered events = %d", gathered)
			}
		})
	}
}

func TestGatheringIgnoresOtherTargets(t *testing.T) {
	w := ecs.NewWorld()
	bus := event.NewBus()
	NewGatheringSystem(w, bus, &Timing{Server: true}, NewCommandBuffer(w))

	wall := spawnAt(w, 0, 0)
	round := spawnAt(w, 0, 0)
	add(w, round, components.Projectile{})
	add(w, round, components.GatheringProjectile{Amount: 2})

	hit := &ProjectileHit{Projectile: round, Target: wall}
	event.Publish(bus, hit)
	if hit.Handled {
		t.Error("hit on a non-gatherable should not be handled")
	}
}
