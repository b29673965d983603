package components

// Tags are free-form labels used by whitelists.
type Tags struct {
	Values []string
}

// Has reports whether tag is present.
func (t *Tags) Has(tag string) bool {
	if t == nil {
		return false
	}
	for _, v := range t.Values {
		if v == tag {
			return true
		}
	}
	return false
}

// Whitelist passes entities carrying any of its tags.
type Whitelist struct {
	Tags []string
}

// Pass reports whether tags satisfy the whitelist. A nil whitelist never passes.
func (w *Whitelist) Pass(tags *Tags) bool {
	if w == nil {
		return false
	}
	for _, t := range w.Tags {
		if tags.Has(t) {
			return true
		}
	}
	return false
}

// Fail reports whether tags are rejected. A nil whitelist never fails.
func (w *Whitelist) Fail(tags *Tags) bool {
	if w == nil {
		return false
	}
	return !w.Pass(tags)
}

// GatheringProjectile gathers from up to Amount targets.
type GatheringProjectile struct {
	Amount int
}

// Gatherable is something a gathering projectile can harvest.
type Gatherable struct {
	ToolWhitelist *Whitelist
	Gathered      bool
	Ore           string
	Yield         int
}

// OreVein controls ore drops for a gatherable rock.
type OreVein struct {
	// Projectiles passing this whitelist are too strong and destroy the ore.
	GatherDestructionWhitelist *Whitelist
	PreventSpawning            bool
}

// Ore is a dropped resource item.
type Ore struct {
	Kind  string
	Count int
}
