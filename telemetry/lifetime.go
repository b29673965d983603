package telemetry

// LifetimeStats tracks one tether from attach to release.
type LifetimeStats struct {
	AttachTick    uint64
	AttachLength  float64
	PeakLength    float64
	ShortestRope  float64
	ReelSessions  int
	SurvivalTicks uint64
}

// LifetimeTracker manages per-tether lifetime statistics, keyed by gun ID.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register starts tracking a freshly attached tether.
func (lt *LifetimeTracker) Register(gunID uint32, tick uint64, length float64) {
	lt.stats[gunID] = &LifetimeStats{
		AttachTick:   tick,
		AttachLength: length,
		PeakLength:   length,
		ShortestRope: length,
	}
}

// Get returns the lifetime stats for a gun, or nil if not found.
func (lt *LifetimeTracker) Get(gunID uint32) *LifetimeStats {
	return lt.stats[gunID]
}

// Remove removes a gun's stats and returns them.
func (lt *LifetimeTracker) Remove(gunID uint32) *LifetimeStats {
	stats := lt.stats[gunID]
	delete(lt.stats, gunID)
	return stats
}

// RecordReel counts a reel session.
func (lt *LifetimeTracker) RecordReel(gunID uint32) {
	if s := lt.stats[gunID]; s != nil {
		s.ReelSessions++
	}
}

// UpdateLength tracks the longest and shortest rope seen.
func (lt *LifetimeTracker) UpdateLength(gunID uint32, length float64, tick uint64) {
	s := lt.stats[gunID]
	if s == nil {
		return
	}
	s.PeakLength = max(s.PeakLength, length)
	s.ShortestRope = min(s.ShortestRope, length)
	s.SurvivalTicks = tick - s.AttachTick
}

// All returns all tracked stats (for snapshots).
func (lt *LifetimeTracker) All() map[uint32]*LifetimeStats {
	return lt.stats
}

// Count returns the number of tracked tethers.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
