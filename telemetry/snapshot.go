package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a readable dump of every live tether, written when a bookmark fires.
type Snapshot struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
	Server  bool   `json:"server"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`

	Tethers []TetherState `json:"tethers"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// TetherState holds one gun's rope.
type TetherState struct {
	Gun    uint32 `json:"gun"`
	Hook   uint32 `json:"hook"`
	Target uint32 `json:"target,omitempty"`

	Reeling    bool    `json:"reeling"`
	Enabled    bool    `json:"enabled"`
	RopeLength float64 `json:"rope_length"`
	MinLength  float64 `json:"min_length"`
	MaxLength  float64 `json:"max_length"`
	Length     float64 `json:"length"`

	Lifetime *LifetimeStatsJSON `json:"lifetime,omitempty"`
}

// LifetimeStatsJSON is the JSON-serializable form of LifetimeStats.
type LifetimeStatsJSON struct {
	AttachTick    uint64  `json:"attach_tick"`
	AttachLength  float64 `json:"attach_length"`
	PeakLength    float64 `json:"peak_length"`
	ShortestRope  float64 `json:"shortest_rope"`
	ReelSessions  int     `json:"reel_sessions"`
	SurvivalTicks uint64  `json:"survival_ticks"`
}

// ToJSON converts LifetimeStats to its JSON form.
func (ls *LifetimeStats) ToJSON() *LifetimeStatsJSON {
	if ls == nil {
		return nil
	}
	return &LifetimeStatsJSON{
		AttachTick:    ls.AttachTick,
		AttachLength:  ls.AttachLength,
		PeakLength:    ls.PeakLength,
		ShortestRope:  ls.ShortestRope,
		ReelSessions:  ls.ReelSessions,
		SurvivalTicks: ls.SurvivalTicks,
	}
}

// FromJSON converts the JSON form back to LifetimeStats.
func (lsj *LifetimeStatsJSON) FromJSON() *LifetimeStats {
	if lsj == nil {
		return nil
	}
	return &LifetimeStats{
		AttachTick:    lsj.AttachTick,
		AttachLength:  lsj.AttachLength,
		PeakLength:    lsj.PeakLength,
		ShortestRope:  lsj.ShortestRope,
		ReelSessions:  lsj.ReelSessions,
		SurvivalTicks: lsj.SurvivalTicks,
	}
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
