// Package effects carries fire-and-forget audio and visual triggers out of the
// simulation. Systems never read anything back besides the stream handle
// needed to stop a looping sound later.
package effects

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"
)

// Sound names a sound asset.
type Sound string

const (
	SoundReel  Sound = "grapple_reel"
	SoundBreak Sound = "grapple_break"
	SoundCycle Sound = "grapple_cycle"
	SoundSplat Sound = "puddle_splat"
	SoundBoom  Sound = "explosion"
)

// Visual names an appearance key.
type Visual string

const (
	// VisualTether is true while the gun shows a loaded hook (no rope out).
	VisualTether Visual = "tether_visuals_status"
)

// Stream identifies a playing sound. Zero is never a valid stream.
type Stream uint32

// Sink accepts effect commands.
type Sink interface {
	PlaySound(sound Sound, source ecs.Entity) Stream
	StopSound(stream Stream)
	SetVisual(target ecs.Entity, key Visual, value bool)
}

// Kind classifies a recorded effect.
type Kind uint8

const (
	KindPlay Kind = iota
	KindStop
	KindVisual
)

func (k Kind) String() string {
	switch k {
	case KindPlay:
		return "play"
	case KindStop:
		return "stop"
	case KindVisual:
		return "visual"
	}
	return "unknown"
}

// Entry is one recorded effect command.
type Entry struct {
	Tick   uint64 `csv:"tick"`
	Kind   string `csv:"kind"`
	Sound  Sound  `csv:"sound"`
	Stream Stream `csv:"stream"`
	Entity uint32 `csv:"entity"`
	Visual Visual `csv:"visual"`
	Value  bool   `csv:"value"`
}

// Recorder is a Sink that keeps every command, tracks live streams and
// optionally logs through slog. The game drains it into telemetry each tick.
type Recorder struct {
	Logger *slog.Logger

	tick    uint64
	next    Stream
	live    map[Stream]Sound
	visuals map[ecs.Entity]map[Visual]bool
	entries []Entry
}

// NewRecorder creates a recorder. logger may be nil.
func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{
		Logger:  logger,
		live:    make(map[Stream]Sound),
		visuals: make(map[ecs.Entity]map[Visual]bool),
	}
}

// SetTick stamps subsequent entries.
func (r *Recorder) SetTick(tick uint64) {
	r.tick = tick
}

// PlaySound implements Sink.
func (r *Recorder) PlaySound(sound Sound, source ecs.Entity) Stream {
	r.next++
	s := r.next
	r.live[s] = sound
	r.record(Entry{Kind: KindPlay.String(), Sound: sound, Stream: s, Entity: source.ID()})
	return s
}

// StopSound implements Sink. Stopping an unknown stream is a no-op.
func (r *Recorder) StopSound(stream Stream) {
	sound, ok := r.live[stream]
	if !ok {
		return
	}
	delete(r.live, stream)
	r.record(Entry{Kind: KindStop.String(), Sound: sound, Stream: stream})
}

// SetVisual implements Sink.
func (r *Recorder) SetVisual(target ecs.Entity, key Visual, value bool) {
	m, ok := r.visuals[target]
	if !ok {
		m = make(map[Visual]bool)
		r.visuals[target] = m
	}
	m[key] = value
	r.record(Entry{Kind: KindVisual.String(), Entity: target.ID(), Visual: key, Value: value})
}

// Playing reports whether a stream is live.
func (r *Recorder) Playing(stream Stream) bool {
	_, ok := r.live[stream]
	return ok
}

// LiveCount returns the number of live streams playing sound.
func (r *Recorder) LiveCount(sound Sound) int {
	n := 0
	for _, s := range r.live {
		if s == sound {
			n++
		}
	}
	return n
}

// Visual returns the last value set for key on target.
func (r *Recorder) Visual(target ecs.Entity, key Visual) (value, ok bool) {
	m, found := r.visuals[target]
	if !found {
		return false, false
	}
	value, ok = m[key]
	return value, ok
}

// Entries returns all entries recorded since the last Drain.
func (r *Recorder) Entries() []Entry {
	return r.entries
}

// Count returns how many entries of kind for sound are pending.
func (r *Recorder) Count(kind Kind, sound Sound) int {
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind.String() && e.Sound == sound {
			n++
		}
	}
	return n
}

// Drain returns pending entries and clears them.
func (r *Recorder) Drain() []Entry {
	out := r.entries
	r.entries = nil
	return out
}

func (r *Recorder) record(e Entry) {
	e.Tick = r.tick
	r.entries = append(r.entries, e)
	if r.Logger != nil {
		r.Logger.Debug("effect",
			"tick", e.Tick,
			"kind", e.Kind,
			"sound", e.Sound,
			"stream", e.Stream,
			"entity", e.Entity,
			"visual", e.Visual,
			"value", e.Value,
		)
	}
}
